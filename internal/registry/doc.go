// Package registry tracks live client connections and channel subscriptions.
//
// The registry is the single owner of every connection's transport: the poller and the
// websocket handler address clients only by user id. At most one connection exists per user;
// a reconnect closes the previous transport. A failed write is treated as a disconnect.
//
// One mutex guards both maps and is only held for in-memory map work. Writes and closes always
// happen after the lock is released, so a slow client never blocks registration or delivery
// to other users.
package registry
