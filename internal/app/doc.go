// Package app runs the activity poller.
//
// Once per tick the poller snapshots the connected users, polls each one that has not been
// checked within the per-user interval, classifies the current track and pushes a mood_update
// through the connection registry. It depends on small consumer-side interfaces, not on the
// registry or the Spotify client directly.
package app
