// Package httpserver exposes the streaming endpoint, health probes, build
// info and Prometheus metrics over Echo.
//
// Routes: GET /ws/:user_id (websocket), /health, /health/{startup,live,ready},
// /version, /metrics.
package httpserver
