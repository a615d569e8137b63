// Package api provides the HTTP surface of the recommendation engine:
// session lifecycle, shopper turns, and the staff discount publish. It is a
// thin transport; presentation stays with external clients.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string
}
