package transports

import (
	"context"
	"net/http"
)

// Transport is a network front end serving recommendations to clients.
// Implementations own their listener lifecycle.
type Transport interface {
	Name() string
	// Start binds and serves in the background; bind errors are returned.
	Start(ctx context.Context) error
	// Shutdown refuses new work and closes open streams before returning.
	Shutdown(ctx context.Context) error
	Addr() string
}

// HandlerProvider exposes the routes of a transport for in-process testing.
type HandlerProvider interface {
	Handler() http.Handler
}
