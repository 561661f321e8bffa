package httpserver

import (
	"net/http"
	"time"
)

// New builds the admin API server. Requests here are small JSON commands, so
// the timeouts are tight; anything slower points at a stuck store or broker.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
