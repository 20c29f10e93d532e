// Package v1 is the versioned entry point of the HTTP API.
package v1

import (
    "log/slog"

    base "github.com/tinoosan/hishab/internal/httpapi"
)

// Server is an alias to the base HTTP API server for v1.
type Server = base.Server

// Deps is an alias to the base dependency set.
type Deps = base.Deps

// New constructs a v1 HTTP server using the same implementation as the base package.
func New(d Deps, logger *slog.Logger) *Server {
    return base.New(d, logger)
}
