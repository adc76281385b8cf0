package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint defines both an HTTP route and its corresponding CLI command.
type Endpoint interface {
	// Route returns the HTTP method, path, and handler for this endpoint.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresInit returns true if this endpoint needs the book store or
	// the predictor to be ready.
	RequiresInit() bool

	// Command returns a Cobra command that calls this endpoint via HTTP.
	// getServerURL is called at runtime to get the server URL.
	Command(getServerURL func() string) *cobra.Command
}

// Public is implemented by endpoints reachable without a session token.
type Public interface {
	Public() bool
}

// IsPublic reports whether ep skips authentication.
func IsPublic(ep Endpoint) bool {
	p, ok := ep.(Public)
	return ok && p.Public()
}
