package endpoints

import (
	"github.com/typenhq/typen/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},

		// Session
		&SessionEndpoint{},

		// Book endpoints
		&CreateBookEndpoint{},
		&ListBooksEndpoint{},
		&GetBookEndpoint{},
		&UpdateBookEndpoint{},
		&DeleteBookEndpoint{},
		&ExportPDFEndpoint{},

		// Prediction
		&PredictEndpoint{},
		&ListLLMCallsEndpoint{},
	}
}

// BookCommands returns the endpoints grouped under "books" on the CLI.
func BookCommands() []api.Endpoint {
	return []api.Endpoint{
		&CreateBookEndpoint{},
		&ListBooksEndpoint{},
		&GetBookEndpoint{},
		&UpdateBookEndpoint{},
		&DeleteBookEndpoint{},
		&ExportPDFEndpoint{},
	}
}
