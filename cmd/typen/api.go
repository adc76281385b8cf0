package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/api"
	"github.com/typenhq/typen/internal/client"
	"github.com/typenhq/typen/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Typen server via HTTP.

These commands require a running server (typen serve).
Use --server to specify a custom server URL. Requests carry the bearer
token from the TYPEN_TOKEN environment variable (see typen auth token).

Examples:
  typen api health                  # Check server health
  typen api books list <user-id>    # List a user's books
  typen api books get <id>          # Get a specific book
  typen api predict "It was a"      # Suggest next words`,
}

var booksCmd = &cobra.Command{
	Use:   "books",
	Short: "Book management commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

// booksClient returns a typed client for the configured server.
func booksClient() *client.Client {
	return client.New(api.NewClient(getServerURL(), api.WithToken(func() string {
		return os.Getenv(endpoints.TokenEnv)
	})))
}

// flagCommand builds a command that flips a book flag through the client.
func flagCommand(use, short, done string, set func(c *client.Client, cmd *cobra.Command, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := set(booksClient(), cmd, args[0]); err != nil {
				return err
			}
			return api.Output(client.StatusResponse{Status: "success", Message: fmt.Sprintf("Book %s %s", args[0], done)})
		},
	}
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health and session endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.SessionEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.PredictEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ListLLMCallsEndpoint{}).Command(getServerURL))

	// Books as subcommand group
	for _, ep := range endpoints.BookCommands() {
		booksCmd.AddCommand(ep.Command(getServerURL))
	}
	booksCmd.AddCommand(
		flagCommand("favorite", "Mark a book as favorite", "marked favorite",
			func(c *client.Client, cmd *cobra.Command, id string) error {
				return c.SetFavorite(cmd.Context(), id, true)
			}),
		flagCommand("unfavorite", "Remove a book from favorites", "removed from favorites",
			func(c *client.Client, cmd *cobra.Command, id string) error {
				return c.SetFavorite(cmd.Context(), id, false)
			}),
		flagCommand("archive", "Archive a book", "archived",
			func(c *client.Client, cmd *cobra.Command, id string) error {
				return c.SetArchived(cmd.Context(), id, true)
			}),
		flagCommand("restore", "Restore an archived book", "restored",
			func(c *client.Client, cmd *cobra.Command, id string) error {
				return c.SetArchived(cmd.Context(), id, false)
			}),
	)

	apiCmd.AddCommand(booksCmd)
	rootCmd.AddCommand(apiCmd)
}
