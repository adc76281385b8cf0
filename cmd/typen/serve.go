package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/auth"
	"github.com/typenhq/typen/internal/config"
	"github.com/typenhq/typen/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Typen server",
	Long: `Start the Typen HTTP server.

The server stores books in a SQLite file under the home directory (or
storage.path) and answers next-word predictions through the configured
LLM provider. Config file changes are picked up without a restart.

The server provides:
  - /health      - Basic server health check
  - /ready       - Readiness check (includes the book store)
  - /api/books   - Book CRUD and PDF export
  - /api/predict - Next-word suggestions

Examples:
  typen serve                    # Start on the configured port (default 8080)
  typen serve --port 3000        # Start on custom port
  typen serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, cm, err := loadConfig()
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		cfg := cm.Get()

		logger := cfg.Log.NewLogger(os.Stdout)
		cm.SetLogger(logger)
		if cm.ConfigFile() != "" {
			logger.Info("loaded config", "file", cm.ConfigFile())
			cm.WatchConfig()
		}

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		port := strconv.Itoa(cfg.Server.Port)
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		storagePath := cfg.Storage.Path
		if storagePath == "" {
			storagePath = h.DBPath()
		}

		issuer, err := newIssuer(cfg)
		if err != nil {
			return err
		}

		// Create server
		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			StoragePath:   storagePath,
			ConfigManager: cm,
			Issuer:        issuer,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

// newIssuer builds the token issuer from config. An empty secret disables
// authentication and yields a nil issuer.
func newIssuer(cfg *config.Config) (*auth.Issuer, error) {
	secret := cfg.AuthSecret()
	if secret == "" {
		return nil, nil
	}
	return auth.NewIssuer(auth.IssuerConfig{
		Secret: secret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.AuthTTL(),
	})
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
