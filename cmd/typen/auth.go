package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/auth"
	"github.com/typenhq/typen/internal/server/endpoints"
)

var (
	tokenUser  string
	tokenEmail string
	tokenName  string
	tokenTTL   time.Duration
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Session token commands",
}

var authTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a session token signed with the configured secret",
	Long: `Issue a session token signed with auth.secret.

The server must share the same secret. Export the token so API and
editor commands send it:

  export ` + endpoints.TokenEnv + `=$(typen auth token --user u1)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenUser == "" {
			return errors.New("--user is required")
		}
		_, cm, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cm.Get()
		secret := cfg.AuthSecret()
		if secret == "" {
			return errors.New("auth.secret is not configured")
		}
		ttl := cfg.AuthTTL()
		if tokenTTL > 0 {
			ttl = tokenTTL
		}
		issuer, err := auth.NewIssuer(auth.IssuerConfig{
			Secret: secret,
			Issuer: cfg.Auth.Issuer,
			TTL:    ttl,
		})
		if err != nil {
			return err
		}
		token, err := issuer.Issue(auth.User{ID: tokenUser, Email: tokenEmail, Name: tokenName})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	authTokenCmd.Flags().StringVar(&tokenUser, "user", "", "User ID (required)")
	authTokenCmd.Flags().StringVar(&tokenEmail, "email", "", "User email")
	authTokenCmd.Flags().StringVar(&tokenName, "name", "", "Display name")
	authTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default auth.ttl_hours)")

	authCmd.AddCommand(authTokenCmd)
	rootCmd.AddCommand(authCmd)
}
