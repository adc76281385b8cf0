package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/api"
	"github.com/typenhq/typen/internal/config"
	"github.com/typenhq/typen/internal/home"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file to the home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		path := h.ConfigPath()
		if h.ConfigExists() && !configForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cm, err := loadConfig()
		if err != nil {
			return err
		}
		return api.Output(cm.Get())
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
