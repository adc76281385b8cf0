package main

import (
	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/api"
	"github.com/typenhq/typen/internal/config"
	"github.com/typenhq/typen/internal/home"
	"github.com/typenhq/typen/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "typen",
	Short: "Paginated writing with next-word suggestions",
	Long: `Typen is a writing tool that lays books out on A4 pages as you type
and suggests the next word with a language model.

It includes:
  - A book API server backed by SQLite
  - Next-word prediction through a configurable LLM provider
  - A page-aware editor with autosave
  - PDF export of the paginated book`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.typen/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "typen home directory (default: ~/.typen)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the home directory and loads configuration. Without
// --config, a config.yaml inside --home wins over the search path.
func loadConfig() (*home.Dir, *config.Manager, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}
	file := cfgFile
	if file == "" && homeDir != "" && h.ConfigExists() {
		file = h.ConfigPath()
	}
	cm, err := config.NewManager(file)
	if err != nil {
		return nil, nil, err
	}
	return h, cm, nil
}
