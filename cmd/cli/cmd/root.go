package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	apiKey  string
)

var rootCmd = &cobra.Command{
	Use:   "dfg",
	Short: "dockforge CLI - Prepare docking job bundles from the command line",
	Long: `dockforge CLI (dfg) is a command-line tool for driving a dockforge server.

It provides commands to create workspaces, stage receptors and ligands,
record docking-box centers, and assemble downloadable job bundles.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", getEnvOrDefault("DOCKFORGE_API_URL", "http://localhost:8080"), "dockforge API base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("DOCKFORGE_API_KEY"), "dockforge API key")
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}
