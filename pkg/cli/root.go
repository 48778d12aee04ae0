// Package cli implements the devproxy command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Persistent flags available to all subcommands.
	adminURL   string
	jsonOutput bool

	// Version is injected during build.
	Version = "dev"
	// Commit is injected during build.
	Commit = "none"
	// BuildDate is injected during build.
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "devproxy",
	Short: "devproxy is a local front-end development proxy with mocks and scenarios",
	Long: `devproxy sits between your browser and your backends: it resolves the
project a request belongs to, answers from the active mock scenario when a
rule matches, and transparently forwards everything else upstream. Record
mode turns live responses into mock rules.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Called by main.
func Execute() {
	// A .env in the working directory supplies DEVPROXY_* knobs.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	defaultURL := os.Getenv("DEVPROXY_ADMIN_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:4040"
	}
	rootCmd.PersistentFlags().StringVar(&adminURL, "admin-url", defaultURL, "Admin API base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results as JSON")
}

func client() *Client {
	return NewClient(adminURL)
}
