package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

var configFile string

var rootCmd = &cobra.Command{
	Use:   "gitpress",
	Short: "Publish blog posts and thoughts from a GitHub repository",
	Long: `gitpress serves blog posts, thoughts, an about page and images that
live in a repository in each author's GitHub account.

Configuration comes from GITPRESS_* environment variables and an optional
config file. Running gitpress without a command starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gitpress version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gitpress %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml, toml or json)")
	rootCmd.AddCommand(serveCmd, bootstrapCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
