package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/eringen/gitpress"
	"github.com/eringen/gitpress/views"
)

var bootstrapToken string

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create or repair the content repository for a token's user",
	Long: `Ensure the content repository exists for the user owning the token and
holds the expected skeleton: README, content/blog/ and content/thoughts.json.

Existing content is never overwritten. The token is read from --token or
GITPRESS_TOKEN.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token := bootstrapToken
		if token == "" {
			token = os.Getenv("GITPRESS_TOKEN")
		}
		if token == "" {
			return fmt.Errorf("a token is required (--token or GITPRESS_TOKEN)")
		}

		cfg, err := gitpress.LoadConfig(configFile)
		if err != nil {
			return err
		}
		logger, closer, err := gitpress.NewLogger(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return err
		}
		defer closer.Close()

		app := gitpress.New(cfg, views.Default(), gitpress.WithLogger(logger))
		if err := app.Setup(); err != nil {
			return err
		}
		defer app.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		login, err := app.Backend.Authenticate(ctx, token)
		if err != nil {
			return err
		}
		repo := app.Backend.Repository(token, login)
		if err := app.Content.EnsureStructure(ctx, repo); err != nil {
			return err
		}
		fmt.Printf("%s/%s is ready\n", login, repo.Name())
		return nil
	},
}

func init() {
	bootstrapCmd.Flags().StringVar(&bootstrapToken, "token", "", "GitHub token of the repository owner")
}
