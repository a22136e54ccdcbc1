package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hellolucient/nether-chat-sub000/internal/config"
	"github.com/hellolucient/nether-chat-sub000/internal/db"
)

func main() {
	// A missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "netherchat",
		Short:        "Wallet-gated Discord chat relay",
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run database migrations and start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := db.Migrate(cfg.Postgres); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
