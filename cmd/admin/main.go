package main

import (
	"fmt"
	"os"

	"github.com/sportsocial/backend/internal/config"
	"github.com/sportsocial/backend/internal/database"
	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/repository"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	output   string = "text" // "text" or "json"
	logLevel string = "warn"

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sports-social-admin",
	Short: "Sports Social admin - migrate, seed and manage the database",
	Long: `Operator tooling for a Sports Social deployment. Commands connect to the
database configured by DATABASE_DRIVER and DATABASE_URL (or the DB_* keys).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(logLevel, ""); err != nil {
			return err
		}
		cfg, _ = config.Load()
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is not set")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "Log level: debug, info, warn or error")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(statsCmd)
}

// openStore connects and migrates, so every command sees the current schema.
func openStore() (*gorm.DB, *repository.Store, error) {
	db, err := database.Initialize(database.Options{
		Driver: cfg.DatabaseDriver,
		DSN:    cfg.DatabaseURL,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, repository.NewStore(db), nil
}

func main() {
	defer logger.Close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
