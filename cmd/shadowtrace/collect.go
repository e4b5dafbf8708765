package main

import (
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vincentbai/shadowtrace/internal/database"
	"github.com/vincentbai/shadowtrace/internal/server"
)

func newCollectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Run the collection endpoint and store events in SQLite",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			logger := newLogger()

			databasePath := cfg.Collector.Database
			if databasePath == "" {
				databasePath = filepath.Join(applicationDirectory(), "events.db")
			}

			// Initialize database
			db, err := database.NewDatabase(databasePath)
			if err != nil {
				log.Fatal(err)
			}
			defer db.Close()

			// Initialize and start server
			srv := server.NewServer(db, cfg.Collector.Address,
				server.WithLogger(logger),
				server.WithRateLimit(cfg.Collector.RateLimit),
			)
			if err := srv.Start(); err != nil {
				log.Fatal(err)
			}
		},
	}
}

// applicationDirectory returns the platform app data dir, creating it.
func applicationDirectory() string {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		log.Fatal("Failed to get user home directory:", err)
	}

	var directory string
	switch runtime.GOOS {
	case "darwin":
		directory = filepath.Join(homeDirectory, "Library", "Application Support", "ShadowTrace")
	case "windows":
		directory = filepath.Join(homeDirectory, "AppData", "Roaming", "ShadowTrace")
	default: // linux and others
		directory = filepath.Join(homeDirectory, ".local", "share", "ShadowTrace")
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		log.Fatal("Failed to create application directory:", err)
	}
	return directory
}
