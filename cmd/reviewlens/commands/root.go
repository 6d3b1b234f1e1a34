package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"reviewlens-client/lib/configutil"
	"reviewlens-client/lib/kvstore"
	"reviewlens-client/lib/reviewlens"
	"reviewlens-client/lib/serviceutil"
	"reviewlens-client/lib/telemetry"

	"github.com/spf13/cobra"
)

type Config struct {
	BaseUrl string `json:"base_url" validate:"required"`
	// DataDir holds the local session/result store. Defaults to
	// ".reviewlens" next to the config.
	DataDir string `json:"data_dir"`
	// Driver selects the store backend: "badger" (default) or
	// "sqlite".
	Driver string `json:"driver"`
}

var verbose *bool

var rootCmd = &cobra.Command{
	Use:   "reviewlens",
	Short: "reviewlens is a CLI for the review scraping and sentiment analysis backend.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(cfg Config) kvstore.Store {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = ".reviewlens"
	}
	err := os.MkdirAll(dataDir, 0o755)
	if err != nil {
		serviceutil.Fatal("failed to create data directory", err)
	}

	var store kvstore.Store
	switch cfg.Driver {
	case "sqlite":
		store, err = kvstore.OpenSqlite(filepath.Join(dataDir, "reviewlens.db"))
	default:
		store, err = kvstore.OpenBadger(kvstore.BadgerOptions{
			Path: filepath.Join(dataDir, "badger"),
		})
	}
	if err != nil {
		serviceutil.Fatal("failed to open local store", err)
	}
	return store
}

// createClient builds the fully wired client every subcommand runs
// against, restoring any persisted session up front.
func createClient(ctx context.Context) (*reviewlens.Client, func()) {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	client, err := reviewlens.New(ctx, reviewlens.Options{
		BaseUrl: cfg.BaseUrl,
		Store:   openStore(cfg),
		OnAuthExpired: func() {
			fmt.Fprintln(os.Stderr, "Your session has expired. Please log in again.")
		},
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize client", err)
	}

	client.Session.InitializeAuth(ctx)

	return client, func() {
		err := client.Close()
		if err != nil {
			serviceutil.Fatal("failed to close local store", err)
		}
	}
}
