package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd is the photo-ingest CLI.
var rootCmd = &cobra.Command{
	Use:   "photo-ingest",
	Short: "Ingest photos into object storage and serve them",
	Long: `photo-ingest normalizes user photos into full, medium and thumbnail JPEG
tiers, uploads them to object storage and records them in SQLite.

Configuration comes from the environment, an optional .env file and the
YAML file named by CONFIG_FILE.

Examples:
  photo-ingest serve
  photo-ingest upload --user alice ./holiday/*.jpg
  photo-ingest upload --concurrency 2 --retries 3 ./scans
  photo-ingest version`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is normal in containers.
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, uploadCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
