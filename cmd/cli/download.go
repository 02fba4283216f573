package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AlexVialaBellander/flower/internal/config"
	"github.com/AlexVialaBellander/flower/internal/data"
	"github.com/AlexVialaBellander/flower/pkg/logger"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download and extract the CIFAR-10 binary dataset",
	Run: func(cmd *cobra.Command, args []string) {
		RunDownload()
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}

func RunDownload() {
	log := logger.Get().With().Str("component", "cli").Logger()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := data.Download(ctx, cfg.Data.DownloadURL, cfg.Data.Dir); err != nil {
		log.Fatal().Err(err).Msg("Download failed")
	}
}
