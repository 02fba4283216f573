package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/AlexVialaBellander/flower/pkg/logger"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "flower",
	Short: "Federated CIFAR-10 client tutorial",
	Long:  `Demonstrates the NumPyClient and Client API styles for federated learning, training a small CNN on CIFAR-10 shards`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init()
		if debug {
			logger.SetDebug()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
