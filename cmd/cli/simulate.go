package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AlexVialaBellander/flower/internal/client"
	"github.com/AlexVialaBellander/flower/internal/config"
	"github.com/AlexVialaBellander/flower/internal/data"
	"github.com/AlexVialaBellander/flower/internal/model"
	"github.com/AlexVialaBellander/flower/internal/simulation"
	"github.com/AlexVialaBellander/flower/internal/telemetry"
	"github.com/AlexVialaBellander/flower/pkg/logger"
)

const partitionSeed = 42

var (
	clientStyle string
	numClients  int
	numRounds   int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a federated simulation over virtual CIFAR-10 clients",
	Long:  `Partitions CIFAR-10 across virtual clients and drives federated rounds against them; --style picks which client API style backs the clients`,
	Run: func(cmd *cobra.Command, args []string) {
		RunSimulate()
	},
}

func init() {
	simulateCmd.Flags().StringVar(&clientStyle, "style", "numpy", "client API style: numpy or raw")
	simulateCmd.Flags().IntVar(&numClients, "clients", 0, "number of virtual clients (overrides config)")
	simulateCmd.Flags().IntVar(&numRounds, "rounds", 0, "number of federated rounds (overrides config)")
	rootCmd.AddCommand(simulateCmd)
}

func RunSimulate() {
	log := logger.Get().With().Str("component", "cli").Logger()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if numClients > 0 {
		cfg.Federation.NumClients = numClients
	}
	if numRounds > 0 {
		cfg.Federation.NumRounds = numRounds
	}
	if clientStyle != "numpy" && clientStyle != "raw" {
		log.Fatal().Str("style", clientStyle).Msg("Unknown client style, expected numpy or raw")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.MetricsAddr != "" {
		srv := telemetry.StartMetricsServer(cfg.Telemetry.MetricsAddr)
		defer srv.Close()
	}

	trainSet, err := data.LoadTrain(cfg.Data.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load training data (run `flower download` first)")
	}

	shards, err := data.Partition(trainSet, cfg.Federation.NumClients, partitionSeed)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to partition dataset")
	}

	localCfg := client.LocalConfig{
		Epochs:       cfg.Federation.LocalEpochs,
		LearningRate: cfg.Training.LearningRate,
		Momentum:     cfg.Training.Momentum,
	}

	clientFn := func(cid string) (client.Client, error) {
		idx, err := strconv.Atoi(cid)
		if err != nil || idx < 0 || idx >= len(shards) {
			return nil, fmt.Errorf("invalid client id %q", cid)
		}

		train, val, err := data.SplitTrainVal(shards[idx], cfg.Federation.ValRatio, partitionSeed+int64(idx))
		if err != nil {
			return nil, err
		}

		net := model.NewNet(time.Now().UnixNano() + int64(idx))
		trainLoader := data.NewLoader(train, cfg.Training.BatchSize, true, int64(idx))
		valLoader := data.NewLoader(val, cfg.Training.BatchSize, false, 0)

		if clientStyle == "raw" {
			return client.NewRawCifarClient(cid, net, trainLoader, valLoader, localCfg), nil
		}
		return client.FromNumPyClient(client.NewCifarClient(cid, net, trainLoader, valLoader, localCfg)), nil
	}

	history, err := simulation.Start(ctx, simulation.Config{
		NumClients:  cfg.Federation.NumClients,
		NumRounds:   cfg.Federation.NumRounds,
		FractionFit: cfg.Federation.FractionFit,
		LocalEpochs: cfg.Federation.LocalEpochs,
		Seed:        time.Now().UnixNano(),
		ClientFn:    clientFn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Simulation failed")
	}

	for i, lm := range history.Losses {
		log.Info().
			Int("round", lm.Round).
			Float64("loss", lm.Value).
			Float64("accuracy", history.Accuracies[i].Value).
			Msg("History")
	}
}
