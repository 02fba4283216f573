package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AlexVialaBellander/flower/internal/config"
	"github.com/AlexVialaBellander/flower/internal/data"
	"github.com/AlexVialaBellander/flower/internal/model"
	"github.com/AlexVialaBellander/flower/internal/training"
	"github.com/AlexVialaBellander/flower/pkg/logger"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Centralized training on the full CIFAR-10 training set",
	Long:  `The warm-up before going federated: trains the CNN on all of CIFAR-10 at once and evaluates it on the test batch`,
	Run: func(cmd *cobra.Command, args []string) {
		RunTrain()
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func RunTrain() {
	log := logger.Get().With().Str("component", "cli").Logger()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	trainSet, err := data.LoadTrain(cfg.Data.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load training data (run `flower download` first)")
	}
	testSet, err := data.LoadTest(cfg.Data.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load test data")
	}

	net := model.NewNet(time.Now().UnixNano())
	log.Info().
		Int("train_samples", trainSet.Len()).
		Int("test_samples", testSet.Len()).
		Int("parameters", net.NumParameters()).
		Msg("Starting centralized training")

	trainLoader := data.NewLoader(trainSet, cfg.Training.BatchSize, true, time.Now().UnixNano())
	metrics, err := training.Train(ctx, net, trainLoader, training.Config{
		Epochs:       cfg.Training.Epochs,
		LearningRate: cfg.Training.LearningRate,
		Momentum:     cfg.Training.Momentum,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Training failed")
	}
	log.Info().
		Float64("loss", metrics.Loss).
		Float64("accuracy", metrics.Accuracy).
		Dur("duration", metrics.Duration).
		Msg("Training complete")

	testLoader := data.NewLoader(testSet, cfg.Training.BatchSize, false, 0)
	testMetrics, err := training.Test(ctx, net, testLoader)
	if err != nil {
		log.Fatal().Err(err).Msg("Evaluation failed")
	}
	log.Info().
		Float64("loss", testMetrics.Loss).
		Float64("accuracy", testMetrics.Accuracy).
		Msg("Test set evaluation")

	testLoader.Reset()
	if images, labels, ok := testLoader.Next(); ok {
		preds := model.Predict(net.Forward(images, len(labels)), len(labels))
		show := len(labels)
		if show > 8 {
			show = 8
		}
		for i := 0; i < show; i++ {
			log.Info().
				Str("predicted", data.Classes[preds[i]]).
				Str("actual", data.Classes[labels[i]]).
				Msg("Sample prediction")
		}
	}
}
