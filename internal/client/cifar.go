package client

import (
	"context"

	"github.com/AlexVialaBellander/flower/internal/data"
	"github.com/AlexVialaBellander/flower/internal/model"
	"github.com/AlexVialaBellander/flower/internal/training"
	"github.com/AlexVialaBellander/flower/pkg/logger"
	"github.com/rs/zerolog"
)

// LocalConfig holds the local-training settings a CIFAR client falls back to
// when the server sends no overrides.
type LocalConfig struct {
	Epochs       int
	LearningRate float64
	Momentum     float64
}

// CifarClient trains the tutorial CNN on one client's CIFAR-10 shard. It
// implements NumPyClient: weights cross the API as plain tensors and
// FromNumPyClient takes care of serialization.
type CifarClient struct {
	cid   string
	net   *model.Net
	train *data.Loader
	val   *data.Loader
	cfg   LocalConfig
	log   zerolog.Logger
}

// NewCifarClient creates a NumPyClient-style client over the given train and
// validation loaders.
func NewCifarClient(cid string, net *model.Net, train, val *data.Loader, cfg LocalConfig) *CifarClient {
	return &CifarClient{
		cid:   cid,
		net:   net,
		train: train,
		val:   val,
		cfg:   cfg,
		log:   logger.Get().With().Str("component", "client").Str("cid", cid).Logger(),
	}
}

// GetParameters returns the client's current model weights.
func (c *CifarClient) GetParameters(ctx context.Context, config Config) ([][]float32, error) {
	c.log.Debug().Msg("Returning current parameters")
	return c.net.Parameters(), nil
}

// Fit installs the global weights, trains locally, and returns the updated
// weights along with the number of training examples.
func (c *CifarClient) Fit(ctx context.Context, weights [][]float32, config Config) ([][]float32, int, Metrics, error) {
	if err := c.net.SetParameters(weights); err != nil {
		return nil, 0, nil, err
	}

	cfg := training.Config{
		Epochs:       configInt(config, "local_epochs", c.cfg.Epochs),
		LearningRate: c.cfg.LearningRate,
		Momentum:     c.cfg.Momentum,
	}

	metrics, err := training.Train(ctx, c.net, c.train, cfg)
	if err != nil {
		return nil, 0, nil, err
	}

	c.log.Debug().
		Int("round", configInt(config, "server_round", 0)).
		Float64("loss", metrics.Loss).
		Float64("accuracy", metrics.Accuracy).
		Msg("Local training complete")

	return c.net.Parameters(), metrics.Samples, Metrics{
		"loss":     metrics.Loss,
		"accuracy": metrics.Accuracy,
	}, nil
}

// Evaluate installs the global weights and measures them on the client's
// validation split.
func (c *CifarClient) Evaluate(ctx context.Context, weights [][]float32, config Config) (float64, int, Metrics, error) {
	if err := c.net.SetParameters(weights); err != nil {
		return 0, 0, nil, err
	}

	metrics, err := training.Test(ctx, c.net, c.val)
	if err != nil {
		return 0, 0, nil, err
	}

	return metrics.Loss, metrics.Samples, Metrics{
		"accuracy": metrics.Accuracy,
	}, nil
}

// configInt reads an integer config value, tolerating the numeric types a
// generic map may carry.
func configInt(config Config, key string, fallback int) int {
	if config == nil {
		return fallback
	}
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
