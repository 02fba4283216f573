package client

import (
	"context"

	"github.com/AlexVialaBellander/flower/internal/data"
	"github.com/AlexVialaBellander/flower/internal/model"
	"github.com/AlexVialaBellander/flower/internal/training"
	"github.com/AlexVialaBellander/flower/pkg/logger"
	"github.com/rs/zerolog"
)

// RawCifarClient is the same tutorial client written against the low-level
// Client interface: it decodes and encodes Parameters itself and builds its
// own response statuses. Functionally equivalent to CifarClient behind
// FromNumPyClient; the point is showing what the adapter does for you.
type RawCifarClient struct {
	cid   string
	net   *model.Net
	train *data.Loader
	val   *data.Loader
	cfg   LocalConfig
	log   zerolog.Logger
}

// NewRawCifarClient creates a Client-style client over the given train and
// validation loaders.
func NewRawCifarClient(cid string, net *model.Net, train, val *data.Loader, cfg LocalConfig) *RawCifarClient {
	return &RawCifarClient{
		cid:   cid,
		net:   net,
		train: train,
		val:   val,
		cfg:   cfg,
		log:   logger.Get().With().Str("component", "raw_client").Str("cid", cid).Logger(),
	}
}

// GetParameters serializes and returns the client's current model weights.
func (c *RawCifarClient) GetParameters(ctx context.Context, ins GetParametersIns) (GetParametersRes, error) {
	c.log.Debug().Msg("Returning current parameters")
	return GetParametersRes{
		Status:     Status{Code: OK, Message: "Success"},
		Parameters: WeightsToParameters(c.net.Parameters()),
	}, nil
}

// Fit deserializes the global weights, trains locally, and returns the
// updated weights in serialized form.
func (c *RawCifarClient) Fit(ctx context.Context, ins FitIns) (FitRes, error) {
	weights, err := ParametersToWeights(ins.Parameters)
	if err != nil {
		return FitRes{}, err
	}
	if err := c.net.SetParameters(weights); err != nil {
		return FitRes{}, err
	}

	cfg := training.Config{
		Epochs:       configInt(ins.Config, "local_epochs", c.cfg.Epochs),
		LearningRate: c.cfg.LearningRate,
		Momentum:     c.cfg.Momentum,
	}

	metrics, err := training.Train(ctx, c.net, c.train, cfg)
	if err != nil {
		return FitRes{}, err
	}

	c.log.Debug().
		Int("round", configInt(ins.Config, "server_round", 0)).
		Float64("loss", metrics.Loss).
		Msg("Local training complete")

	return FitRes{
		Status:      Status{Code: OK, Message: "Success"},
		Parameters:  WeightsToParameters(c.net.Parameters()),
		NumExamples: metrics.Samples,
		Metrics: Metrics{
			"loss":     metrics.Loss,
			"accuracy": metrics.Accuracy,
		},
	}, nil
}

// Evaluate deserializes the global weights and measures them on the
// client's validation split.
func (c *RawCifarClient) Evaluate(ctx context.Context, ins EvaluateIns) (EvaluateRes, error) {
	weights, err := ParametersToWeights(ins.Parameters)
	if err != nil {
		return EvaluateRes{}, err
	}
	if err := c.net.SetParameters(weights); err != nil {
		return EvaluateRes{}, err
	}

	metrics, err := training.Test(ctx, c.net, c.val)
	if err != nil {
		return EvaluateRes{}, err
	}

	return EvaluateRes{
		Status:      Status{Code: OK, Message: "Success"},
		Loss:        metrics.Loss,
		NumExamples: metrics.Samples,
		Metrics: Metrics{
			"accuracy": metrics.Accuracy,
		},
	}, nil
}
