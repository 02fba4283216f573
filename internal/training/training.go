package training

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/AlexVialaBellander/flower/internal/data"
	"github.com/AlexVialaBellander/flower/internal/model"
	"github.com/AlexVialaBellander/flower/pkg/logger"
)

// Config controls a local training run.
type Config struct {
	Epochs       int
	LearningRate float64
	Momentum     float64
}

// Metrics summarizes a training or evaluation run.
type Metrics struct {
	Loss     float64
	Accuracy float64
	Samples  int
	Epochs   int
	Duration time.Duration
}

// Train runs mini-batch SGD over the loader for the configured number of
// epochs and returns the metrics of the final epoch.
func Train(ctx context.Context, net *model.Net, loader *data.Loader, cfg Config) (Metrics, error) {
	if loader.Len() == 0 {
		return Metrics{}, fmt.Errorf("empty training data")
	}
	if cfg.Epochs < 1 {
		return Metrics{}, fmt.Errorf("epochs must be positive, got %d", cfg.Epochs)
	}
	if cfg.LearningRate <= 0 {
		return Metrics{}, fmt.Errorf("learning rate must be positive, got %f", cfg.LearningRate)
	}

	log := logger.Get().With().Str("component", "training").Logger()
	opt := NewSGD(cfg.LearningRate, cfg.Momentum)
	start := time.Now()

	var epochLoss, epochAccuracy float64
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		loader.Reset()

		totalLoss := 0.0
		correct := 0
		batchIdx := 0
		for {
			if err := ctx.Err(); err != nil {
				return Metrics{}, err
			}

			images, labels, ok := loader.Next()
			if !ok {
				break
			}
			batch := len(labels)

			logits := net.Forward(images, batch)
			loss, probs := model.SoftmaxCrossEntropy(logits, labels, data.NumClasses)
			if math.IsNaN(loss) || math.IsInf(loss, 0) {
				return Metrics{}, fmt.Errorf("training produced NaN/Inf loss at epoch %d, batch %d", epoch, batchIdx)
			}

			net.Backward(model.SoftmaxCrossEntropyBackward(probs, labels, data.NumClasses))
			opt.Step(net.ParameterViews(), net.GradientViews())

			totalLoss += loss * float64(batch)
			for i, pred := range model.Predict(logits, batch) {
				if pred == labels[i] {
					correct++
				}
			}
			batchIdx++
		}

		epochLoss = totalLoss / float64(loader.Len())
		epochAccuracy = float64(correct) / float64(loader.Len())
		log.Debug().
			Int("epoch", epoch+1).
			Float64("loss", epochLoss).
			Float64("accuracy", epochAccuracy).
			Msg("Epoch complete")
	}

	return Metrics{
		Loss:     epochLoss,
		Accuracy: epochAccuracy,
		Samples:  loader.Len(),
		Epochs:   cfg.Epochs,
		Duration: time.Since(start),
	}, nil
}

// Test evaluates the network over the loader and returns the average loss
// and accuracy.
func Test(ctx context.Context, net *model.Net, loader *data.Loader) (Metrics, error) {
	if loader.Len() == 0 {
		return Metrics{}, fmt.Errorf("empty evaluation data")
	}

	start := time.Now()
	loader.Reset()

	totalLoss := 0.0
	correct := 0
	for {
		if err := ctx.Err(); err != nil {
			return Metrics{}, err
		}

		images, labels, ok := loader.Next()
		if !ok {
			break
		}
		batch := len(labels)

		logits := net.Forward(images, batch)
		loss, _ := model.SoftmaxCrossEntropy(logits, labels, data.NumClasses)
		totalLoss += loss * float64(batch)
		for i, pred := range model.Predict(logits, batch) {
			if pred == labels[i] {
				correct++
			}
		}
	}

	return Metrics{
		Loss:     totalLoss / float64(loader.Len()),
		Accuracy: float64(correct) / float64(loader.Len()),
		Samples:  loader.Len(),
		Duration: time.Since(start),
	}, nil
}
