package training

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexVialaBellander/flower/internal/data"
	"github.com/AlexVialaBellander/flower/internal/model"
	"github.com/AlexVialaBellander/flower/pkg/logger"
)

func init() {
	logger.Init()
}

// separableDataset builds n samples of two trivially separable classes:
// class 0 images are filled with -0.8, class 1 images with +0.8.
func separableDataset(n int) *data.Dataset {
	ds := &data.Dataset{
		Images: make([]float32, n*data.ImageSize),
		Labels: make([]int, n),
	}
	for i := 0; i < n; i++ {
		v := float32(-0.8)
		if i%2 == 1 {
			v = 0.8
			ds.Labels[i] = 1
		}
		for j := 0; j < data.ImageSize; j++ {
			ds.Images[i*data.ImageSize+j] = v
		}
	}
	return ds
}

func TestTrain(t *testing.T) {
	t.Run("loss decreases on separable data", func(t *testing.T) {
		ds := separableDataset(16)
		net := model.NewNet(1)
		ctx := context.Background()

		before, err := Test(ctx, net, data.NewLoader(ds, 8, false, 0))
		require.NoError(t, err)

		metrics, err := Train(ctx, net, data.NewLoader(ds, 8, true, 1), Config{
			Epochs:       4,
			LearningRate: 0.005,
			Momentum:     0.9,
		})
		require.NoError(t, err)

		assert.Less(t, metrics.Loss, before.Loss)
		assert.Equal(t, 16, metrics.Samples)
		assert.Equal(t, 4, metrics.Epochs)
		assert.Greater(t, metrics.Duration.Nanoseconds(), int64(0))
	})

	t.Run("empty data", func(t *testing.T) {
		net := model.NewNet(1)
		_, err := Train(context.Background(), net, data.NewLoader(&data.Dataset{}, 8, false, 0), Config{
			Epochs:       1,
			LearningRate: 0.01,
		})
		assert.ErrorContains(t, err, "empty training data")
	})

	t.Run("invalid epochs", func(t *testing.T) {
		net := model.NewNet(1)
		_, err := Train(context.Background(), net, data.NewLoader(separableDataset(4), 4, false, 0), Config{
			Epochs:       0,
			LearningRate: 0.01,
		})
		assert.ErrorContains(t, err, "epochs")
	})

	t.Run("invalid learning rate", func(t *testing.T) {
		net := model.NewNet(1)
		_, err := Train(context.Background(), net, data.NewLoader(separableDataset(4), 4, false, 0), Config{
			Epochs:       1,
			LearningRate: 0,
		})
		assert.ErrorContains(t, err, "learning rate")
	})

	t.Run("canceled context", func(t *testing.T) {
		net := model.NewNet(1)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Train(ctx, net, data.NewLoader(separableDataset(4), 4, false, 0), Config{
			Epochs:       1,
			LearningRate: 0.01,
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTest(t *testing.T) {
	t.Run("reports loss and accuracy", func(t *testing.T) {
		ds := separableDataset(8)
		net := model.NewNet(1)

		metrics, err := Test(context.Background(), net, data.NewLoader(ds, 4, false, 0))
		require.NoError(t, err)
		assert.Greater(t, metrics.Loss, 0.0)
		assert.GreaterOrEqual(t, metrics.Accuracy, 0.0)
		assert.LessOrEqual(t, metrics.Accuracy, 1.0)
		assert.Equal(t, 8, metrics.Samples)
	})

	t.Run("empty data", func(t *testing.T) {
		net := model.NewNet(1)
		_, err := Test(context.Background(), net, data.NewLoader(&data.Dataset{}, 4, false, 0))
		assert.ErrorContains(t, err, "empty evaluation data")
	})
}

func TestSGDStep(t *testing.T) {
	t.Run("plain descent without momentum", func(t *testing.T) {
		opt := NewSGD(0.1, 0)
		params := [][]float32{{1, 2}}
		grads := [][]float32{{1, -1}}

		opt.Step(params, grads)
		assert.InDelta(t, 0.9, params[0][0], 1e-6)
		assert.InDelta(t, 2.1, params[0][1], 1e-6)
	})

	t.Run("momentum accumulates velocity", func(t *testing.T) {
		opt := NewSGD(0.1, 0.5)
		params := [][]float32{{0}}
		grads := [][]float32{{1}}

		opt.Step(params, grads) // v=1, p=-0.1
		opt.Step(params, grads) // v=1.5, p=-0.25
		assert.InDelta(t, -0.25, params[0][0], 1e-6)
	})
}
