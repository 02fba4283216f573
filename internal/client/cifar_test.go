package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexVialaBellander/flower/internal/data"
	"github.com/AlexVialaBellander/flower/internal/model"
)

// shardDataset builds a small two-class shard.
func shardDataset(n int) *data.Dataset {
	ds := &data.Dataset{
		Images: make([]float32, n*data.ImageSize),
		Labels: make([]int, n),
	}
	for i := 0; i < n; i++ {
		v := float32(-0.5)
		if i%2 == 1 {
			v = 0.5
			ds.Labels[i] = 1
		}
		for j := 0; j < data.ImageSize; j++ {
			ds.Images[i*data.ImageSize+j] = v
		}
	}
	return ds
}

func newTestCifarClient(t *testing.T, netSeed int64) (*CifarClient, *data.Dataset) {
	t.Helper()
	train := shardDataset(8)
	val := shardDataset(4)
	cfg := LocalConfig{Epochs: 1, LearningRate: 0.01, Momentum: 0.9}
	c := NewCifarClient("0", model.NewNet(netSeed), data.NewLoader(train, 4, true, 1), data.NewLoader(val, 4, false, 0), cfg)
	return c, train
}

func TestCifarClient(t *testing.T) {
	ctx := context.Background()

	t.Run("get parameters", func(t *testing.T) {
		c, _ := newTestCifarClient(t, 1)
		weights, err := c.GetParameters(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, weights, 10)
	})

	t.Run("fit trains and reports the shard size", func(t *testing.T) {
		c, train := newTestCifarClient(t, 1)
		initial := model.NewNet(1).Parameters()

		updated, numExamples, metrics, err := c.Fit(ctx, initial, Config{"server_round": 1})
		require.NoError(t, err)
		assert.Equal(t, train.Len(), numExamples)
		assert.Contains(t, metrics, "loss")
		assert.NotEqual(t, initial, updated, "training should move the weights")
	})

	t.Run("fit respects local_epochs override", func(t *testing.T) {
		c, _ := newTestCifarClient(t, 1)
		initial := model.NewNet(1).Parameters()

		_, _, _, err := c.Fit(ctx, initial, Config{"local_epochs": 2})
		require.NoError(t, err)
	})

	t.Run("evaluate reports the validation size", func(t *testing.T) {
		c, _ := newTestCifarClient(t, 1)

		loss, numExamples, metrics, err := c.Evaluate(ctx, model.NewNet(1).Parameters(), nil)
		require.NoError(t, err)
		assert.Greater(t, loss, 0.0)
		assert.Equal(t, 4, numExamples)
		assert.Contains(t, metrics, "accuracy")
	})

	t.Run("rejects mismatched parameters", func(t *testing.T) {
		c, _ := newTestCifarClient(t, 1)
		_, _, _, err := c.Fit(ctx, [][]float32{{1}}, nil)
		assert.Error(t, err)
	})
}

// The two API styles must be functionally identical: the same seeds and the
// same ins message produce byte-identical fit results.
func TestClientStylesAgree(t *testing.T) {
	ctx := context.Background()
	cfg := LocalConfig{Epochs: 1, LearningRate: 0.01, Momentum: 0.9}

	makeLoaders := func() (*data.Loader, *data.Loader) {
		return data.NewLoader(shardDataset(8), 4, true, 1), data.NewLoader(shardDataset(4), 4, false, 0)
	}

	trainA, valA := makeLoaders()
	numpyStyle := FromNumPyClient(NewCifarClient("0", model.NewNet(7), trainA, valA, cfg))

	trainB, valB := makeLoaders()
	rawStyle := NewRawCifarClient("0", model.NewNet(7), trainB, valB, cfg)

	ins := FitIns{
		Parameters: WeightsToParameters(model.NewNet(3).Parameters()),
		Config:     Config{"server_round": 1},
	}

	resA, err := numpyStyle.Fit(ctx, ins)
	require.NoError(t, err)
	resB, err := rawStyle.Fit(ctx, ins)
	require.NoError(t, err)

	assert.Equal(t, resA.Status, resB.Status)
	assert.Equal(t, resA.NumExamples, resB.NumExamples)
	assert.Equal(t, resA.Parameters, resB.Parameters)

	evalIns := EvaluateIns{Parameters: resA.Parameters}
	evalA, err := numpyStyle.Evaluate(ctx, evalIns)
	require.NoError(t, err)
	evalB, err := rawStyle.Evaluate(ctx, evalIns)
	require.NoError(t, err)

	assert.Equal(t, evalA.Loss, evalB.Loss)
	assert.Equal(t, evalA.NumExamples, evalB.NumExamples)
}
