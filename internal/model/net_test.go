package model

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexVialaBellander/flower/internal/data"
)

func randomImages(batch int, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	images := make([]float32, batch*data.ImageSize)
	for i := range images {
		images[i] = float32(rng.Float64()*2 - 1)
	}
	return images
}

func TestNetForward(t *testing.T) {
	net := NewNet(1)
	batch := 3

	logits := net.Forward(randomImages(batch, 1), batch)
	require.Len(t, logits, batch*data.NumClasses)

	preds := Predict(logits, batch)
	require.Len(t, preds, batch)
	for _, p := range preds {
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, data.NumClasses)
	}
}

func TestNetParameters(t *testing.T) {
	t.Run("expected tensor count and total size", func(t *testing.T) {
		net := NewNet(1)
		params := net.Parameters()
		assert.Len(t, params, 10)
		assert.Equal(t, 62006, net.NumParameters())
	})

	t.Run("round trip", func(t *testing.T) {
		src := NewNet(1)
		dst := NewNet(2)

		require.NoError(t, dst.SetParameters(src.Parameters()))
		assert.Equal(t, src.Parameters(), dst.Parameters())
	})

	t.Run("returned parameters are copies", func(t *testing.T) {
		net := NewNet(1)
		params := net.Parameters()
		params[0][0] += 100

		assert.NotEqual(t, params[0][0], net.Parameters()[0][0])
	})

	t.Run("tensor count mismatch", func(t *testing.T) {
		net := NewNet(1)
		err := net.SetParameters(net.Parameters()[:5])
		assert.ErrorContains(t, err, "parameter tensors")
	})

	t.Run("tensor size mismatch", func(t *testing.T) {
		net := NewNet(1)
		params := net.Parameters()
		params[3] = params[3][:2]
		err := net.SetParameters(params)
		assert.ErrorContains(t, err, "values")
	})

	t.Run("same seed gives same weights", func(t *testing.T) {
		assert.Equal(t, NewNet(7).Parameters(), NewNet(7).Parameters())
	})
}

func TestNetBackwardProducesGradients(t *testing.T) {
	net := NewNet(1)
	batch := 2

	logits := net.Forward(randomImages(batch, 3), batch)
	_, probs := SoftmaxCrossEntropy(logits, []int{0, 1}, data.NumClasses)
	net.Backward(SoftmaxCrossEntropyBackward(probs, []int{0, 1}, data.NumClasses))

	nonZero := 0
	for _, g := range net.GradientViews() {
		for _, v := range g {
			if v != 0 {
				nonZero++
			}
		}
	}
	assert.Greater(t, nonZero, 1000, "backward should touch most gradients")
}
