package model

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConv2D(t *testing.T) {
	// 1 input channel, 1 output channel, 2x2 kernel with weights
	// [[1, 0], [0, 1]] and bias 0.5 over a 3x3 input 1..9.
	conv := NewConv2D(1, 1, 2, rand.New(rand.NewSource(1)))
	copy(conv.Weights, []float32{1, 0, 0, 1})
	conv.Bias[0] = 0.5

	x := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}

	t.Run("forward", func(t *testing.T) {
		out := conv.Forward(x, 1, 3, 3)
		assert.Equal(t, []float32{6.5, 8.5, 12.5, 14.5}, out)
	})

	t.Run("backward", func(t *testing.T) {
		conv.Forward(x, 1, 3, 3)
		gradIn := conv.Backward([]float32{1, 1, 1, 1})

		// dB = sum of output gradients
		assert.Equal(t, float32(4), conv.GradBias[0])
		// dW[kh][kw] = sum over output positions of x[oh+kh][ow+kw]
		assert.Equal(t, float32(12), conv.GradWeights[0]) // x11+x12+x21+x22
		assert.Equal(t, float32(28), conv.GradWeights[3]) // x22+x23+x32+x33
		// The input center participates via both non-zero kernel taps.
		assert.Equal(t, float32(2), gradIn[4])
	})

	t.Run("backward matches numeric gradient", func(t *testing.T) {
		rng := rand.New(rand.NewSource(2))
		conv := NewConv2D(2, 3, 2, rng)
		x := make([]float32, 2*4*4)
		for i := range x {
			x[i] = float32(rng.NormFloat64())
		}
		g := make([]float32, 3*3*3)
		for i := range g {
			g[i] = float32(rng.NormFloat64())
		}

		// L(W) = sum(Forward(x) * g)
		loss := func() float64 {
			out := conv.Forward(x, 1, 4, 4)
			sum := 0.0
			for i, v := range out {
				sum += float64(v) * float64(g[i])
			}
			return sum
		}

		loss()
		conv.Backward(g)
		analytic := append([]float32(nil), conv.GradWeights...)

		const eps = 1e-2
		for _, i := range []int{0, 7, 13, len(conv.Weights) - 1} {
			orig := conv.Weights[i]
			conv.Weights[i] = orig + eps
			up := loss()
			conv.Weights[i] = orig - eps
			down := loss()
			conv.Weights[i] = orig

			numeric := (up - down) / (2 * eps)
			assert.InDelta(t, numeric, float64(analytic[i]), 1e-2, "weight %d", i)
		}
	})
}

func TestMaxPool2D(t *testing.T) {
	pool := NewMaxPool2D()

	// 4x4 input with strictly increasing values: each 2x2 window's max is
	// its bottom-right element.
	x := make([]float32, 16)
	for i := range x {
		x[i] = float32(i)
	}

	out := pool.Forward(x, 1, 1, 4, 4)
	assert.Equal(t, []float32{5, 7, 13, 15}, out)

	gradIn := pool.Backward([]float32{1, 2, 3, 4})
	expected := make([]float32, 16)
	expected[5] = 1
	expected[7] = 2
	expected[13] = 3
	expected[15] = 4
	assert.Equal(t, expected, gradIn)
}

func TestReLU(t *testing.T) {
	relu := NewReLU()
	out := relu.Forward([]float32{-1, 0, 2, -3, 4})
	assert.Equal(t, []float32{0, 0, 2, 0, 4}, out)

	gradIn := relu.Backward([]float32{1, 1, 1, 1, 1})
	assert.Equal(t, []float32{0, 0, 1, 0, 1}, gradIn)
}

func TestLinear(t *testing.T) {
	lin := NewLinear(2, 2, rand.New(rand.NewSource(1)))
	copy(lin.Weights, []float32{1, 2, 3, 4}) // [[1,2],[3,4]]
	copy(lin.Bias, []float32{0, 0})

	t.Run("forward", func(t *testing.T) {
		out := lin.Forward([]float32{1, 1}, 1)
		assert.Equal(t, []float32{3, 7}, out)
	})

	t.Run("backward", func(t *testing.T) {
		lin.Forward([]float32{1, 1}, 1)
		gradIn := lin.Backward([]float32{1, 2})

		assert.Equal(t, []float32{1, 2}, lin.GradBias)
		assert.Equal(t, []float32{1, 1, 2, 2}, lin.GradWeights)
		assert.Equal(t, []float32{7, 10}, gradIn) // W^T * g
	})
}

func TestSoftmaxCrossEntropy(t *testing.T) {
	t.Run("uniform logits", func(t *testing.T) {
		logits := make([]float32, 4)
		loss, probs := SoftmaxCrossEntropy(logits, []int{2}, 4)
		assert.InDelta(t, math.Log(4), loss, 1e-6)
		for _, p := range probs {
			assert.InDelta(t, 0.25, p, 1e-6)
		}
	})

	t.Run("backward is probs minus one-hot over batch", func(t *testing.T) {
		logits := make([]float32, 8) // batch 2, 4 classes
		_, probs := SoftmaxCrossEntropy(logits, []int{0, 3}, 4)
		grad := SoftmaxCrossEntropyBackward(probs, []int{0, 3}, 4)

		assert.InDelta(t, (0.25-1)/2, grad[0], 1e-6)
		assert.InDelta(t, 0.25/2, grad[1], 1e-6)
		assert.InDelta(t, (0.25-1)/2, grad[7], 1e-6)
	})

	t.Run("confident correct prediction has low loss", func(t *testing.T) {
		logits := []float32{10, -10, -10, -10}
		loss, _ := SoftmaxCrossEntropy(logits, []int{0}, 4)
		assert.Less(t, loss, 0.01)
	})

	t.Run("gradients sum to zero per sample", func(t *testing.T) {
		logits := []float32{0.3, -1.2, 2.5, 0.1}
		_, probs := SoftmaxCrossEntropy(logits, []int{1}, 4)
		grad := SoftmaxCrossEntropyBackward(probs, []int{1}, 4)

		sum := float32(0)
		for _, g := range grad {
			sum += g
		}
		assert.InDelta(t, 0, sum, 1e-6)
	})
}

func TestXavierInit(t *testing.T) {
	w := make([]float32, 1000)
	xavierInit(w, 100, 100, rand.New(rand.NewSource(1)))

	limit := float32(math.Sqrt(6.0 / 200.0))
	nonZero := 0
	for _, v := range w {
		require.LessOrEqual(t, v, limit)
		require.GreaterOrEqual(t, v, -limit)
		if v != 0 {
			nonZero++
		}
	}
	assert.Greater(t, nonZero, 990)
}
