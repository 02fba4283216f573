package model

import (
	"fmt"
	"math/rand"

	"github.com/AlexVialaBellander/flower/internal/data"
)

// Net is the tutorial's convolutional network for CIFAR-10:
//
//	Input: [batch, 3, 32, 32]
//	Conv1: 3 -> 6 channels, 5x5  -> [batch, 6, 28, 28]
//	ReLU + MaxPool 2x2           -> [batch, 6, 14, 14]
//	Conv2: 6 -> 16 channels, 5x5 -> [batch, 16, 10, 10]
//	ReLU + MaxPool 2x2           -> [batch, 16, 5, 5]
//	Flatten                      -> [batch, 400]
//	FC1: 400 -> 120, ReLU
//	FC2: 120 -> 84, ReLU
//	FC3: 84 -> 10 (class scores)
type Net struct {
	conv1 *Conv2D
	relu1 *ReLU
	pool1 *MaxPool2D
	conv2 *Conv2D
	relu2 *ReLU
	pool2 *MaxPool2D
	fc1   *Linear
	relu3 *ReLU
	fc2   *Linear
	relu4 *ReLU
	fc3   *Linear
}

// NewNet creates the network with weights initialized from seed.
func NewNet(seed int64) *Net {
	rng := rand.New(rand.NewSource(seed))
	return &Net{
		conv1: NewConv2D(data.ImageChannels, 6, 5, rng),
		relu1: NewReLU(),
		pool1: NewMaxPool2D(),
		conv2: NewConv2D(6, 16, 5, rng),
		relu2: NewReLU(),
		pool2: NewMaxPool2D(),
		fc1:   NewLinear(16*5*5, 120, rng),
		relu3: NewReLU(),
		fc2:   NewLinear(120, 84, rng),
		relu4: NewReLU(),
		fc3:   NewLinear(84, data.NumClasses, rng),
	}
}

// Forward runs a batch of images through the network and returns the
// class logits, shaped [batch, NumClasses].
func (n *Net) Forward(images []float32, batch int) []float32 {
	x := n.conv1.Forward(images, batch, data.ImageHeight, data.ImageWidth)
	x = n.relu1.Forward(x)
	x = n.pool1.Forward(x, batch, 6, 28, 28)
	x = n.conv2.Forward(x, batch, 14, 14)
	x = n.relu2.Forward(x)
	x = n.pool2.Forward(x, batch, 16, 10, 10)
	x = n.fc1.Forward(x, batch)
	x = n.relu3.Forward(x)
	x = n.fc2.Forward(x, batch)
	x = n.relu4.Forward(x)
	return n.fc3.Forward(x, batch)
}

// Backward propagates the loss gradient w.r.t. the logits back through the
// network, leaving parameter gradients in each layer.
func (n *Net) Backward(gradLogits []float32) {
	g := n.fc3.Backward(gradLogits)
	g = n.relu4.Backward(g)
	g = n.fc2.Backward(g)
	g = n.relu3.Backward(g)
	g = n.fc1.Backward(g)
	g = n.pool2.Backward(g)
	g = n.relu2.Backward(g)
	g = n.conv2.Backward(g)
	g = n.pool1.Backward(g)
	g = n.relu1.Backward(g)
	n.conv1.Backward(g)
}

// Parameters returns copies of all weight tensors in layer order:
// conv1.w, conv1.b, conv2.w, conv2.b, fc1.w, fc1.b, fc2.w, fc2.b,
// fc3.w, fc3.b.
func (n *Net) Parameters() [][]float32 {
	views := n.ParameterViews()
	params := make([][]float32, len(views))
	for i, v := range views {
		params[i] = append([]float32(nil), v...)
	}
	return params
}

// SetParameters installs copies of the given weight tensors. The slice must
// match the order and sizes returned by Parameters.
func (n *Net) SetParameters(params [][]float32) error {
	views := n.ParameterViews()
	if len(params) != len(views) {
		return fmt.Errorf("expected %d parameter tensors, got %d", len(views), len(params))
	}
	for i, v := range views {
		if len(params[i]) != len(v) {
			return fmt.Errorf("parameter tensor %d has %d values, expected %d", i, len(params[i]), len(v))
		}
	}
	for i, v := range views {
		copy(v, params[i])
	}
	return nil
}

// ParameterViews returns the live weight tensors in layer order. Mutating
// the returned slices mutates the network.
func (n *Net) ParameterViews() [][]float32 {
	return [][]float32{
		n.conv1.Weights, n.conv1.Bias,
		n.conv2.Weights, n.conv2.Bias,
		n.fc1.Weights, n.fc1.Bias,
		n.fc2.Weights, n.fc2.Bias,
		n.fc3.Weights, n.fc3.Bias,
	}
}

// GradientViews returns the live gradient tensors, ordered like
// ParameterViews.
func (n *Net) GradientViews() [][]float32 {
	return [][]float32{
		n.conv1.GradWeights, n.conv1.GradBias,
		n.conv2.GradWeights, n.conv2.GradBias,
		n.fc1.GradWeights, n.fc1.GradBias,
		n.fc2.GradWeights, n.fc2.GradBias,
		n.fc3.GradWeights, n.fc3.GradBias,
	}
}

// NumParameters returns the total number of trainable values.
func (n *Net) NumParameters() int {
	total := 0
	for _, v := range n.ParameterViews() {
		total += len(v)
	}
	return total
}

// Predict returns the argmax class for each sample in a batch of logits.
func Predict(logits []float32, batch int) []int {
	preds := make([]int, batch)
	for i := 0; i < batch; i++ {
		row := logits[i*data.NumClasses : (i+1)*data.NumClasses]
		best := 0
		for c := 1; c < data.NumClasses; c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		preds[i] = best
	}
	return preds
}
