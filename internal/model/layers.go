package model

import (
	"math"
	"math/rand"
)

// Conv2D is a 2D convolution layer over NCHW float32 data, stride 1 and no
// padding (all this network needs). Weights are laid out
// [outC, inC, k, k] row-major.
type Conv2D struct {
	InChannels  int
	OutChannels int
	KernelSize  int

	Weights []float32
	Bias    []float32

	GradWeights []float32
	GradBias    []float32

	// forward cache
	input      []float32
	batch      int
	inH, inW   int
	outH, outW int
}

// NewConv2D creates a convolution layer with Xavier-initialized weights.
func NewConv2D(inChannels, outChannels, kernelSize int, rng *rand.Rand) *Conv2D {
	c := &Conv2D{
		InChannels:  inChannels,
		OutChannels: outChannels,
		KernelSize:  kernelSize,
		Weights:     make([]float32, outChannels*inChannels*kernelSize*kernelSize),
		Bias:        make([]float32, outChannels),
		GradWeights: make([]float32, outChannels*inChannels*kernelSize*kernelSize),
		GradBias:    make([]float32, outChannels),
	}

	fanIn := inChannels * kernelSize * kernelSize
	fanOut := outChannels * kernelSize * kernelSize
	xavierInit(c.Weights, fanIn, fanOut, rng)
	smallInit(c.Bias, rng)
	return c
}

// Forward computes the convolution of x, shaped [batch, inC, h, w].
func (c *Conv2D) Forward(x []float32, batch, h, w int) []float32 {
	k := c.KernelSize
	outH := h - k + 1
	outW := w - k + 1

	c.input = x
	c.batch = batch
	c.inH, c.inW = h, w
	c.outH, c.outW = outH, outW

	out := make([]float32, batch*c.OutChannels*outH*outW)
	for n := 0; n < batch; n++ {
		for oc := 0; oc < c.OutChannels; oc++ {
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					sum := c.Bias[oc]
					for ic := 0; ic < c.InChannels; ic++ {
						for kh := 0; kh < k; kh++ {
							xRow := x[((n*c.InChannels+ic)*h+oh+kh)*w+ow:]
							wRow := c.Weights[((oc*c.InChannels+ic)*k+kh)*k:]
							for kw := 0; kw < k; kw++ {
								sum += xRow[kw] * wRow[kw]
							}
						}
					}
					out[((n*c.OutChannels+oc)*outH+oh)*outW+ow] = sum
				}
			}
		}
	}
	return out
}

// Backward takes the gradient w.r.t. the layer output and returns the
// gradient w.r.t. the input, accumulating weight and bias gradients.
func (c *Conv2D) Backward(gradOut []float32) []float32 {
	k := c.KernelSize
	zero(c.GradWeights)
	zero(c.GradBias)

	gradIn := make([]float32, c.batch*c.InChannels*c.inH*c.inW)
	for n := 0; n < c.batch; n++ {
		for oc := 0; oc < c.OutChannels; oc++ {
			for oh := 0; oh < c.outH; oh++ {
				for ow := 0; ow < c.outW; ow++ {
					g := gradOut[((n*c.OutChannels+oc)*c.outH+oh)*c.outW+ow]
					if g == 0 {
						continue
					}
					c.GradBias[oc] += g
					for ic := 0; ic < c.InChannels; ic++ {
						for kh := 0; kh < k; kh++ {
							xRow := c.input[((n*c.InChannels+ic)*c.inH+oh+kh)*c.inW+ow:]
							gRow := gradIn[((n*c.InChannels+ic)*c.inH+oh+kh)*c.inW+ow:]
							wRow := c.Weights[((oc*c.InChannels+ic)*k+kh)*k:]
							dwRow := c.GradWeights[((oc*c.InChannels+ic)*k+kh)*k:]
							for kw := 0; kw < k; kw++ {
								dwRow[kw] += xRow[kw] * g
								gRow[kw] += wRow[kw] * g
							}
						}
					}
				}
			}
		}
	}
	return gradIn
}

// MaxPool2D is a 2x2 max pooling layer with stride 2.
type MaxPool2D struct {
	// argmax holds, for each output element, the flat input index that won.
	argmax []int

	batch, channels int
	inH, inW        int
	outH, outW      int
}

// NewMaxPool2D creates a 2x2/stride-2 pooling layer.
func NewMaxPool2D() *MaxPool2D {
	return &MaxPool2D{}
}

// Forward pools x, shaped [batch, channels, h, w]. h and w must be even.
func (p *MaxPool2D) Forward(x []float32, batch, channels, h, w int) []float32 {
	outH := h / 2
	outW := w / 2

	p.batch, p.channels = batch, channels
	p.inH, p.inW = h, w
	p.outH, p.outW = outH, outW

	out := make([]float32, batch*channels*outH*outW)
	p.argmax = make([]int, len(out))

	for n := 0; n < batch; n++ {
		for c := 0; c < channels; c++ {
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					best := -1
					var bestVal float32
					for dh := 0; dh < 2; dh++ {
						for dw := 0; dw < 2; dw++ {
							idx := ((n*channels+c)*h+oh*2+dh)*w + ow*2 + dw
							if best < 0 || x[idx] > bestVal {
								best = idx
								bestVal = x[idx]
							}
						}
					}
					outIdx := ((n*channels+c)*outH+oh)*outW + ow
					out[outIdx] = bestVal
					p.argmax[outIdx] = best
				}
			}
		}
	}
	return out
}

// Backward routes output gradients to the winning input positions.
func (p *MaxPool2D) Backward(gradOut []float32) []float32 {
	gradIn := make([]float32, p.batch*p.channels*p.inH*p.inW)
	for i, idx := range p.argmax {
		gradIn[idx] += gradOut[i]
	}
	return gradIn
}

// ReLU is an elementwise rectifier.
type ReLU struct {
	mask []bool
}

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward applies max(0, x) elementwise.
func (r *ReLU) Forward(x []float32) []float32 {
	out := make([]float32, len(x))
	r.mask = make([]bool, len(x))
	for i, v := range x {
		if v > 0 {
			out[i] = v
			r.mask[i] = true
		}
	}
	return out
}

// Backward zeroes gradients where the input was non-positive.
func (r *ReLU) Backward(gradOut []float32) []float32 {
	gradIn := make([]float32, len(gradOut))
	for i, pass := range r.mask {
		if pass {
			gradIn[i] = gradOut[i]
		}
	}
	return gradIn
}

// Linear is a fully connected layer. Weights are laid out [out, in]
// row-major.
type Linear struct {
	In  int
	Out int

	Weights []float32
	Bias    []float32

	GradWeights []float32
	GradBias    []float32

	input []float32
	batch int
}

// NewLinear creates a fully connected layer with Xavier-initialized weights.
func NewLinear(in, out int, rng *rand.Rand) *Linear {
	l := &Linear{
		In:          in,
		Out:         out,
		Weights:     make([]float32, out*in),
		Bias:        make([]float32, out),
		GradWeights: make([]float32, out*in),
		GradBias:    make([]float32, out),
	}
	xavierInit(l.Weights, in, out, rng)
	smallInit(l.Bias, rng)
	return l
}

// Forward computes y = Wx + b for a batch of flattened inputs.
func (l *Linear) Forward(x []float32, batch int) []float32 {
	l.input = x
	l.batch = batch

	out := make([]float32, batch*l.Out)
	for n := 0; n < batch; n++ {
		xRow := x[n*l.In : (n+1)*l.In]
		for o := 0; o < l.Out; o++ {
			sum := l.Bias[o]
			wRow := l.Weights[o*l.In : (o+1)*l.In]
			for i, xv := range xRow {
				sum += wRow[i] * xv
			}
			out[n*l.Out+o] = sum
		}
	}
	return out
}

// Backward takes the gradient w.r.t. the output and returns the gradient
// w.r.t. the input, accumulating weight and bias gradients.
func (l *Linear) Backward(gradOut []float32) []float32 {
	zero(l.GradWeights)
	zero(l.GradBias)

	gradIn := make([]float32, l.batch*l.In)
	for n := 0; n < l.batch; n++ {
		xRow := l.input[n*l.In : (n+1)*l.In]
		gRow := gradIn[n*l.In : (n+1)*l.In]
		for o := 0; o < l.Out; o++ {
			g := gradOut[n*l.Out+o]
			if g == 0 {
				continue
			}
			l.GradBias[o] += g
			wRow := l.Weights[o*l.In : (o+1)*l.In]
			dwRow := l.GradWeights[o*l.In : (o+1)*l.In]
			for i, xv := range xRow {
				dwRow[i] += xv * g
				gRow[i] += wRow[i] * g
			}
		}
	}
	return gradIn
}

// SoftmaxCrossEntropy computes the mean cross-entropy loss over a batch of
// logits and returns the class probabilities for the backward pass.
func SoftmaxCrossEntropy(logits []float32, labels []int, classes int) (float64, []float32) {
	batch := len(labels)
	probs := make([]float32, len(logits))
	loss := 0.0

	for n := 0; n < batch; n++ {
		row := logits[n*classes : (n+1)*classes]

		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}

		sum := 0.0
		for c, v := range row {
			e := math.Exp(float64(v - maxVal))
			probs[n*classes+c] = float32(e)
			sum += e
		}

		p := 0.0
		for c := range row {
			q := float64(probs[n*classes+c]) / sum
			probs[n*classes+c] = float32(q)
			if c == labels[n] {
				p = q
			}
		}

		// Clamp to avoid log(0) on confident wrong predictions.
		if p < 1e-12 {
			p = 1e-12
		}
		loss += -math.Log(p)
	}

	return loss / float64(batch), probs
}

// SoftmaxCrossEntropyBackward returns the batch-averaged gradient of the
// loss w.r.t. the logits.
func SoftmaxCrossEntropyBackward(probs []float32, labels []int, classes int) []float32 {
	batch := len(labels)
	grad := make([]float32, len(probs))
	inv := float32(1) / float32(batch)
	for n := 0; n < batch; n++ {
		for c := 0; c < classes; c++ {
			g := probs[n*classes+c]
			if c == labels[n] {
				g -= 1
			}
			grad[n*classes+c] = g * inv
		}
	}
	return grad
}

// xavierInit fills w with Xavier/Glorot uniform values.
func xavierInit(w []float32, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = float32((rng.Float64()*2 - 1) * limit)
	}
}

// smallInit fills b with small non-zero values to break symmetry.
func smallInit(b []float32, rng *rand.Rand) {
	for i := range b {
		b[i] = float32((rng.Float64() - 0.5) * 0.02)
	}
}

func zero(s []float32) {
	for i := range s {
		s[i] = 0
	}
}
