package training

// SGD is a stochastic gradient descent optimizer with classical momentum.
type SGD struct {
	LearningRate float64
	Momentum     float64

	velocity [][]float32
}

// NewSGD creates an SGD optimizer.
func NewSGD(learningRate, momentum float64) *SGD {
	return &SGD{
		LearningRate: learningRate,
		Momentum:     momentum,
	}
}

// Step applies one update: v = momentum*v + g; p = p - lr*v. params and
// grads must be parallel slices of equally sized tensors.
func (o *SGD) Step(params, grads [][]float32) {
	if o.velocity == nil {
		o.velocity = make([][]float32, len(params))
		for i, p := range params {
			o.velocity[i] = make([]float32, len(p))
		}
	}

	lr := float32(o.LearningRate)
	mom := float32(o.Momentum)
	for i, p := range params {
		v := o.velocity[i]
		g := grads[i]
		for j := range p {
			v[j] = mom*v[j] + g[j]
			p[j] -= lr * v[j]
		}
	}
}
