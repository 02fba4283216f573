// Package client defines the two client-side API styles for plugging local
// training into federated rounds: the low-level Client interface working on
// serialized Parameters messages, and the ergonomic NumPyClient interface
// working directly on weight tensors.
package client

import (
	"context"
)

// Code is the status code a client attaches to its responses.
type Code int

const (
	OK Code = iota
	GetParametersNotImplemented
	FitNotImplemented
	EvaluateNotImplemented
)

// Status reports the outcome of a client operation.
type Status struct {
	Code    Code
	Message string
}

// Parameters carries model weights in serialized form. Each tensor is an
// independently framed byte slice; TensorType names the element encoding.
type Parameters struct {
	Tensors    [][]byte
	TensorType string
}

// Config carries per-operation settings from the server to the client,
// e.g. "server_round" or "local_epochs".
type Config map[string]interface{}

// Metrics carries client-reported values back to the server.
type Metrics map[string]interface{}

// GetParametersIns asks a client for its current model weights.
type GetParametersIns struct {
	Config Config
}

// GetParametersRes returns a client's current model weights.
type GetParametersRes struct {
	Status     Status
	Parameters Parameters
}

// FitIns instructs a client to train on its local data starting from the
// given global weights.
type FitIns struct {
	Parameters Parameters
	Config     Config
}

// FitRes returns the locally trained weights along with the number of
// examples they were trained on (the aggregation weight).
type FitRes struct {
	Status      Status
	Parameters  Parameters
	NumExamples int
	Metrics     Metrics
}

// EvaluateIns instructs a client to evaluate the given global weights on
// its local data.
type EvaluateIns struct {
	Parameters Parameters
	Config     Config
}

// EvaluateRes returns the local evaluation loss and the number of examples
// it was computed over.
type EvaluateRes struct {
	Status      Status
	Loss        float64
	NumExamples int
	Metrics     Metrics
}

// Client is the low-level client interface. Implementations deal with
// serialized Parameters themselves; see NumPyClient for the convenience
// variant.
type Client interface {
	GetParameters(ctx context.Context, ins GetParametersIns) (GetParametersRes, error)
	Fit(ctx context.Context, ins FitIns) (FitRes, error)
	Evaluate(ctx context.Context, ins EvaluateIns) (EvaluateRes, error)
}

// NumPyClient is the ergonomic client interface. Implementations receive and
// return plain weight tensors; serialization and status handling are done by
// the FromNumPyClient adapter.
type NumPyClient interface {
	// GetParameters returns the client's current model weights.
	GetParameters(ctx context.Context, config Config) ([][]float32, error)

	// Fit trains on local data starting from the given weights and returns
	// the updated weights, the number of training examples, and metrics.
	Fit(ctx context.Context, weights [][]float32, config Config) ([][]float32, int, Metrics, error)

	// Evaluate measures the given weights on local data and returns the
	// loss, the number of evaluation examples, and metrics.
	Evaluate(ctx context.Context, weights [][]float32, config Config) (float64, int, Metrics, error)
}

// statusOK is the status attached to successful adapter responses.
var statusOK = Status{Code: OK, Message: "Success"}

// FromNumPyClient wraps a NumPyClient into a Client, handling weight
// serialization and status wrapping.
func FromNumPyClient(np NumPyClient) Client {
	return &numPyClientAdapter{np: np}
}

type numPyClientAdapter struct {
	np NumPyClient
}

func (a *numPyClientAdapter) GetParameters(ctx context.Context, ins GetParametersIns) (GetParametersRes, error) {
	weights, err := a.np.GetParameters(ctx, ins.Config)
	if err != nil {
		return GetParametersRes{}, err
	}
	return GetParametersRes{
		Status:     statusOK,
		Parameters: WeightsToParameters(weights),
	}, nil
}

func (a *numPyClientAdapter) Fit(ctx context.Context, ins FitIns) (FitRes, error) {
	weights, err := ParametersToWeights(ins.Parameters)
	if err != nil {
		return FitRes{}, err
	}

	updated, numExamples, metrics, err := a.np.Fit(ctx, weights, ins.Config)
	if err != nil {
		return FitRes{}, err
	}
	return FitRes{
		Status:      statusOK,
		Parameters:  WeightsToParameters(updated),
		NumExamples: numExamples,
		Metrics:     metrics,
	}, nil
}

func (a *numPyClientAdapter) Evaluate(ctx context.Context, ins EvaluateIns) (EvaluateRes, error) {
	weights, err := ParametersToWeights(ins.Parameters)
	if err != nil {
		return EvaluateRes{}, err
	}

	loss, numExamples, metrics, err := a.np.Evaluate(ctx, weights, ins.Config)
	if err != nil {
		return EvaluateRes{}, err
	}
	return EvaluateRes{
		Status:      statusOK,
		Loss:        loss,
		NumExamples: numExamples,
		Metrics:     metrics,
	}, nil
}
