package client

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TensorTypeFloat32 is the only encoding this codec produces: raw
// little-endian float32 values, one frame per tensor.
const TensorTypeFloat32 = "float32"

// WeightsToParameters serializes weight tensors into a Parameters message.
func WeightsToParameters(weights [][]float32) Parameters {
	tensors := make([][]byte, len(weights))
	for i, w := range weights {
		buf := make([]byte, 4*len(w))
		for j, v := range w {
			binary.LittleEndian.PutUint32(buf[4*j:], math.Float32bits(v))
		}
		tensors[i] = buf
	}
	return Parameters{Tensors: tensors, TensorType: TensorTypeFloat32}
}

// ParametersToWeights deserializes a Parameters message back into weight
// tensors.
func ParametersToWeights(p Parameters) ([][]float32, error) {
	if p.TensorType != TensorTypeFloat32 {
		return nil, fmt.Errorf("unsupported tensor type %q", p.TensorType)
	}

	weights := make([][]float32, len(p.Tensors))
	for i, buf := range p.Tensors {
		if len(buf)%4 != 0 {
			return nil, fmt.Errorf("tensor %d has %d bytes, not a multiple of 4", i, len(buf))
		}
		w := make([]float32, len(buf)/4)
		for j := range w {
			w[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
		}
		weights[i] = w
	}
	return weights, nil
}
