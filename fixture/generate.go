package fixture

import (
	"math/rand"

	"github.com/pdevine/tensor"
	"github.com/pdevine/tensor/native"

	"github.com/jmorganca/pyramidkv/ml"
)

// Synthetic builds a random (batch, heads, seqLen, headDim) tensor with
// values in [-1, 1). The data is generated sequence-major, the way a
// checkpoint dump lays it out, and swapped into head-major order with a
// tensor transpose.
func Synthetic(batch, heads, seqLen, headDim int, seed int64) (*ml.Tensor, error) {
	rng := rand.New(rand.NewSource(seed))

	data := make([]float32, batch*seqLen*heads*headDim)
	for i := range data {
		data[i] = rng.Float32()*2 - 1
	}

	n := tensor.New(tensor.WithShape(batch, seqLen, heads, headDim), tensor.WithBacking(data))

	if err := n.T(0, 2, 1, 3); err != nil {
		return nil, err
	}

	if err := n.Transpose(); err != nil {
		return nil, err
	}

	rows, err := native.SelectF32(n, 2)
	if err != nil {
		return nil, err
	}

	flat := make([]float32, 0, len(data))
	for _, row := range rows {
		flat = append(flat, row...)
	}

	return ml.New(batch, heads, seqLen, headDim, flat)
}
