package textgan_go

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// PositionalEncoding Returns sinusoidal positional table of shape (maxSeqLen, embeddingDim).
//
// For position p and pair index i: angle = p / 10000^(2i/embeddingDim)
// Channel 2i holds sin(angle), channel 2i+1 holds cos(angle)
//
func PositionalEncoding(maxSeqLen, embeddingDim int) (*tensor.Dense, error) {
	if maxSeqLen < 1 {
		return nil, fmt.Errorf("Max sequence length must be positive, but got %d", maxSeqLen)
	}
	if embeddingDim < 2 {
		return nil, errors.Wrap(ErrShapeMismatch, fmt.Sprintf("embedding dimension must be at least 2, but got %d", embeddingDim))
	}
	if embeddingDim%2 != 0 {
		return nil, errors.Wrap(ErrOddEmbeddingDim, fmt.Sprintf("got %d", embeddingDim))
	}
	data := make([]float64, maxSeqLen*embeddingDim)
	for p := 0; p < maxSeqLen; p++ {
		row := data[p*embeddingDim : (p+1)*embeddingDim]
		for i := 0; i < embeddingDim/2; i++ {
			angle := float64(p) / math.Pow(10000, 2.0*float64(i)/float64(embeddingDim))
			row[2*i] = math.Sin(angle)
			row[2*i+1] = math.Cos(angle)
		}
	}
	return tensor.New(tensor.WithShape(maxSeqLen, embeddingDim), tensor.WithBacking(data)), nil
}
