package textgan_go

import (
	"github.com/pkg/errors"
)

var (
	// ErrOddEmbeddingDim Embedding dimension must be even: positional encoding interleaves sin/cos pairs
	ErrOddEmbeddingDim = errors.New("embedding dimension must be even")
	// ErrUnknownInitScheme Initialization scheme is not one of "uniform", "normal", "truncated_normal"
	ErrUnknownInitScheme = errors.New("unknown initialization scheme")
	// ErrSequenceTooLong Input sequence length exceeds maximum sequence length
	ErrSequenceTooLong = errors.New("sequence length exceeds maximum sequence length")
	// ErrVocabMismatch Input width does not match vocabulary size
	ErrVocabMismatch = errors.New("input width does not match vocabulary size")
	// ErrShapeMismatch Generic shape mismatch
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrNoAccelerator GPU has been requested but there is no visible device
	ErrNoAccelerator = errors.New("no accelerator device available")
)
