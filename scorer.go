package textgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Scorer Inference wrapper: owns graph, discriminator and tape machine for batches of fixed shape (batchSize x MaxSeqLen x VocabSize).
// Scorer is not safe for concurrent use.
type Scorer struct {
	graph     *gorgonia.ExprGraph
	input     *gorgonia.Node
	net       *DiscriminatorNet
	tm        gorgonia.VM
	outValue  gorgonia.Value
	batchSize int
}

// NewScorer Builds discriminator for provided config and prepares it for scoring batches of batchSize sequences
func NewScorer(cfg Config, batchSize int, opts ...DiscriminatorOption) (*Scorer, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("Batch size must be positive, but got %d", batchSize)
	}
	g := gorgonia.NewGraph()
	net, err := NewDiscriminator(g, cfg, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "[Scorer]")
	}
	input := gorgonia.NewTensor(g, gorgonia.Float64, 3, gorgonia.WithShape(batchSize, cfg.MaxSeqLen, cfg.VocabSize), gorgonia.WithName("discriminator_input"))
	if err := net.Fwd(input); err != nil {
		return nil, errors.Wrap(err, "[Scorer]")
	}
	s := &Scorer{
		graph:     g,
		input:     input,
		net:       net,
		batchSize: batchSize,
	}
	gorgonia.Read(net.Out(), &s.outValue)
	s.tm = gorgonia.NewTapeMachine(g)
	return s, nil
}

// Discriminator Returns underlying discriminator
func (s *Scorer) Discriminator() *DiscriminatorNet {
	return s.net
}

// Graph Returns underlying graph
func (s *Scorer) Graph() *gorgonia.ExprGraph {
	return s.graph
}

// Score Evaluates logits for (batchSize x seqLen x VocabSize) batch.
// Sequences longer than MaxSeqLen are rejected before evaluation, shorter ones don't fit highway layer
func (s *Scorer) Score(batch *tensor.Dense) ([]float64, error) {
	cfg := s.net.cfg
	shp := batch.Shape()
	if shp.Dims() != 3 {
		return nil, errors.Wrap(ErrShapeMismatch, fmt.Sprintf("[Scorer] batch must be (batch, seq_len, vocab), but got %v", shp))
	}
	if shp[2] != cfg.VocabSize {
		return nil, errors.Wrap(ErrVocabMismatch, fmt.Sprintf("[Scorer] got %d, expected %d", shp[2], cfg.VocabSize))
	}
	if shp[1] > cfg.MaxSeqLen {
		return nil, errors.Wrap(ErrSequenceTooLong, fmt.Sprintf("[Scorer] got %d, max is %d", shp[1], cfg.MaxSeqLen))
	}
	if shp[1] != cfg.MaxSeqLen {
		return nil, errors.Wrap(ErrShapeMismatch, fmt.Sprintf("[Scorer] highway layer expects %d*%d features, sequences of length %d have to be padded", cfg.MaxSeqLen, cfg.EmbeddingDim, shp[1]))
	}
	if shp[0] != s.batchSize {
		return nil, errors.Wrap(ErrShapeMismatch, fmt.Sprintf("[Scorer] got batch of %d, expected %d", shp[0], s.batchSize))
	}
	if batch.Dtype() != tensor.Float64 {
		return nil, fmt.Errorf("[Scorer] batch dtype must be %v, but got %v", tensor.Float64, batch.Dtype())
	}
	if err := gorgonia.Let(s.input, batch); err != nil {
		return nil, errors.Wrap(err, "[Scorer] Can't init input value")
	}
	defer s.tm.Reset()
	if err := s.tm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "[Scorer] Can't run VM")
	}
	switch data := s.outValue.Data().(type) {
	case []float64:
		ans := make([]float64, len(data))
		copy(ans, data)
		return ans, nil
	case float64:
		// Single-element outputs could be reported as scalar
		return []float64{data}, nil
	default:
		return nil, fmt.Errorf("[Scorer] unexpected output of type %T", data)
	}
}

// Close Releases tape machine
func (s *Scorer) Close() error {
	return s.tm.Close()
}
