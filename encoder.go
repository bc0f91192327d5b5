package textgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// SequenceEncoder Differentiable encoder of embedded sequences.
// Any backend which maps (batch x seqLen x D) node onto node of the same shape fits.
type SequenceEncoder interface {
	// Fwd Builds encoding of (batch x seqLen x D) input
	Fwd(x *gorgonia.Node) (*gorgonia.Node, error)
	// Learnables Returns learnables nodes
	Learnables() gorgonia.Nodes
}

// layerNorm Normalization over last axis with learnable gain and bias
type layerNorm struct {
	gain *gorgonia.Node
	bias *gorgonia.Node
	eps  float64
}

func newLayerNorm(pf *paramFactory, name string, dim int, eps float64) (*layerNorm, error) {
	gain, err := pf.param(name+"_gain", dim)
	if err != nil {
		return nil, err
	}
	bias, err := pf.param(name+"_b", dim)
	if err != nil {
		return nil, err
	}
	return &layerNorm{gain: gain, bias: bias, eps: eps}, nil
}

// fwd Normalizes every row of (rows x D) node
func (ln *layerNorm) fwd(x *gorgonia.Node, rows int) (*gorgonia.Node, error) {
	dim := x.Shape()[1]
	mean, err := rowStatistic(x, rows)
	if err != nil {
		return nil, errors.Wrap(err, "Can't evaluate mean")
	}
	centered, err := gorgonia.BroadcastSub(x, mean, nil, []byte{1})
	if err != nil {
		return nil, errors.Wrap(err, "Can't center input")
	}
	sqr, err := gorgonia.Square(centered)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x^2)")
	}
	variance, err := rowStatistic(sqr, rows)
	if err != nil {
		return nil, errors.Wrap(err, "Can't evaluate variance")
	}
	shifted, err := gorgonia.Add(variance, gorgonia.NewConstant(ln.eps))
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (var+eps)")
	}
	std, err := gorgonia.Sqrt(shifted)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do sqrt(var+eps)")
	}
	normed, err := gorgonia.BroadcastHadamardDiv(centered, std, nil, []byte{1})
	if err != nil {
		return nil, errors.Wrap(err, "Can't normalize input")
	}
	gainRow, err := gorgonia.Reshape(ln.gain, tensor.Shape{1, dim})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape gain")
	}
	var scaled *gorgonia.Node
	if rows < 2 {
		scaled, err = gorgonia.HadamardProd(normed, gainRow)
	} else {
		scaled, err = gorgonia.BroadcastHadamardProd(normed, gainRow, nil, []byte{0})
	}
	if err != nil {
		return nil, errors.Wrap(err, "Can't apply gain")
	}
	return addBias(scaled, ln.bias, rows)
}

// rowStatistic Mean of every row of (rows x D) node as (rows x 1) node
func rowStatistic(x *gorgonia.Node, rows int) (*gorgonia.Node, error) {
	mean, err := gorgonia.Mean(x, 1)
	if err != nil {
		return nil, err
	}
	return gorgonia.Reshape(mean, tensor.Shape{rows, 1})
}

// EncoderLayer Post-normalization transformer encoder layer:
//
// x = LN1(x + MHA(x))
// x = LN2(x + W2 @ ReLU(W1 @ x + b1) + b2)
//
type EncoderLayer struct {
	attention *multiHeadAttention
	linear1   *Layer
	linear2   *Layer
	norm1     *layerNorm
	norm2     *layerNorm
}

func newEncoderLayer(pf *paramFactory, name string, embeddingDim, numHeads, feedForwardDim int, eps float64) (*EncoderLayer, error) {
	attention, err := newMultiHeadAttention(pf, name+"_attn", embeddingDim, numHeads)
	if err != nil {
		return nil, errors.Wrap(err, "Can't create attention")
	}
	linear1, err := pf.linear(name+"_linear1", embeddingDim, feedForwardDim, true, Rectify)
	if err != nil {
		return nil, err
	}
	linear2, err := pf.linear(name+"_linear2", feedForwardDim, embeddingDim, true, NoActivation)
	if err != nil {
		return nil, err
	}
	norm1, err := newLayerNorm(pf, name+"_norm1", embeddingDim, eps)
	if err != nil {
		return nil, err
	}
	norm2, err := newLayerNorm(pf, name+"_norm2", embeddingDim, eps)
	if err != nil {
		return nil, err
	}
	return &EncoderLayer{
		attention: attention,
		linear1:   linear1,
		linear2:   linear2,
		norm1:     norm1,
		norm2:     norm2,
	}, nil
}

// Learnables Returns learnables nodes
func (el *EncoderLayer) Learnables() gorgonia.Nodes {
	nodes := el.attention.learnables()
	nodes = append(nodes, learnables(el.linear1, el.linear2)...)
	return append(nodes, el.norm1.gain, el.norm1.bias, el.norm2.gain, el.norm2.bias)
}

// fwd Encodes (batchSize*seqLen x D) node
func (el *EncoderLayer) fwd(x *gorgonia.Node, batchSize, seqLen int) (*gorgonia.Node, error) {
	rows := batchSize * seqLen
	attended, err := el.attention.fwd(x, batchSize, seqLen)
	if err != nil {
		return nil, errors.Wrap(err, "[Attention]")
	}
	residual, err := gorgonia.Add(x, attended)
	if err != nil {
		return nil, errors.Wrap(err, "Can't add attention residual")
	}
	normed, err := el.norm1.fwd(residual, rows)
	if err != nil {
		return nil, errors.Wrap(err, "[Norm #1]")
	}
	hidden, err := el.linear1.Fwd(normed, rows)
	if err != nil {
		return nil, errors.Wrap(err, "[Feedforward #1]")
	}
	hidden, err = el.linear1.Activation(hidden)
	if err != nil {
		return nil, errors.Wrap(err, "Can't activate feedforward hidden state")
	}
	ff, err := el.linear2.Fwd(hidden, rows)
	if err != nil {
		return nil, errors.Wrap(err, "[Feedforward #2]")
	}
	residual, err = gorgonia.Add(normed, ff)
	if err != nil {
		return nil, errors.Wrap(err, "Can't add feedforward residual")
	}
	out, err := el.norm2.fwd(residual, rows)
	if err != nil {
		return nil, errors.Wrap(err, "[Norm #2]")
	}
	return out, nil
}

// TransformerEncoder Stack of encoder layers, each one applied to output of previous
type TransformerEncoder struct {
	Layers []*EncoderLayer
}

// NewTransformerEncoder Creates cfg.NumLayers encoder layers in provided graph with own source of randomness seeded by cfg.Seed
func NewTransformerEncoder(g *gorgonia.ExprGraph, cfg Config) (*TransformerEncoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "[Encoder]")
	}
	return newTransformerEncoder(newParamFactory(g, cfg), cfg)
}

func newTransformerEncoder(pf *paramFactory, cfg Config) (*TransformerEncoder, error) {
	enc := &TransformerEncoder{Layers: make([]*EncoderLayer, cfg.NumLayers)}
	for i := range enc.Layers {
		l, err := newEncoderLayer(pf, fmt.Sprintf("encoder_%d", i), cfg.EmbeddingDim, cfg.NumHeads, cfg.FeedForwardDim, cfg.LayerNormEps)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[Encoder layer #%d]", i))
		}
		enc.Layers[i] = l
	}
	return enc, nil
}

// Learnables Returns learnables nodes
func (enc *TransformerEncoder) Learnables() gorgonia.Nodes {
	nodes := make(gorgonia.Nodes, 0, 16*len(enc.Layers))
	for _, l := range enc.Layers {
		nodes = append(nodes, l.Learnables()...)
	}
	return nodes
}

// Fwd Builds encoding of (batch x seqLen x D) input
func (enc *TransformerEncoder) Fwd(x *gorgonia.Node) (*gorgonia.Node, error) {
	if x.Dims() != 3 {
		return nil, errors.Wrap(ErrShapeMismatch, fmt.Sprintf("encoder expects (batch, seq_len, dim) input, but got %v", x.Shape()))
	}
	shp := x.Shape()
	batchSize, seqLen, embeddingDim := shp[0], shp[1], shp[2]
	last, err := gorgonia.Reshape(x, tensor.Shape{batchSize * seqLen, embeddingDim})
	if err != nil {
		return nil, errors.Wrap(err, "Can't flatten encoder input")
	}
	for i, l := range enc.Layers {
		last, err = l.fwd(last, batchSize, seqLen)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[Encoder layer #%d]", i))
		}
		gorgonia.WithName(fmt.Sprintf("encoder_%d_out", i))(last)
	}
	out, err := gorgonia.Reshape(last, tensor.Shape{batchSize, seqLen, embeddingDim})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape encoder output")
	}
	return out, nil
}
