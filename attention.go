package textgan_go

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// multiHeadAttention Full (unmasked) scaled dot-product self-attention.
//
// query, key, value - rows of packed (3*D x D) input projection with biases
// output - (D x D) output projection with bias
//
type multiHeadAttention struct {
	numHeads int
	query    *Layer
	key      *Layer
	value    *Layer
	output   *Layer
}

func newMultiHeadAttention(pf *paramFactory, name string, embeddingDim, numHeads int) (*multiHeadAttention, error) {
	if numHeads < 1 || embeddingDim%numHeads != 0 {
		return nil, errors.Wrap(ErrShapeMismatch, fmt.Sprintf("embedding dimension %d is not divisible by %d heads", embeddingDim, numHeads))
	}
	weights, err := pf.packed(name+"_in_proj_w", 3, embeddingDim, embeddingDim)
	if err != nil {
		return nil, err
	}
	biases, err := pf.packed(name+"_in_proj_b", 3, embeddingDim)
	if err != nil {
		return nil, err
	}
	output, err := pf.linear(name+"_out_proj", embeddingDim, embeddingDim, true, NoActivation)
	if err != nil {
		return nil, err
	}
	projection := func(i int) *Layer {
		return &Layer{WeightNode: weights[i], BiasNode: biases[i], Activation: NoActivation, Type: LayerLinear}
	}
	return &multiHeadAttention{
		numHeads: numHeads,
		query:    projection(0),
		key:      projection(1),
		value:    projection(2),
		output:   output,
	}, nil
}

func (mha *multiHeadAttention) learnables() gorgonia.Nodes {
	return learnables(mha.query, mha.key, mha.value, mha.output)
}

// fwd Attends every position of a sequence to every position of the same sequence.
//
// x - (batchSize*seqLen x D) node
//
func (mha *multiHeadAttention) fwd(x *gorgonia.Node, batchSize, seqLen int) (*gorgonia.Node, error) {
	if seqLen == 1 {
		return mha.fwdSinglePosition(x, batchSize)
	}
	rows := batchSize * seqLen
	embeddingDim := x.Shape()[1]
	headDim := embeddingDim / mha.numHeads
	groups := batchSize * mha.numHeads

	q, err := mha.splitHeads(mha.query, x, batchSize, seqLen, []int{0, 2, 1, 3}, tensor.Shape{groups, seqLen, headDim})
	if err != nil {
		return nil, errors.Wrap(err, "[Query]")
	}
	// Keys are laid out as (dh x T) per group so scores are Q@K^T
	k, err := mha.splitHeads(mha.key, x, batchSize, seqLen, []int{0, 2, 3, 1}, tensor.Shape{groups, headDim, seqLen})
	if err != nil {
		return nil, errors.Wrap(err, "[Key]")
	}
	v, err := mha.splitHeads(mha.value, x, batchSize, seqLen, []int{0, 2, 1, 3}, tensor.Shape{groups, seqLen, headDim})
	if err != nil {
		return nil, errors.Wrap(err, "[Value]")
	}

	scores, err := gorgonia.BatchedMatMul(q, k)
	if err != nil {
		return nil, errors.Wrap(err, "Can't multiply queries and keys")
	}
	scaled, err := gorgonia.Mul(scores, gorgonia.NewConstant(1.0/math.Sqrt(float64(headDim))))
	if err != nil {
		return nil, errors.Wrap(err, "Can't scale attention scores")
	}
	scaledFlat, err := gorgonia.Reshape(scaled, tensor.Shape{groups * seqLen, seqLen})
	if err != nil {
		return nil, errors.Wrap(err, "Can't flatten attention scores")
	}
	weightsFlat, err := Softmax(scaledFlat, Options{Axis: []int{1}})
	if err != nil {
		return nil, errors.Wrap(err, "Can't apply softmax to attention scores")
	}
	weights, err := gorgonia.Reshape(weightsFlat, tensor.Shape{groups, seqLen, seqLen})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape attention weights")
	}
	context, err := gorgonia.BatchedMatMul(weights, v)
	if err != nil {
		return nil, errors.Wrap(err, "Can't multiply attention weights and values")
	}

	// (B*H, T, dh) -> (B, T, H, dh) -> (B*T, D)
	context, err = gorgonia.Reshape(context, tensor.Shape{batchSize, mha.numHeads, seqLen, headDim})
	if err != nil {
		return nil, errors.Wrap(err, "Can't split context by heads")
	}
	context, err = gorgonia.Transpose(context, 0, 2, 1, 3)
	if err != nil {
		return nil, errors.Wrap(err, "Can't transpose context")
	}
	context, err = gorgonia.Reshape(context, tensor.Shape{rows, embeddingDim})
	if err != nil {
		return nil, errors.Wrap(err, "Can't merge heads")
	}
	out, err := mha.output.Fwd(context, rows)
	if err != nil {
		return nil, errors.Wrap(err, "[Output projection]")
	}
	return out, nil
}

// fwdSinglePosition Attention for sequences of length 1.
// Every (batch, head) group has a single key, so scores are per-group dot products of (groups x 1) shape
// and weights are softmax over one element. BatchedMatMul can't be used here: (1 x 1) slices collapse into scalars.
//
// x - (batchSize x D) node
//
func (mha *multiHeadAttention) fwdSinglePosition(x *gorgonia.Node, batchSize int) (*gorgonia.Node, error) {
	embeddingDim := x.Shape()[1]
	headDim := embeddingDim / mha.numHeads
	groups := batchSize * mha.numHeads

	q, err := mha.query.Fwd(x, batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "[Query]")
	}
	k, err := mha.key.Fwd(x, batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "[Key]")
	}
	v, err := mha.value.Fwd(x, batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "[Value]")
	}

	// (B x D) rows are (B, H, dh) laid out contiguously, so (B*H x dh) are per-group vectors
	qk, err := gorgonia.HadamardProd(q, k)
	if err != nil {
		return nil, errors.Wrap(err, "Can't multiply queries and keys")
	}
	qk, err = gorgonia.Reshape(qk, tensor.Shape{groups, headDim})
	if err != nil {
		return nil, errors.Wrap(err, "Can't group query-key products")
	}
	scores, err := gorgonia.Sum(qk, 1)
	if err != nil {
		return nil, errors.Wrap(err, "Can't sum query-key products")
	}
	scores, err = gorgonia.Reshape(scores, tensor.Shape{groups, 1})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape attention scores")
	}
	scaled, err := gorgonia.Mul(scores, gorgonia.NewConstant(1.0/math.Sqrt(float64(headDim))))
	if err != nil {
		return nil, errors.Wrap(err, "Can't scale attention scores")
	}
	weights, err := Softmax(scaled, Options{Axis: []int{1}})
	if err != nil {
		return nil, errors.Wrap(err, "Can't apply softmax to attention scores")
	}
	values, err := gorgonia.Reshape(v, tensor.Shape{groups, headDim})
	if err != nil {
		return nil, errors.Wrap(err, "Can't group values")
	}
	var context *gorgonia.Node
	if headDim == 1 {
		context, err = gorgonia.HadamardProd(values, weights)
	} else {
		context, err = gorgonia.BroadcastHadamardProd(values, weights, nil, []byte{1})
	}
	if err != nil {
		return nil, errors.Wrap(err, "Can't weight values")
	}
	context, err = gorgonia.Reshape(context, tensor.Shape{batchSize, embeddingDim})
	if err != nil {
		return nil, errors.Wrap(err, "Can't merge heads")
	}
	out, err := mha.output.Fwd(context, batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "[Output projection]")
	}
	return out, nil
}

// splitHeads Projects x and rearranges it from (B*T x D) into per-(batch, head) groups
func (mha *multiHeadAttention) splitHeads(projection *Layer, x *gorgonia.Node, batchSize, seqLen int, axes []int, groupShape tensor.Shape) (*gorgonia.Node, error) {
	rows := batchSize * seqLen
	embeddingDim := x.Shape()[1]
	projected, err := projection.Fwd(x, rows)
	if err != nil {
		return nil, errors.Wrap(err, "Can't project input")
	}
	heads, err := gorgonia.Reshape(projected, tensor.Shape{batchSize, seqLen, mha.numHeads, embeddingDim / mha.numHeads})
	if err != nil {
		return nil, errors.Wrap(err, "Can't split projection by heads")
	}
	heads, err = gorgonia.Transpose(heads, axes...)
	if err != nil {
		return nil, errors.Wrap(err, "Can't transpose heads")
	}
	grouped, err := gorgonia.Reshape(heads, groupShape)
	if err != nil {
		return nil, errors.Wrap(err, "Can't group heads")
	}
	return grouped, nil
}
