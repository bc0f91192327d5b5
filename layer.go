package textgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer Just an alias to Weight+Bias+ActivationFunc combo
//
// WeightNode - (out x in) matrix, the same layout as torch.nn.Linear has
// BiasNode - (out) vector, could be nil
//
type Layer struct {
	WeightNode *gorgonia.Node
	BiasNode   *gorgonia.Node
	Activation ActivationFunc
	Type       LayerType
}

type LayerType uint16

const (
	LayerLinear = LayerType(iota)
	LayerFlatten
)

var (
	allowedNoWeights = []LayerType{LayerFlatten}
)

func noWeightsAllowed(checkType LayerType) bool {
	return checkLayerType(checkType, allowedNoWeights...)
}

func checkLayerType(checkType LayerType, t ...LayerType) bool {
	for _, typeOf := range t {
		if checkType == typeOf {
			return true
		}
	}
	return false
}

// paramFactory Allocates learnable nodes initialized by single scheme from shared source of randomness
type paramFactory struct {
	g      *gorgonia.ExprGraph
	scheme InitScheme
	src    rand.Source
}

func newParamFactory(g *gorgonia.ExprGraph, cfg Config) *paramFactory {
	return &paramFactory{
		g:      g,
		scheme: cfg.Init,
		src:    rand.NewSource(cfg.Seed),
	}
}

// param Creates learnable node of given shape. Leading dimension defines standard deviation of normal schemes
func (pf *paramFactory) param(name string, shape ...int) (*gorgonia.Node, error) {
	initFn, err := pf.scheme.Initializer(shape[0], pf.src)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't prepare initializer for '%s'", name))
	}
	return gorgonia.NewTensor(pf.g, gorgonia.Float64, len(shape), gorgonia.WithShape(shape...), gorgonia.WithName(name), gorgonia.WithInit(initFn)), nil
}

// packed Creates 'parts' learnable nodes of given shape which are drawn as one (parts*shape[0], shape[1:]...) parameter.
// It keeps initialization of separately stored projections equal to initialization of their packed layout.
func (pf *paramFactory) packed(name string, parts int, shape ...int) ([]*gorgonia.Node, error) {
	packedShape := append([]int{parts * shape[0]}, shape[1:]...)
	initFn, err := pf.scheme.Initializer(packedShape[0], pf.src)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't prepare initializer for '%s'", name))
	}
	data := initFn(tensor.Float64, packedShape...).([]float64)
	size := len(data) / parts
	nodes := make([]*gorgonia.Node, parts)
	for i := range nodes {
		chunk := make([]float64, size)
		copy(chunk, data[i*size:(i+1)*size])
		value := tensor.New(tensor.WithShape(shape...), tensor.WithBacking(chunk))
		nodes[i] = gorgonia.NewTensor(pf.g, gorgonia.Float64, len(shape), gorgonia.WithShape(shape...), gorgonia.WithName(fmt.Sprintf("%s_%d", name, i)), gorgonia.WithValue(value))
	}
	return nodes, nil
}

// linear Creates linear layer mapping 'in' features to 'out' features
func (pf *paramFactory) linear(name string, in, out int, withBias bool, activation ActivationFunc) (*Layer, error) {
	w, err := pf.param(name+"_w", out, in)
	if err != nil {
		return nil, err
	}
	l := &Layer{
		WeightNode: w,
		Activation: activation,
		Type:       LayerLinear,
	}
	if withBias {
		l.BiasNode, err = pf.param(name+"_b", out)
		if err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Fwd Feedforwards input through layer. Activation is not applied.
//
// input - (rows x in) node for LayerLinear, any node for LayerFlatten
// rows - number of rows. If it's >= 2 then broadcast function will be applied for bias
//
func (l *Layer) Fwd(input *gorgonia.Node, rows int) (*gorgonia.Node, error) {
	if rows < 1 {
		return nil, fmt.Errorf("Number of rows must be positive, but got %d", rows)
	}
	switch l.Type {
	case LayerLinear:
		return l.fwdLinear(input, rows)
	case LayerFlatten:
		flatten, err := gorgonia.Reshape(input, tensor.Shape{rows, input.Shape().TotalSize() / rows})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten input")
		}
		return flatten, nil
	default:
		return nil, fmt.Errorf("Layer type '%d' (uint16) is not handled", l.Type)
	}
}

func (l *Layer) fwdLinear(input *gorgonia.Node, rows int) (*gorgonia.Node, error) {
	if l.WeightNode == nil {
		return nil, fmt.Errorf("WeightNode is nil")
	}
	inShape := input.Shape()
	wShape := l.WeightNode.Shape()
	if len(inShape) != 2 || inShape[0] != rows || inShape[1] != wShape[1] {
		return nil, errors.Wrap(ErrShapeMismatch, fmt.Sprintf("input %v can't be multiplied by transposed weights %v for %d rows", inShape, wShape, rows))
	}
	tOp, err := gorgonia.Transpose(l.WeightNode)
	if err != nil {
		return nil, errors.Wrap(err, "Can't transpose weights")
	}
	out, err := gorgonia.Mul(input, tOp)
	if err != nil {
		return nil, errors.Wrap(err, "Can't multiply input and weights")
	}
	if l.BiasNode == nil {
		return out, nil
	}
	return addBias(out, l.BiasNode, rows)
}

// addBias Adds (n) bias vector to every row of (rows x n) node
func addBias(x, bias *gorgonia.Node, rows int) (*gorgonia.Node, error) {
	biasRow, err := gorgonia.Reshape(bias, tensor.Shape{1, bias.Shape().TotalSize()})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape bias")
	}
	if rows < 2 {
		out, err := gorgonia.Add(x, biasRow)
		if err != nil {
			return nil, errors.Wrap(err, "Can't add bias")
		}
		return out, nil
	}
	out, err := gorgonia.BroadcastAdd(x, biasRow, nil, []byte{0})
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't add [in broadcast term with rows = %d] bias", rows))
	}
	return out, nil
}

// learnables Collects non-nil weights and biases of layers
func learnables(layers ...*Layer) gorgonia.Nodes {
	nodes := make(gorgonia.Nodes, 0, 2*len(layers))
	for _, l := range layers {
		if l == nil {
			continue
		}
		if l.WeightNode != nil {
			nodes = append(nodes, l.WeightNode)
		}
		if l.BiasNode != nil {
			nodes = append(nodes, l.BiasNode)
		}
	}
	return nodes
}
