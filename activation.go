package textgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// ActivationFunc Just an alias to Gorgonia'a api_gen.go - https://github.com/gorgonia/gorgonia/blob/master/api_gen.go#L1
type ActivationFunc func(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error)

func NoActivation(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error) { return a, nil }
func Rectify(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error)      { return gorgonia.Rectify(a) }
func Sigmoid(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error)      { return gorgonia.Sigmoid(a) }

// Softmax exp(x) / sum(exp(x)) along axis (last one by default).
// It is composed from Exp, Sum and broadcasted division: backward pass of gorgonia.SoftMax with axis is not reliable.
func Softmax(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error) {
	axis := a.Dims() - 1
	for i := range opts {
		// First i-th option with provided field 'Axis' would be considered for use.
		if len(opts[i].Axis) > 0 {
			axis = opts[i].Axis[0]
			break
		}
	}
	if axis < 0 || axis >= a.Dims() {
		return nil, fmt.Errorf("Softmax axis %d is out of range for shape %v", axis, a.Shape())
	}
	exp, err := gorgonia.Exp(a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do exp(x)")
	}
	sum, err := gorgonia.Sum(exp, axis)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do sum(exp(x))")
	}
	keptShape := a.Shape().Clone()
	keptShape[axis] = 1
	sum, err = gorgonia.Reshape(sum, keptShape)
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape sum(exp(x))")
	}
	if a.Shape()[axis] == 1 {
		return gorgonia.HadamardDiv(exp, sum)
	}
	return gorgonia.BroadcastHadamardDiv(exp, sum, nil, []byte{byte(axis)})
}

// Options Struct for holding options for certain activation functions.
type Options struct {
	Axis []int
}
