package textgan_go

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestBinaryCrossEntropyLoss(t *testing.T) {
	probs := []float64{0.9, 0.2, 0.6, 0.3}
	labels := []float64{1, 0, 0, 1}
	terms := make([]float64, len(probs))
	sum := 0.0
	for i := range probs {
		terms[i] = -(labels[i]*math.Log(probs[i]) + (1-labels[i])*math.Log(1-probs[i]))
		sum += terms[i]
	}
	cases := []struct {
		reduction LossReduction
		correct   float64
	}{
		{LossReductionMean, sum / float64(len(probs))},
		{LossReductionSum, sum},
	}
	for _, c := range cases {
		g := gorgonia.NewGraph()
		a := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(4, 1), gorgonia.WithName("a"), gorgonia.WithValue(tensor.New(tensor.WithShape(4, 1), tensor.WithBacking(probs))))
		b := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(4, 1), gorgonia.WithName("b"), gorgonia.WithValue(tensor.New(tensor.WithShape(4, 1), tensor.WithBacking(labels))))
		loss, err := BinaryCrossEntropyLoss(a, b, c.reduction)
		if err != nil {
			t.Fatal(err)
		}
		tm := gorgonia.NewTapeMachine(g)
		if err := tm.RunAll(); err != nil {
			t.Fatal(err)
		}
		if v := loss.Value().Data().(float64); math.Abs(v-c.correct) > 1e-12 {
			t.Errorf("[reduction %d] Loss should be %v, but got %v", c.reduction, c.correct, v)
		}
		tm.Close()
	}
}

func TestBinaryCrossEntropyLossGradients(t *testing.T) {
	g := gorgonia.NewGraph()
	a := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(3, 1), gorgonia.WithName("a"), gorgonia.WithValue(tensor.New(tensor.WithShape(3, 1), tensor.WithBacking([]float64{0.7, 0.1, 0.45}))))
	b := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(3, 1), gorgonia.WithName("b"), gorgonia.WithValue(tensor.New(tensor.WithShape(3, 1), tensor.WithBacking([]float64{1, 0, 1}))))
	loss, err := BinaryCrossEntropyLoss(a, b)
	if err != nil {
		t.Fatal(err)
	}
	checkGradients(t, g, loss, gorgonia.Nodes{a})
}

func TestBinaryCrossEntropyLossErrors(t *testing.T) {
	g := gorgonia.NewGraph()
	a := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(3, 1), gorgonia.WithName("a"))
	b := gorgonia.NewVector(g, gorgonia.Float64, gorgonia.WithShape(3), gorgonia.WithName("b"))
	if _, err := BinaryCrossEntropyLoss(a, b); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Different shapes should cause ErrShapeMismatch, but got %v", err)
	}
	c := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(3, 1), gorgonia.WithName("c"))
	if _, err := BinaryCrossEntropyLoss(a, c, LossReduction(7)); err == nil {
		t.Errorf("Unknown reduction should cause an error")
	}
}
