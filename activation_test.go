package textgan_go

import (
	"math"
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestSoftmax(t *testing.T) {
	g := gorgonia.NewGraph()
	xs := []float64{1, 2, 3, -1, 0, 1}
	x := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(2, 3), gorgonia.WithName("x"), gorgonia.WithValue(tensor.New(tensor.WithShape(2, 3), tensor.WithBacking(xs))))
	probs, err := Softmax(x)
	if err != nil {
		t.Fatal(err)
	}
	tm := gorgonia.NewTapeMachine(g)
	defer tm.Close()
	if err := tm.RunAll(); err != nil {
		t.Fatal(err)
	}
	data := probs.Value().Data().([]float64)
	// Rows differ by shift only, so their distributions are equal
	denominator := math.Exp(1) + math.Exp(2) + math.Exp(3)
	for i, v := range data {
		correct := math.Exp(xs[i%3]) / denominator
		if math.Abs(v-correct) > 1e-12 {
			t.Errorf("Probability #%d should be %v, but got %v", i, correct, v)
		}
	}

	if _, err := Softmax(x, Options{Axis: []int{2}}); err == nil {
		t.Errorf("Out of range axis should cause an error")
	}
}
