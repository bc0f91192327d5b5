package textgan_go

import (
	"math"
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const gradStep = 1e-5

// checkGradients Compares gradients of scalar cost evaluated by tape machine with central differences.
// A few positions of every node in wrt are perturbed in place
func checkGradients(t *testing.T, g *gorgonia.ExprGraph, cost *gorgonia.Node, wrt gorgonia.Nodes) {
	t.Helper()
	if _, err := gorgonia.Grad(cost, wrt...); err != nil {
		t.Fatal(err)
	}
	var costValue gorgonia.Value
	gorgonia.Read(cost, &costValue)
	tm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(wrt...))
	defer tm.Close()

	if err := tm.RunAll(); err != nil {
		t.Fatal(err)
	}
	analytic := make([][]float64, len(wrt))
	for i, n := range wrt {
		grad, err := n.Grad()
		if err != nil {
			t.Fatalf("Node '%s' has no gradient: %s", n.Name(), err)
		}
		analytic[i] = append([]float64(nil), grad.(*tensor.Dense).Float64s()...)
	}
	tm.Reset()

	evaluate := func() float64 {
		if err := tm.RunAll(); err != nil {
			t.Fatal(err)
		}
		v := costValue.Data().(float64)
		tm.Reset()
		return v
	}
	for i, n := range wrt {
		// Backing slice: single-element values report scalar Data()
		data := n.Value().(*tensor.Dense).Float64s()
		for _, j := range []int{0, len(data) / 2, len(data) - 1} {
			orig := data[j]
			data[j] = orig + gradStep
			plus := evaluate()
			data[j] = orig - gradStep
			minus := evaluate()
			data[j] = orig
			numeric := (plus - minus) / (2 * gradStep)
			if diff := math.Abs(numeric - analytic[i][j]); diff > 1e-6+1e-4*math.Abs(numeric) {
				t.Errorf("Gradient of '%s' at %d should be %v, but got %v", n.Name(), j, numeric, analytic[i][j])
			}
		}
	}
}

func gradientTestConfig(embeddingDim, maxSeqLen int) Config {
	cfg := DefaultConfig(embeddingDim, maxSeqLen, 5, 0)
	cfg.Init = InitNormal
	cfg.NumLayers = 1
	cfg.FeedForwardDim = 8
	cfg.FeatureDim = 6
	return cfg
}

// newBCEGraph Builds discriminator for one-hot sequences with binary cross-entropy cost against labels
func newBCEGraph(t *testing.T, cfg Config, sequences [][]int, labels []float64) (*gorgonia.ExprGraph, *DiscriminatorNet, *gorgonia.Node) {
	t.Helper()
	g := gorgonia.NewGraph()
	net, err := NewDiscriminator(g, cfg)
	if err != nil {
		t.Fatal(err)
	}
	batch, err := OneHotSequences(sequences, cfg.VocabSize, cfg.MaxSeqLen, cfg.PaddingIdx)
	if err != nil {
		t.Fatal(err)
	}
	input := gorgonia.NewTensor(g, gorgonia.Float64, 3, gorgonia.WithShape(batch.Shape()...), gorgonia.WithName("input"))
	if err := net.Fwd(input); err != nil {
		t.Fatal(err)
	}
	if err := gorgonia.Let(input, batch); err != nil {
		t.Fatal(err)
	}
	target := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(len(labels), 1), gorgonia.WithName("target"), gorgonia.WithValue(tensor.New(tensor.WithShape(len(labels), 1), tensor.WithBacking(labels))))
	cost, err := BinaryCrossEntropyLoss(net.Out(), target)
	if err != nil {
		t.Fatal(err)
	}
	return g, net, cost
}

func TestDiscriminatorGradientsFiniteDifference(t *testing.T) {
	cases := []struct {
		name         string
		embeddingDim int
		sequences    [][]int
	}{
		{"sequences", 8, [][]int{{1, 2, 3}, {4, 3, 1}}},
		{"single tokens", 8, [][]int{{2}, {4}}},
		{"single tokens, one dimension per head", 4, [][]int{{2}, {4}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := gradientTestConfig(c.embeddingDim, len(c.sequences[0]))
			g, net, cost := newBCEGraph(t, cfg, c.sequences, []float64{1, 0})
			checkGradients(t, g, cost, net.Learnables())
		})
	}
}

func TestDiscriminatorOutUnderGrad(t *testing.T) {
	cfg := gradientTestConfig(8, 3)
	sequences := [][]int{{1, 2, 3}, {4, 3, 1}}
	g, net, cost := newBCEGraph(t, cfg, sequences, []float64{1, 0})
	if _, err := gorgonia.Grad(cost, net.Learnables()...); err != nil {
		t.Fatal(err)
	}
	var costValue, outValue gorgonia.Value
	gorgonia.Read(cost, &costValue)
	gorgonia.Read(net.Out(), &outValue)
	tm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(net.Learnables()...))
	defer tm.Close()
	if err := tm.RunAll(); err != nil {
		t.Fatal(err)
	}
	out := append([]float64(nil), outValue.(*tensor.Dense).Float64s()...)
	loss := costValue.Data().(float64)
	tm.Reset()

	correct := -(math.Log(out[0]) + math.Log(1-out[1])) / 2
	if math.Abs(loss-correct) > 1e-12 {
		t.Errorf("Loss should be %v for read logits %v, but got %v", correct, out, loss)
	}
	// Same parameters without backward pass
	scorer := newTestScorer(t, cfg, len(sequences))
	logits, err := scorer.Score(oneHot(t, cfg, sequences...))
	if err != nil {
		t.Fatal(err)
	}
	for i := range logits {
		if math.Abs(logits[i]-out[i]) > 1e-12 {
			t.Errorf("Logit #%d read under Grad should be %v, but got %v", i, logits[i], out[i])
		}
	}
}

func TestSoftmaxGradients(t *testing.T) {
	for _, shape := range [][]int{{3, 4}, {3, 1}} {
		g := gorgonia.NewGraph()
		size := shape[0] * shape[1]
		xs := make([]float64, size)
		ws := make([]float64, size)
		for i := range xs {
			xs[i] = math.Sin(float64(i)) * 2
			ws[i] = float64(i%3) - 1
		}
		x := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(shape...), gorgonia.WithName("x"), gorgonia.WithValue(tensor.New(tensor.WithShape(shape...), tensor.WithBacking(xs))))
		w := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(shape...), gorgonia.WithName("w"), gorgonia.WithValue(tensor.New(tensor.WithShape(shape...), tensor.WithBacking(ws))))
		probs, err := Softmax(x, Options{Axis: []int{1}})
		if err != nil {
			t.Fatal(err)
		}
		weighted, err := gorgonia.HadamardProd(probs, w)
		if err != nil {
			t.Fatal(err)
		}
		cost, err := gorgonia.Sum(weighted)
		if err != nil {
			t.Fatal(err)
		}
		checkGradients(t, g, cost, gorgonia.Nodes{x})
	}
}
