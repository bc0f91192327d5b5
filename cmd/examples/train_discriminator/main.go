package main

import (
	"fmt"
	"math/rand"

	textgan "github.com/LdDl/textgan-go"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var (
	learningRate = 0.001
	batchSize    = 8
	numOfEpochs  = 300
	evalPrint    = 50
	embeddingDim = 16
	maxSeqLen    = 6
	vocabulary   = 12
	paddingIdx   = 0
)

func main() {
	rand.Seed(1337)

	/* Define Gorgonia's graph */
	netGraph := gorgonia.NewGraph()

	/* Define discriminator */
	cfg := textgan.DefaultConfig(embeddingDim, maxSeqLen, vocabulary, paddingIdx)
	cfg.Init = textgan.InitTruncatedNormal
	cfg.FeedForwardDim = 64
	discriminator, err := textgan.NewDiscriminator(netGraph, cfg)
	if err != nil {
		panic(err)
	}

	/* Prepare tensor for input values */
	inputNet := gorgonia.NewTensor(netGraph, gorgonia.Float64, 3, gorgonia.WithShape(batchSize, maxSeqLen, vocabulary), gorgonia.WithName("discriminator_train_input"))
	err = discriminator.Fwd(inputNet)
	if err != nil {
		panic(err)
	}

	/* Prepare tensor for label values */
	targetNet := gorgonia.NewMatrix(netGraph, gorgonia.Float64, gorgonia.WithShape(batchSize, 1), gorgonia.WithName("discriminator_label"))

	/* Prepare cost node: binary cross-entropy */
	cost, err := textgan.BinaryCrossEntropyLoss(discriminator.Out(), targetNet, textgan.LossReductionMean)
	if err != nil {
		panic(err)
	}
	gorgonia.WithName("discriminator_loss")(cost)

	/* Define gradients */
	_, err = gorgonia.Grad(cost, discriminator.Learnables()...)
	if err != nil {
		panic(err)
	}

	/* Prepare variables for storing neural network's cost and output */
	var costOut, netOut gorgonia.Value
	gorgonia.Read(cost, &costOut)
	gorgonia.Read(discriminator.Out(), &netOut)

	/* Define tape machine */
	tm := gorgonia.NewTapeMachine(netGraph, gorgonia.BindDualValues(discriminator.Learnables()...))
	defer tm.Close()

	/* Initialize solver */
	solver := gorgonia.NewAdamSolver(gorgonia.WithBatchSize(float64(batchSize)), gorgonia.WithLearnRate(learningRate))

	losses := make([]float64, 0, numOfEpochs)
	for e := 0; e < numOfEpochs; e++ {
		batch, labels, err := sampleBatch()
		if err != nil {
			panic(err)
		}
		err = gorgonia.Let(inputNet, batch)
		if err != nil {
			panic(err)
		}
		err = gorgonia.Let(targetNet, labels)
		if err != nil {
			panic(err)
		}
		/* Run training step */
		err = tm.RunAll()
		if err != nil {
			panic(err)
		}
		err = solver.Step(gorgonia.NodesToValueGrads(discriminator.Learnables()))
		if err != nil {
			panic(err)
		}
		tm.Reset()
		losses = append(losses, costOut.Data().(float64))
		if e%evalPrint == 0 {
			fmt.Printf("Epoch %d:\n", e)
			fmt.Printf("\tDiscriminator's loss: %v\n", costOut)
		}
	}

	/* Test */
	batch, labels, err := sampleBatch()
	if err != nil {
		panic(err)
	}
	err = gorgonia.Let(inputNet, batch)
	if err != nil {
		panic(err)
	}
	err = gorgonia.Let(targetNet, labels)
	if err != nil {
		panic(err)
	}
	err = tm.RunAll()
	if err != nil {
		panic(err)
	}
	scores := netOut.Data().([]float64)
	for i := range scores {
		fmt.Printf("Sample #%d: label %.0f, evaluated %.4f\n", i, labels.Data().([]float64)[i], scores[i])
	}
	tm.Reset()

	if err := textgan.PlotSeries("discriminator_loss.png", "Discriminator training", "Epoch", "Loss", textgan.Series{Name: "BCE", Values: losses}); err != nil {
		panic(err)
	}
}

// sampleBatch Real sequences are runs of consecutive tokens, fake ones are random tokens. Halves of batch are labeled 1 and 0
func sampleBatch() (*tensor.Dense, *tensor.Dense, error) {
	sequences := make([][]int, batchSize)
	labels := make([]float64, batchSize)
	for i := range sequences {
		sequences[i] = make([]int, maxSeqLen)
		if i%2 == 0 {
			start := 1 + rand.Intn(vocabulary-1)
			for j := range sequences[i] {
				sequences[i][j] = 1 + (start+j-1)%(vocabulary-1)
			}
			labels[i] = 1
			continue
		}
		for j := range sequences[i] {
			sequences[i][j] = 1 + rand.Intn(vocabulary-1)
		}
	}
	batch, err := textgan.OneHotSequences(sequences, vocabulary, maxSeqLen, paddingIdx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't prepare batch")
	}
	return batch, tensor.New(tensor.WithShape(batchSize, 1), tensor.WithBacking(labels)), nil
}
