package main

import (
	"flag"
	"fmt"
	"math/rand"

	textgan "github.com/LdDl/textgan-go"
)

var (
	embeddingDim = flag.Int("embed", 16, "Embedding dimension (even, divisible by number of heads)")
	maxSeqLen    = flag.Int("maxlen", 8, "Max sequence length")
	vocabulary   = flag.Int("vocab", 20, "Vocabulary size")
	paddingIdx   = flag.Int("padding", 0, "Padding token index")
	disInit      = flag.String("dis_init", "uniform", "Initialization scheme: uniform, normal or truncated_normal")
	seed         = flag.Uint64("seed", 1337, "Seed used for initialization")
	gpu          = flag.Bool("gpu", false, "Expect CUDA device (binary must be built with 'cuda' tag)")
	batchSize    = flag.Int("batch", 4, "Number of sequences to score")
	plotFile     = flag.String("plot", "positional.png", "Where to save positional encoding chart. Empty string disables plotting")
)

func main() {
	flag.Parse()
	rand.Seed(1337)

	scheme, err := textgan.ParseInitScheme(*disInit)
	if err != nil {
		fmt.Println(err)
		return
	}
	cfg := textgan.DefaultConfig(*embeddingDim, *maxSeqLen, *vocabulary, *paddingIdx)
	cfg.Init = scheme
	cfg.Seed = *seed
	cfg.GPU = *gpu

	scorer, err := textgan.NewScorer(cfg, *batchSize)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer scorer.Close()
	fmt.Printf("Discriminator is ready on %s with %d learnables\n", scorer.Discriminator().Device(), len(scorer.Discriminator().Learnables()))

	if *plotFile != "" {
		if err := plotPositional(scorer.Discriminator(), *plotFile); err != nil {
			fmt.Println(err)
			return
		}
		fmt.Printf("Positional encoding chart has been saved to '%s'\n", *plotFile)
	}

	sequences := make([][]int, *batchSize)
	for i := range sequences {
		// Random length: the rest is padded
		length := 1 + rand.Intn(*maxSeqLen)
		sequences[i] = make([]int, length)
		for j := range sequences[i] {
			sequences[i][j] = rand.Intn(*vocabulary)
		}
	}
	batch, err := textgan.OneHotSequences(sequences, *vocabulary, *maxSeqLen, *paddingIdx)
	if err != nil {
		fmt.Println(err)
		return
	}
	logits, err := scorer.Score(batch)
	if err != nil {
		fmt.Println(err)
		return
	}
	for i := range sequences {
		fmt.Printf("Sequence %v\n\tProbability of being real: %.4f\n", sequences[i], logits[i])
	}
}

func plotPositional(net *textgan.DiscriminatorNet, fname string) error {
	table := net.PositionalTable()
	rows, cols := table.Shape()[0], table.Shape()[1]
	channels := 4
	if cols < channels {
		channels = cols
	}
	series := make([]textgan.Series, channels)
	for c := 0; c < channels; c++ {
		series[c].Name = fmt.Sprintf("channel %d", c)
		series[c].Values = make([]float64, rows)
		for p := 0; p < rows; p++ {
			v, err := table.At(p, c)
			if err != nil {
				return err
			}
			series[c].Values[p] = v.(float64)
		}
	}
	return textgan.PlotSeries(fname, "Positional encoding", "Position", "Value", series...)
}
