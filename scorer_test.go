package textgan_go

import (
	"testing"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

func newTestScorer(t *testing.T, cfg Config, batchSize int) *Scorer {
	t.Helper()
	scorer, err := NewScorer(cfg, batchSize)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { scorer.Close() })
	return scorer
}

func oneHot(t *testing.T, cfg Config, sequences ...[]int) *tensor.Dense {
	t.Helper()
	batch, err := OneHotSequences(sequences, cfg.VocabSize, cfg.MaxSeqLen, cfg.PaddingIdx)
	if err != nil {
		t.Fatal(err)
	}
	return batch
}

func TestScoreOneHot(t *testing.T) {
	cfg := DefaultConfig(8, 4, 10, 0)
	scorer := newTestScorer(t, cfg, 2)
	logits, err := scorer.Score(oneHot(t, cfg, []int{1, 2, 3, 4}, []int{9, 8, 7, 6}))
	if err != nil {
		t.Fatal(err)
	}
	if len(logits) != 2 {
		t.Fatalf("Should be 2 logits, but got %d", len(logits))
	}
	for i, v := range logits {
		if v <= 0 || v >= 1 {
			t.Errorf("Logit #%d should be in (0, 1), but got %v", i, v)
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	cfg := DefaultConfig(8, 4, 10, 0)
	cfg.Init = InitNormal
	scorer := newTestScorer(t, cfg, 2)
	batch := oneHot(t, cfg, []int{1, 2, 3, 4}, []int{5, 5, 5})
	first, err := scorer.Score(batch)
	if err != nil {
		t.Fatal(err)
	}
	second, err := scorer.Score(batch)
	if err != nil {
		t.Fatal(err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Logit #%d differs between calls: %v and %v", i, first[i], second[i])
		}
	}
}

func TestScoreSequencesAreIndependent(t *testing.T) {
	changed := 0
	for seed := uint64(1); seed <= 5; seed++ {
		cfg := DefaultConfig(8, 4, 10, 0)
		cfg.Init = InitNormal
		cfg.Seed = seed
		scorer := newTestScorer(t, cfg, 2)
		before, err := scorer.Score(oneHot(t, cfg, []int{1, 2, 3, 4}, []int{4, 3, 2, 1}))
		if err != nil {
			t.Fatal(err)
		}
		// Change one token of second sequence only
		after, err := scorer.Score(oneHot(t, cfg, []int{1, 2, 3, 4}, []int{4, 3, 7, 1}))
		if err != nil {
			t.Fatal(err)
		}
		if before[0] != after[0] {
			t.Errorf("[seed %d] Logit of untouched sequence changed from %v to %v", seed, before[0], after[0])
		}
		if before[1] != after[1] {
			changed++
		}
	}
	if changed == 0 {
		t.Errorf("Changing a token should change logit of its sequence")
	}
}

func TestScoreSingleSequence(t *testing.T) {
	cfg := DefaultConfig(8, 4, 10, 0)
	scorer := newTestScorer(t, cfg, 1)
	logits, err := scorer.Score(oneHot(t, cfg, []int{3, 1, 4, 1}))
	if err != nil {
		t.Fatal(err)
	}
	if len(logits) != 1 || logits[0] <= 0 || logits[0] >= 1 {
		t.Errorf("Should be single logit in (0, 1), but got %v", logits)
	}
}

func TestScoreSingleToken(t *testing.T) {
	cases := []struct {
		embeddingDim int
		vocab        int
		sequences    [][]int
	}{
		{4, 1, [][]int{{0}, {0}}},
		{8, 2, [][]int{{1}}},
		{8, 10, [][]int{{3}, {9}, {0}}},
	}
	for _, c := range cases {
		cfg := DefaultConfig(c.embeddingDim, 1, c.vocab, 0)
		cfg.Init = InitNormal
		cfg.FeedForwardDim = 16
		scorer := newTestScorer(t, cfg, len(c.sequences))
		logits, err := scorer.Score(oneHot(t, cfg, c.sequences...))
		if err != nil {
			t.Fatalf("[D=%d, V=%d] %s", c.embeddingDim, c.vocab, err)
		}
		if len(logits) != len(c.sequences) {
			t.Fatalf("[D=%d, V=%d] Should be %d logits, but got %d", c.embeddingDim, c.vocab, len(c.sequences), len(logits))
		}
		for i, v := range logits {
			if v <= 0 || v >= 1 {
				t.Errorf("[D=%d, V=%d] Logit #%d should be in (0, 1), but got %v", c.embeddingDim, c.vocab, i, v)
			}
		}
	}
}

func TestScoreErrors(t *testing.T) {
	cfg := DefaultConfig(8, 4, 10, 0)
	scorer := newTestScorer(t, cfg, 2)
	cases := []struct {
		name  string
		shape []int
		cause error
	}{
		{"rank", []int{2, 40}, ErrShapeMismatch},
		{"vocabulary", []int{2, 4, 11}, ErrVocabMismatch},
		{"too long", []int{2, 5, 10}, ErrSequenceTooLong},
		{"too short", []int{2, 3, 10}, ErrShapeMismatch},
		{"batch", []int{3, 4, 10}, ErrShapeMismatch},
	}
	for _, c := range cases {
		batch := tensor.New(tensor.WithShape(c.shape...), tensor.Of(tensor.Float64))
		if _, err := scorer.Score(batch); !errors.Is(err, c.cause) {
			t.Errorf("[%s] Error should be caused by '%v', but got '%v'", c.name, c.cause, err)
		}
	}
	// Scorer keeps working after rejected batches
	if _, err := scorer.Score(oneHot(t, cfg, []int{1}, []int{2})); err != nil {
		t.Errorf("Valid batch should be scored: %s", err)
	}
}

func TestNewScorerErrors(t *testing.T) {
	if _, err := NewScorer(DefaultConfig(8, 4, 10, 0), 0); err == nil {
		t.Errorf("Zero batch size should cause an error")
	}
	if _, err := NewScorer(DefaultConfig(7, 4, 10, 0), 1); !errors.Is(err, ErrOddEmbeddingDim) {
		t.Errorf("Odd embedding dimension should cause ErrOddEmbeddingDim, but got %v", err)
	}
}
