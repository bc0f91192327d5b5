package textgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gorgonia.org/tensor"
)

type PaddingSliceType int

const (
	PADDING_PRE = PaddingSliceType(iota)
	PADDING_POST
)

// PaddingIntSlice Returns slice of exactly maxLen tokens: pads it by paddingIdx or truncates it.
// PADDING_POST appends padding and cuts the tail, PADDING_PRE prepends padding and cuts the head.
// Inspired by: https://www.tensorflow.org/api_docs/python/tf/keras/preprocessing/sequence/pad_sequences
func PaddingIntSlice(sl []int, maxLen, paddingIdx int, pt PaddingSliceType) []int {
	if maxLen <= 0 {
		return []int{}
	}
	ans := make([]int, 0, maxLen)
	if len(sl) >= maxLen {
		if pt == PADDING_PRE {
			return append(ans, sl[len(sl)-maxLen:]...)
		}
		return append(ans, sl[:maxLen]...)
	}
	padding := make([]int, maxLen-len(sl))
	for i := range padding {
		padding[i] = paddingIdx
	}
	if pt == PADDING_PRE {
		ans = append(ans, padding...)
		return append(ans, sl...)
	}
	ans = append(ans, sl...)
	return append(ans, padding...)
}

// OneHotSequences Returns (len(batch) x maxLen x vocab) tensor of one-hot distributions.
// Every sequence is post-padded (or truncated) to maxLen by paddingIdx
func OneHotSequences(batch [][]int, vocab, maxLen, paddingIdx int) (*tensor.Dense, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("Batch must have one sequence atleast")
	}
	if vocab < 1 || maxLen < 1 {
		return nil, fmt.Errorf("Vocabulary size and max length must be positive, but got %d and %d", vocab, maxLen)
	}
	data := make([]float64, len(batch)*maxLen*vocab)
	for b, seq := range batch {
		padded := PaddingIntSlice(seq, maxLen, paddingIdx, PADDING_POST)
		for p, token := range padded {
			if token < 0 || token >= vocab {
				return nil, errors.Wrap(ErrVocabMismatch, fmt.Sprintf("token %d at [%d, %d] is out of vocabulary of size %d", token, b, p, vocab))
			}
			data[(b*maxLen+p)*vocab+token] = 1
		}
	}
	return tensor.New(tensor.WithShape(len(batch), maxLen, vocab), tensor.WithBacking(data)), nil
}

// Series Named values which are plotted against their indices
type Series struct {
	Name   string
	Values []float64
}

// PlotSeries Plot lines chart for provided series and save it to file (extension defines format)
func PlotSeries(fname, title, xLabel, yLabel string, series ...Series) error {
	if len(series) == 0 {
		return fmt.Errorf("There are no series to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	for i, s := range series {
		if len(s.Values) == 0 {
			return fmt.Errorf("Series #%d ('%s') is empty", i, s.Name)
		}
		xys := make(plotter.XYs, len(s.Values))
		for j, v := range s.Values {
			xys[j].X = float64(j)
			xys[j].Y = v
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't init new line for series '%s'", s.Name))
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		if s.Name != "" {
			p.Legend.Add(s.Name, line)
		}
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}
