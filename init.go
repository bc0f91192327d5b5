package textgan_go

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// InitScheme Parameters initialization scheme for discriminator
type InitScheme uint16

const (
	InitUniform = InitScheme(iota + 1)
	InitNormal
	InitTruncatedNormal
)

const (
	// uniformBound Bounds for InitUniform are [-uniformBound; uniformBound]
	uniformBound = 0.05
	// truncationBound Samples of InitTruncatedNormal are rejected beyond ±truncationBound standard deviations
	truncationBound = 2.0
)

// ParseInitScheme Returns scheme for its textual name: "uniform", "normal" or "truncated_normal"
func ParseInitScheme(s string) (InitScheme, error) {
	switch s {
	case "uniform":
		return InitUniform, nil
	case "normal":
		return InitNormal, nil
	case "truncated_normal":
		return InitTruncatedNormal, nil
	default:
		return 0, errors.Wrap(ErrUnknownInitScheme, fmt.Sprintf("'%s'", s))
	}
}

func (s InitScheme) String() string {
	switch s {
	case InitUniform:
		return "uniform"
	case InitNormal:
		return "normal"
	case InitTruncatedNormal:
		return "truncated_normal"
	default:
		return fmt.Sprintf("InitScheme(%d)", uint16(s))
	}
}

// Valid Checks if scheme is known
func (s InitScheme) Valid() bool {
	return s == InitUniform || s == InitNormal || s == InitTruncatedNormal
}

// Initializer Returns gorgonia's initialization function for parameter which leading dimension is leadingDim.
//
// Standard deviation for normal schemes is 1/sqrt(leadingDim).
// src - source of randomness. Nil means global source of golang.org/x/exp/rand
//
func (s InitScheme) Initializer(leadingDim int, src rand.Source) (gorgonia.InitWFn, error) {
	if leadingDim < 1 {
		return nil, fmt.Errorf("Leading dimension must be positive, but got %d", leadingDim)
	}
	stddev := 1.0 / math.Sqrt(float64(leadingDim))
	var sample func() float64
	switch s {
	case InitUniform:
		dist := distuv.Uniform{Min: -uniformBound, Max: uniformBound, Src: src}
		sample = dist.Rand
	case InitNormal:
		dist := distuv.Normal{Mu: 0, Sigma: stddev, Src: src}
		sample = dist.Rand
	case InitTruncatedNormal:
		dist := distuv.UnitNormal
		dist.Src = src
		sample = func() float64 {
			for {
				v := dist.Rand()
				if v > -truncationBound && v < truncationBound {
					return v * stddev
				}
			}
		}
	default:
		return nil, errors.Wrap(ErrUnknownInitScheme, s.String())
	}
	return func(dt tensor.Dtype, shape ...int) interface{} {
		size := tensor.Shape(shape).TotalSize()
		switch dt {
		case tensor.Float64:
			data := make([]float64, size)
			for i := range data {
				data[i] = sample()
			}
			return data
		case tensor.Float32:
			data := make([]float32, size)
			for i := range data {
				data[i] = float32(sample())
			}
			return data
		default:
			panic(fmt.Sprintf("Dtype %v is not supported for initialization", dt))
		}
	}, nil
}
