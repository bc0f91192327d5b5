package textgan_go

import (
	"fmt"

	"github.com/pkg/errors"
)

// Device Which device has been requested and found for discriminator.
// It doesn't place anything: the graph is executed by gorgonia's tape machine, which runs CUDA ops only when
// both gorgonia and this module are built with 'cuda' tag. GPU resolution guarantees a visible CUDA device.
type Device uint8

const (
	CPU = Device(iota)
	GPU
)

func (d Device) String() string {
	switch d {
	case CPU:
		return "cpu"
	case GPU:
		return "gpu"
	default:
		return fmt.Sprintf("Device(%d)", uint8(d))
	}
}

// resolveDevice Picks device for requested GPU flag. Requested but missing accelerator is an error
func resolveDevice(gpu bool) (Device, error) {
	if !gpu {
		return CPU, nil
	}
	n, err := acceleratorCount()
	if err != nil {
		return CPU, errors.Wrap(ErrNoAccelerator, err.Error())
	}
	if n < 1 {
		return CPU, errors.Wrap(ErrNoAccelerator, "no CUDA devices found (is binary built with 'cuda' tag?)")
	}
	return GPU, nil
}
