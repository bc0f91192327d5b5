//go:build cuda
// +build cuda

package textgan_go

import (
	"gorgonia.org/cu"
)

func acceleratorCount() (int, error) {
	return cu.NumDevices()
}
