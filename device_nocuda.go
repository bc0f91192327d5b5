//go:build !cuda
// +build !cuda

package textgan_go

func acceleratorCount() (int, error) {
	return 0, nil
}
