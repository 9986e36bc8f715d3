//go:build !linux

package cpu

func pinToCore(int) error {
	return ErrPinningUnsupported
}

// Affinity is not available off Linux.
func Affinity() ([]int, error) {
	return nil, ErrPinningUnsupported
}
