//go:build linux

package cpu

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// pinToCore restricts the current thread to one core. The caller must hold
// runtime.LockOSThread.
func pinToCore(core int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(core)

	// pid 0 targets the calling thread
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("cpu: pin to core %d: %w", core, err)
	}
	return nil
}

// Affinity returns the cores the calling thread may currently run on.
func Affinity() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, err
	}

	cores := make([]int, 0, set.Count())
	for i := range NumCPU() {
		if set.IsSet(i) {
			cores = append(cores, i)
		}
	}
	return cores, nil
}
