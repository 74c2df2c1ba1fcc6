//go:build !linux

package tuner

import "runtime"

const defaultTotalRAM = 8 * 1024 * 1024 * 1024

// Detect uses runtime.NumCPU and assumes 8GB of RAM, half of it free.
func Detect() (SystemResources, error) {
	return SystemResources{
		CPUCores:     runtime.NumCPU(),
		TotalRAM:     defaultTotalRAM,
		AvailableRAM: defaultTotalRAM / 2,
	}, nil
}
