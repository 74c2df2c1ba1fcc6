//go:build linux

package tuner

import (
	"runtime"

	"golang.org/x/sys/unix"
)

const defaultTotalRAM = 8 * 1024 * 1024 * 1024

// Detect reads CPU count from the runtime and memory from sysinfo(2).
func Detect() (SystemResources, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return SystemResources{
			CPUCores:     runtime.NumCPU(),
			TotalRAM:     defaultTotalRAM,
			AvailableRAM: defaultTotalRAM / 2,
		}, nil
	}

	unit := int64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return SystemResources{
		CPUCores:     runtime.NumCPU(),
		TotalRAM:     int64(info.Totalram) * unit,
		AvailableRAM: int64(info.Freeram+info.Bufferram) * unit,
	}, nil
}
