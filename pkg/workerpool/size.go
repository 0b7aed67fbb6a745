package workerpool

import (
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
)

// DefaultSize returns the number of logical cores reported by the platform,
// falling back to runtime.NumCPU when the platform query fails.
func DefaultSize() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}
