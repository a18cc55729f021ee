package dispatcher

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Sample is one reading of system load, in percent.
type Sample struct {
	MemoryPercent float64
	CPUPercent    float64
}

// Sampler reads current system load.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func(ctx context.Context) (Sample, error)

// Sample calls f.
func (f SamplerFunc) Sample(ctx context.Context) (Sample, error) {
	return f(ctx)
}

// SystemSampler reads host memory and CPU usage with gopsutil.
// CPU usage is measured since the previous call.
type SystemSampler struct{}

// Sample returns the used memory and overall CPU percentages.
func (SystemSampler) Sample(ctx context.Context) (Sample, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to read memory usage: %w", err)
	}
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to read CPU usage: %w", err)
	}

	s := Sample{MemoryPercent: vm.UsedPercent}
	if len(percents) > 0 {
		s.CPUPercent = percents[0]
	}
	return s, nil
}
