package health

import (
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// ResourceProbe reports host utilization. Deployments without one pass nil
// and the throttle falls back to the error-count rule; this is a supported
// mode, not a failure.
type ResourceProbe interface {
	CPUPercent() (float64, error)
	MemoryPercent() (float64, error)
}

type systemProbe struct{}

// NewSystemProbe returns a ResourceProbe backed by host metrics.
func NewSystemProbe() ResourceProbe { return systemProbe{} }

func (systemProbe) CPUPercent() (float64, error) {
	vals, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(vals) == 0 {
		return 0, err
	}
	return vals[0], nil
}

func (systemProbe) MemoryPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}
