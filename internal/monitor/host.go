// Package monitor reports host-level resource usage for the status
// endpoint and the health-check log line.
package monitor

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// HostMetrics is a point-in-time snapshot of local resource usage.
type HostMetrics struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryUsed    uint64    `json:"memory_used"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector samples host CPU and memory.
type Collector struct {
	logger *zap.Logger
}

// NewCollector creates a host metrics collector.
func NewCollector(logger *zap.Logger) *Collector {
	return &Collector{logger: logger.Named("monitor")}
}

// Collect samples current usage. Sampling problems are logged and leave
// the affected field zero; a metrics hiccup must never fail a caller.
func (c *Collector) Collect() HostMetrics {
	metrics := HostMetrics{CollectedAt: time.Now()}

	cpuPercent, err := cpu.Percent(0, false)
	if err != nil {
		c.logger.Warn("Failed to sample CPU usage", zap.Error(err))
	} else if len(cpuPercent) > 0 {
		metrics.CPUPercent = cpuPercent[0]
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		c.logger.Warn("Failed to sample memory usage", zap.Error(err))
	} else {
		metrics.MemoryPercent = memInfo.UsedPercent
		metrics.MemoryUsed = memInfo.Used
	}

	return metrics
}
