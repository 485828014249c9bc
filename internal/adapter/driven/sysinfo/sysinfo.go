// Package sysinfo collects host vitals for the health endpoint.
package sysinfo

import (
	"context"
	"log/slog"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Vitals is a point-in-time snapshot of host resource usage.
type Vitals struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float64 `json:"mem_percent"`
	MemUsedMB  uint64  `json:"mem_used_mb"`
	Load1      float64 `json:"load1"`
}

// Collector reads host vitals. Individual probe failures degrade to zero
// values rather than failing the snapshot.
type Collector struct {
	logger *slog.Logger
}

func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{logger: logger}
}

// Snapshot gathers current CPU, memory, and load figures.
func (c *Collector) Snapshot(ctx context.Context) Vitals {
	var v Vitals

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		c.logger.Warn("cpu probe failed", "error", err)
	} else if len(percents) > 0 {
		v.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		c.logger.Warn("memory probe failed", "error", err)
	} else {
		v.MemPercent = vm.UsedPercent
		v.MemUsedMB = vm.Used / (1024 * 1024)
	}

	if avg, err := load.AvgWithContext(ctx); err != nil {
		c.logger.Warn("load probe failed", "error", err)
	} else {
		v.Load1 = avg.Load1
	}

	return v
}
