// Package hoststats reads resource usage of the local machine.
package hoststats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sync/errgroup"

	"github.com/greg-hellings/servicedash/pkg/model"
)

const bytesPerGB = 1024 * 1024 * 1024

// Probes are the system calls a Collector makes. Zero fields use gopsutil.
type Probes struct {
	CPUPercent func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	CPUCounts  func(ctx context.Context, logical bool) (int, error)
	Memory     func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	Disk       func(ctx context.Context, path string) (*disk.UsageStat, error)
}

// Collector gathers host statistics.
type Collector struct {
	// Interval is the CPU sampling window; zero compares against the
	// previous call.
	Interval time.Duration
	// Path is the filesystem reported as storage, "/" by default.
	Path   string
	Probes Probes
	Logger *slog.Logger
}

// Collect reads CPU, memory and storage usage concurrently. A failing probe
// is logged and leaves its fields zero; only context cancellation is an
// error.
func (c *Collector) Collect(ctx context.Context) (*model.HostStats, error) {
	p := c.probes()
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	path := c.Path
	if path == "" {
		path = "/"
	}

	var (
		mu    sync.Mutex
		stats model.HostStats
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		pct, err := p.CPUPercent(gctx, c.Interval, false)
		if err != nil || len(pct) == 0 {
			logger.Warn("failed to get CPU usage", "error", err)
			return nil
		}
		mu.Lock()
		stats.CPU.Usage = pct[0]
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		cores, err := p.CPUCounts(gctx, false)
		if err != nil {
			logger.Warn("failed to get CPU core count", "error", err)
		}
		threads, terr := p.CPUCounts(gctx, true)
		if terr != nil {
			logger.Warn("failed to get CPU thread count", "error", terr)
		}
		mu.Lock()
		stats.CPU.Cores = cores
		stats.CPU.Threads = threads
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		vm, err := p.Memory(gctx)
		if err != nil {
			logger.Warn("failed to get memory info", "error", err)
			return nil
		}
		mu.Lock()
		stats.Memory.UsedGB = float64(vm.Used) / bytesPerGB
		stats.Memory.TotalGB = float64(vm.Total) / bytesPerGB
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		du, err := p.Disk(gctx, path)
		if err != nil {
			logger.Warn("failed to get disk info", "path", path, "error", err)
			return nil
		}
		mu.Lock()
		stats.Storage.UsedGB = float64(du.Used) / bytesPerGB
		stats.Storage.TotalGB = float64(du.Total) / bytesPerGB
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Debug("collected host stats", "cpu", stats.CPU.Usage, "memoryGB", stats.Memory.UsedGB)
	return &stats, nil
}

// HostStats is Collect under the name the dashboard API client uses.
func (c *Collector) HostStats(ctx context.Context) (*model.HostStats, error) {
	return c.Collect(ctx)
}

func (c *Collector) probes() Probes {
	p := c.Probes
	if p.CPUPercent == nil {
		p.CPUPercent = cpu.PercentWithContext
	}
	if p.CPUCounts == nil {
		p.CPUCounts = cpu.CountsWithContext
	}
	if p.Memory == nil {
		p.Memory = mem.VirtualMemoryWithContext
	}
	if p.Disk == nil {
		p.Disk = disk.UsageWithContext
	}
	return p
}
