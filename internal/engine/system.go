package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/antichaos/antichaos/internal/config"
	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemInfo describes the running process and the volume of the sqlite database.
type SystemInfo struct {
	StartedAt  time.Time
	Uptime     time.Duration
	Goroutines int
	// MemoryRSS is zero when the process stats are unavailable.
	MemoryRSS uint64
	// DatabaseDisk is nil for postgres.
	DatabaseDisk *DiskUsage
}

// DiskUsage is the usage of the volume holding a path.
type DiskUsage struct {
	Path        string
	Total       uint64
	Used        uint64
	UsedPercent float64
}

// SystemInfo collects process and disk statistics for the admin dashboard.
func (e *Engine) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	info := &SystemInfo{
		StartedAt:  e.started,
		Uptime:     e.now().Sub(e.started),
		Goroutines: runtime.NumGoroutine(),
	}

	if pid, err := safecast.ToInt32(os.Getpid()); err == nil {
		if proc, err := process.NewProcessWithContext(ctx, pid); err == nil {
			if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
				info.MemoryRSS = mem.RSS
			} else {
				log.Debug("Failed to read process memory", "error", err)
			}
		}
	}

	if e.cfg.Database != nil && e.cfg.Database.Driver == config.DatabaseDriverSQLite {
		dir := filepath.Dir(e.cfg.Database.Path)
		usage, err := disk.UsageWithContext(ctx, dir)
		if err != nil {
			return nil, err
		}
		info.DatabaseDisk = &DiskUsage{
			Path:        dir,
			Total:       usage.Total,
			Used:        usage.Used,
			UsedPercent: usage.UsedPercent,
		}
	}

	return info, nil
}
