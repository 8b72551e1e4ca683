package monitoring

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	highUsageThreshold = 90.0
	alertCooldown      = 15 * time.Minute
)

var (
	storeFileBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taskdeck_store_file_bytes",
		Help: "Size of the task store file.",
	})
	storeVolumeUsed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taskdeck_store_volume_used_percent",
		Help: "Used space of the volume holding the task store.",
	})
)

func init() {
	prometheus.MustRegister(storeFileBytes, storeVolumeUsed)
}

// StoreStats is one sample of the task store's footprint.
type StoreStats struct {
	Path              string    `json:"path"`
	FileBytes         int64     `json:"fileBytes"`
	VolumeTotal       uint64    `json:"volumeTotal"`
	VolumeFree        uint64    `json:"volumeFree"`
	VolumeUsedPercent float64   `json:"volumeUsedPercent"`
	SampledAt         time.Time `json:"sampledAt"`
}

// StoreMonitor periodically samples the store file and its volume.
type StoreMonitor struct {
	path string

	mu        sync.RWMutex
	last      StoreStats
	lastAlert time.Time

	now   func() time.Time
	usage func(ctx context.Context, path string) (*disk.UsageStat, error)
}

// NewStoreMonitor creates a monitor for the store file at path.
func NewStoreMonitor(path string) *StoreMonitor {
	return &StoreMonitor{
		path:  path,
		now:   time.Now,
		usage: disk.UsageWithContext,
	}
}

// Sample measures the store now, publishes the gauges and keeps the result
// for Stats. A store file that does not exist yet counts as empty.
func (m *StoreMonitor) Sample(ctx context.Context) (StoreStats, error) {
	stats := StoreStats{Path: m.path, SampledAt: m.now()}

	info, err := os.Stat(m.path)
	switch {
	case err == nil:
		stats.FileBytes = info.Size()
	case errors.Is(err, fs.ErrNotExist):
	default:
		return stats, fmt.Errorf("stat store file: %w", err)
	}

	usage, err := m.usage(ctx, filepath.Dir(m.path))
	if err != nil {
		return stats, fmt.Errorf("volume usage: %w", err)
	}
	stats.VolumeTotal = usage.Total
	stats.VolumeFree = usage.Free
	stats.VolumeUsedPercent = usage.UsedPercent

	storeFileBytes.Set(float64(stats.FileBytes))
	storeVolumeUsed.Set(stats.VolumeUsedPercent)

	m.mu.Lock()
	m.last = stats
	m.mu.Unlock()

	m.checkAndAlertForHighUsage(stats)
	return stats, nil
}

// Run is a JobFunc sampling the store.
func (m *StoreMonitor) Run(ctx context.Context) error {
	_, err := m.Sample(ctx)
	return err
}

// Stats returns the last successful sample.
func (m *StoreMonitor) Stats() StoreStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *StoreMonitor) checkAndAlertForHighUsage(stats StoreStats) {
	if stats.VolumeUsedPercent <= highUsageThreshold {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.lastAlert.IsZero() && stats.SampledAt.Sub(m.lastAlert) < alertCooldown {
		return
	}
	m.lastAlert = stats.SampledAt
	log.Warn().
		Str("path", stats.Path).
		Float64("used_percent", stats.VolumeUsedPercent).
		Uint64("free_bytes", stats.VolumeFree).
		Msg("Task store volume is almost full")
}
