package services

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

type HealthSample struct {
	CapturedAt       time.Time `json:"capturedAt" db:"captured_at"`
	ProcessRSSBytes  int64     `json:"processRssBytes" db:"process_rss_bytes"`
	MemoryTotalBytes int64     `json:"memoryTotalBytes" db:"memory_total_bytes"`
	MemoryUsedBytes  int64     `json:"memoryUsedBytes" db:"memory_used_bytes"`
	DiskTotalBytes   int64     `json:"diskTotalBytes" db:"disk_total_bytes"`
	DiskUsedBytes    int64     `json:"diskUsedBytes" db:"disk_used_bytes"`
	ProcessCPULoad   float64   `json:"processCpuLoad" db:"process_cpu_load"`
	SystemCPULoad    float64   `json:"systemCpuLoad" db:"system_cpu_load"`
}

// SampleHost reads host and process usage. Unreadable figures are left at zero.
func SampleHost(ctx context.Context, diskPath string) HealthSample {
	sample := HealthSample{CapturedAt: time.Now().UTC()}
	if memStat, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		sample.MemoryTotalBytes = int64(memStat.Total)
		sample.MemoryUsedBytes = int64(memStat.Total - memStat.Available)
	}
	diskStat, err := disk.UsageWithContext(ctx, diskPath)
	if err != nil {
		diskStat, err = disk.UsageWithContext(ctx, "/")
	}
	if err == nil {
		sample.DiskTotalBytes = int64(diskStat.Total)
		sample.DiskUsedBytes = int64(diskStat.Used)
	}
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if rss, err := proc.MemoryInfoWithContext(ctx); err == nil && rss != nil {
			sample.ProcessRSSBytes = int64(rss.RSS)
		}
		if load, err := proc.CPUPercentWithContext(ctx); err == nil {
			sample.ProcessCPULoad = load / 100.0
		}
	}
	if loads, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(loads) > 0 {
		sample.SystemCPULoad = loads[0] / 100.0
	}
	return sample
}

// CaptureHealth samples the host and stores the sample for the history view.
func CaptureHealth(ctx context.Context, db *sqlx.DB, diskPath string) (HealthSample, error) {
	sample := SampleHost(ctx, diskPath)
	_, err := db.ExecContext(ctx, `
INSERT INTO server_health_samples (
  id, captured_at, process_rss_bytes, memory_total_bytes, memory_used_bytes,
  disk_total_bytes, disk_used_bytes, process_cpu_load, system_cpu_load
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, uuid.NewString(), sample.CapturedAt, sample.ProcessRSSBytes, sample.MemoryTotalBytes, sample.MemoryUsedBytes,
		sample.DiskTotalBytes, sample.DiskUsedBytes, sample.ProcessCPULoad, sample.SystemCPULoad)
	if err != nil {
		return HealthSample{}, err
	}
	return sample, nil
}

// HealthHistory returns the latest samples in chronological order.
func HealthHistory(ctx context.Context, db *sqlx.DB, limit int) ([]HealthSample, error) {
	if limit <= 0 || limit > 500 {
		limit = 120
	}
	rows := []HealthSample{}
	if err := db.SelectContext(ctx, &rows, `
SELECT captured_at, process_rss_bytes, memory_total_bytes, memory_used_bytes,
       disk_total_bytes, disk_used_bytes, process_cpu_load, system_cpu_load
FROM server_health_samples
ORDER BY captured_at DESC
LIMIT $1
`, limit); err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// PruneHealth drops samples older than keep.
func PruneHealth(ctx context.Context, db *sqlx.DB, keep time.Duration) error {
	_, err := db.ExecContext(ctx, `DELETE FROM server_health_samples WHERE captured_at < $1`, time.Now().UTC().Add(-keep))
	return err
}
