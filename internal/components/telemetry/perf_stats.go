package telemetry

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

const report_perf_stats = "perf_stats"

// InstrumentPerfStats periodically reports the cpu usage and memory stats of the process
// until ctx is cancelled.
func InstrumentPerfStats(ctx context.Context, tel API, interval time.Duration) {
	go func() {
		var memStats runtime.MemStats
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&memStats)

				cpuUsage, err := cpu.PercentWithContext(ctx, time.Second, false)
				if err == nil && len(cpuUsage) > 0 {
					tel.ReportCount("perf.cpu_usage_percent", int64(cpuUsage[0]))
				} else if err != nil {
					tel.ReportWarning(report_perf_stats, err)
				}

				tel.ReportCount("perf.allocated_mb", int64(memStats.Alloc/1_000_000))
				tel.ReportCount("perf.live_objects", int64(memStats.Mallocs)-int64(memStats.Frees))
				tel.ReportCount("perf.goroutine_count", int64(runtime.NumGoroutine()))
			case <-ctx.Done():
				return
			}
		}
	}()
}
