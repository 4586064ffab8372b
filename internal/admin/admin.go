package admin

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

var StartTime = time.Now()

const gb = 1024 * 1024 * 1024

// GetServerHealthHandler collects and returns system-level metrics.
// Metrics that cannot be read on the host are left out instead of failing the request.
func GetServerHealthHandler(c echo.Context) error {
	ctx := c.Request().Context()

	runtimeInfo := map[string]interface{}{
		"uptime":     time.Since(StartTime).Round(time.Second).String(),
		"start_time": StartTime.Format(time.RFC3339),
		"goroutines": runtime.NumGoroutine(),
	}
	if hInfo, err := host.InfoWithContext(ctx); err == nil {
		runtimeInfo["os"] = hInfo.OS
		runtimeInfo["platform"] = hInfo.Platform
		runtimeInfo["arch"] = hInfo.KernelArch
		runtimeInfo["hostname"] = hInfo.Hostname
	} else {
		log.Warn().Err(err).Msg("Failed to read host info")
	}

	resp := map[string]interface{}{
		"status":  "online",
		"runtime": runtimeInfo,
	}

	cpuInfo := map[string]interface{}{"cores": runtime.NumCPU()}
	// Usage is sampled over one second.
	if cpuPercent, err := cpu.PercentWithContext(ctx, time.Second, false); err == nil && len(cpuPercent) > 0 {
		cpuInfo["usage_percent"] = fmt.Sprintf("%.2f%%", cpuPercent[0])
	}
	resp["cpu"] = cpuInfo

	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resp["memory"] = map[string]interface{}{
			"total_gb":     fmt.Sprintf("%.2f GB", float64(v.Total)/gb),
			"used_gb":      fmt.Sprintf("%.2f GB", float64(v.Used)/gb),
			"used_percent": fmt.Sprintf("%.2f%%", v.UsedPercent),
			"free_gb":      fmt.Sprintf("%.2f GB", float64(v.Free)/gb),
		}
	}

	if d, err := disk.UsageWithContext(ctx, "/"); err == nil {
		resp["disk"] = map[string]interface{}{
			"total_gb":     fmt.Sprintf("%.2f GB", float64(d.Total)/gb),
			"used_gb":      fmt.Sprintf("%.2f GB", float64(d.Used)/gb),
			"used_percent": fmt.Sprintf("%.2f%%", d.UsedPercent),
		}
	}

	return c.JSON(http.StatusOK, resp)
}
