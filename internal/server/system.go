package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rohmanhakim/krishield/internal/cache"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

type systemResponse struct {
	Uptime        string  `json:"uptime"`
	OS            string  `json:"os"`
	Platform      string  `json:"platform,omitempty"`
	Hostname      string  `json:"hostname,omitempty"`
	Cores         int     `json:"cores"`
	Goroutines    int     `json:"goroutines"`
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryTotal   uint64  `json:"memoryTotalBytes"`
	MemoryPercent float64 `json:"memoryUsedPercent"`
	DiskFree      uint64  `json:"diskFreeBytes"`
	CacheDiskPath string  `json:"cacheDiskPath,omitempty"`
}

// systemHandler reports host load and free space where the cache lives.
// Probes that fail leave their fields at zero.
func (s *Server) systemHandler(c echo.Context) error {
	ctx := c.Request().Context()
	resp := systemResponse{
		Uptime:     time.Since(s.startedAt).Round(time.Second).String(),
		OS:         runtime.GOOS,
		Cores:      runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		resp.Platform = info.Platform
		resp.Hostname = info.Hostname
	}
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		resp.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resp.MemoryTotal = vm.Total
		resp.MemoryPercent = vm.UsedPercent
	}

	diskPath := "/"
	if cfg := s.app.Config(); cfg.CacheBackend() == cache.BackendFile {
		diskPath = cfg.CacheOptions().Dir
		resp.CacheDiskPath = diskPath
	}
	if usage, err := disk.UsageWithContext(ctx, diskPath); err == nil {
		resp.DiskFree = usage.Free
	}
	return c.JSON(http.StatusOK, resp)
}
