package controller

import (
	"net/http"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

type healthReport struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemPercent    float64 `json:"mem_percent"`
	MemUsedBytes  uint64  `json:"mem_used_bytes"`
	MemTotalBytes uint64  `json:"mem_total_bytes"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
}

// getHealth reports host CPU, memory and uptime alongside the API.
func (c *Controller) getHealth(w http.ResponseWriter, r *http.Request) {
	var report healthReport
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		report.CPUPercent = pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		report.MemPercent = vm.UsedPercent
		report.MemUsedBytes = vm.Used
		report.MemTotalBytes = vm.Total
	}
	if up, err := host.Uptime(); err == nil {
		report.UptimeSeconds = up
	}
	writeJSON(w, report)
}
