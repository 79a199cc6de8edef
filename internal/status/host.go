package status

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// HostHealth is a snapshot of the machine running the engine
type HostHealth struct {
	MemUsedPercent float64       `json:"mem_used_percent"`
	ProcessRSS     uint64        `json:"process_rss"`
	ProcessCPU     float64       `json:"process_cpu"`
	Uptime         time.Duration `json:"uptime"`
}

// HostStats collects host health. Partial results are returned along with
// the joined errors of the probes that failed.
func HostStats(ctx context.Context) (HostHealth, error) {
	var h HostHealth
	var errs []error

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		errs = append(errs, err)
	} else {
		h.MemUsedPercent = vm.UsedPercent
	}

	if up, err := host.UptimeWithContext(ctx); err != nil {
		errs = append(errs, err)
	} else {
		h.Uptime = time.Duration(up) * time.Second
	}

	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		errs = append(errs, err)
		return h, errors.Join(errs...)
	}
	if mi, err := p.MemoryInfoWithContext(ctx); err != nil {
		errs = append(errs, err)
	} else {
		h.ProcessRSS = mi.RSS
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err != nil {
		errs = append(errs, err)
	} else {
		h.ProcessCPU = cpu
	}
	return h, errors.Join(errs...)
}
