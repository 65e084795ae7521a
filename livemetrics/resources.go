package livemetrics

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
)

// resourceSample carries the two machine fields the live-metrics post body
// needs beyond the envelope-derived counters: cpu-usage and
// heap-committed.
type resourceSample struct {
	cpuPercent    float64
	heapCommitted uint64
}

// resourceSampler reuses a single gopsutil process handle across samples;
// CPUPercent needs a prior call to establish its measurement window.
type resourceSampler struct {
	proc *process.Process
}

func newResourceSampler() *resourceSampler {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return &resourceSampler{}
	}
	return &resourceSampler{proc: p}
}

func (r *resourceSampler) sample(ctx context.Context) resourceSample {
	var cpu float64
	if r.proc != nil {
		if pct, err := r.proc.PercentWithContext(ctx, 0); err == nil {
			cpu = pct
		}
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return resourceSample{cpuPercent: cpu, heapCommitted: mem.HeapSys}
}
