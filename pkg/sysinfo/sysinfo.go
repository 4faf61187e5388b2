// Package sysinfo gathers the process/system load snapshot the storage
// server's status endpoint reports (§4.3.7): cpu%, memory%, rss, thread
// count, and 1/5/15-minute load averages.
package sysinfo

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/procfs"
)

// Snapshot is one point-in-time reading.
type Snapshot struct {
	CPUPercent    float64
	MemoryPercent float64
	RSSBytes      uint64
	Threads       int
	Load1         float64
	Load5         float64
	Load15        float64
}

// Reader samples process and system statistics via /proc. CPUPercent needs
// two samples to compute a rate, so Reader keeps the previous sample
// between calls; the first call after construction always reports 0 for
// CPUPercent.
type Reader struct {
	mu          sync.Mutex
	fs          procfs.FS
	available   bool
	lastCPUTime float64
	lastSampled time.Time
}

// NewReader opens the default /proc mount. On platforms without a
// procfs (anything but Linux), Snapshot always reports zeroes for the
// fields procfs would otherwise supply; load averages and process stats
// are a Linux-only concept in this deployment's target environment.
func NewReader() *Reader {
	fs, err := procfs.NewDefaultFS()
	return &Reader{fs: fs, available: err == nil}
}

// Snapshot reads the current process and system state.
func (r *Reader) Snapshot() Snapshot {
	if !r.available {
		return Snapshot{}
	}

	var snap Snapshot

	if avg, err := r.fs.LoadAvg(); err == nil {
		snap.Load1 = avg.Load1
		snap.Load5 = avg.Load5
		snap.Load15 = avg.Load15
	}

	var totalMemKB uint64
	if mem, err := r.fs.Meminfo(); err == nil && mem.MemTotal != nil {
		totalMemKB = *mem.MemTotal
	}

	proc, err := r.fs.Self()
	if err != nil {
		return snap
	}
	stat, err := proc.Stat()
	if err != nil {
		return snap
	}

	snap.Threads = stat.NumThreads
	snap.RSSBytes = uint64(stat.ResidentMemory())
	if totalMemKB > 0 {
		snap.MemoryPercent = 100 * float64(snap.RSSBytes) / (float64(totalMemKB) * 1024)
	}

	r.mu.Lock()
	now := time.Now()
	cpuTime := stat.CPUTime()
	if !r.lastSampled.IsZero() {
		elapsed := now.Sub(r.lastSampled).Seconds()
		if elapsed > 0 {
			cores := float64(runtime.NumCPU())
			snap.CPUPercent = 100 * (cpuTime - r.lastCPUTime) / elapsed / cores
			if snap.CPUPercent < 0 {
				snap.CPUPercent = 0
			}
		}
	}
	r.lastCPUTime = cpuTime
	r.lastSampled = now
	r.mu.Unlock()

	return snap
}
