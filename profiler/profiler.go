// Package profiler - Process-level phase timing and memory accounting for a fork.
package profiler

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/nvr-ai/go-mh/benchmark"
)

// Phase names recorded by the scheduler.
const (
	PhaseWarmup      = "warmup"
	PhaseMeasurement = "measurement"
)

// Recorder collects the phase timings and memory delta of one process run.
// It is safe for concurrent use.
type Recorder struct {
	mu             sync.Mutex
	operationTimes map[string]time.Duration
	memBefore      runtime.MemStats
	memAfter       runtime.MemStats
	memStarted     bool
	memDone        bool
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{operationTimes: make(map[string]time.Duration)}
}

// StartOperation begins timing an operation.
//
// Arguments:
//   - name: The name of the operation to track.
//
// Returns:
//   - func(): Call when the operation completes.
func (r *Recorder) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		r.recordOperationTime(name, time.Since(start))
	}
}

func (r *Recorder) recordOperationTime(name string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operationTimes[name] += duration
}

// BeginMemory snapshots memory statistics after forcing a collection.
func (r *Recorder) BeginMemory() {
	runtime.GC()
	r.mu.Lock()
	defer r.mu.Unlock()
	runtime.ReadMemStats(&r.memBefore)
	r.memStarted = true
	r.memDone = false
}

// EndMemory snapshots memory statistics at the end of the measured span.
func (r *Recorder) EndMemory() {
	r.mu.Lock()
	defer r.mu.Unlock()
	runtime.ReadMemStats(&r.memAfter)
	r.memDone = true
}

// Profile returns the phase durations and the memory delta between
// BeginMemory and EndMemory.
func (r *Recorder) Profile() benchmark.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()

	var p benchmark.Profile
	p.WarmupDuration = r.operationTimes[PhaseWarmup]
	p.MeasurementDuration = r.operationTimes[PhaseMeasurement]
	if r.memStarted && r.memDone {
		p.MemoryStats = benchmark.MemoryMetrics{
			TotalAllocBytes: r.memAfter.TotalAlloc - r.memBefore.TotalAlloc,
			Mallocs:         r.memAfter.Mallocs - r.memBefore.Mallocs,
			NumGC:           r.memAfter.NumGC - r.memBefore.NumGC,
			HeapAllocBytes:  r.memAfter.HeapAlloc,
			SysBytes:        r.memAfter.Sys,
		}
	}
	return p
}

// FormatBytes formats byte counts in human-readable format.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
