package benchmark

import "time"

// Profile captures process-level timing and memory data of a fork.
type Profile struct {
	WarmupDuration      time.Duration `json:"warmup_duration"`
	MeasurementDuration time.Duration `json:"measurement_duration"`
	MemoryStats         MemoryMetrics `json:"memory_stats"`
}

// MemoryMetrics captures memory usage across the measurement phase.
type MemoryMetrics struct {
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	Mallocs         uint64 `json:"mallocs"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
}
