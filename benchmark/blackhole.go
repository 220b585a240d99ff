package benchmark

import "math"

// sink accumulates consumed values so the compiler cannot prove them unused.
var sink uint64

// Consume folds v into a package-level sink and returns it unchanged.
func Consume[T any](v T) T {
	switch x := any(v).(type) {
	case int:
		sink ^= uint64(x)
	case int64:
		sink ^= uint64(x)
	case uint64:
		sink ^= x
	case float64:
		sink ^= math.Float64bits(x)
	case float32:
		sink ^= uint64(math.Float32bits(x))
	case string:
		sink ^= uint64(len(x))
	case nil:
	default:
		sink ^= 1
	}
	return v
}

// ConsumeCPU burns roughly tokens iterations of a linear congruential step.
func ConsumeCPU(tokens int) {
	var x uint32
	for i := 0; i < tokens; i++ {
		x = x*1664525 + 1013904223
	}
	sink ^= uint64(x)
}
