package benches

import (
	"math"

	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-mh/benchmark"
)

const sqrtSize = 1024

func registerSqrt(reg *benchmark.Registry) error {
	in64 := make([]float64, sqrtSize)
	in32 := make([]float32, sqrtSize)
	for i := range in64 {
		in64[i] = float64(i) + 0.5
		in32[i] = float32(i) + 0.5
	}

	return benchmark.NewClass("SqrtBench").
		WithMode(benchmark.ModeThroughput).
		WithWarmupIterations(2).
		WithMeasurement(benchmark.Schedule{Iterations: 3, Time: 250, TimeUnit: benchmark.Milliseconds}).
		WithCase("float64", func() any {
			var acc float64
			for _, v := range in64 {
				acc += math.Sqrt(v)
			}
			return acc
		}).
		WithCase("float32", func() any {
			var acc float32
			for _, v := range in32 {
				acc += math32.Sqrt(v)
			}
			return acc
		}).
		Register(reg)
}
