package benches

import (
	"gonum.org/v1/gonum/floats"

	"github.com/nvr-ai/go-mh/benchmark"
)

const sumSize = 4096

var (
	sumInts   = make([]int, sumSize)
	sumFloats = make([]float64, sumSize)
)

func init() {
	for i := range sumInts {
		sumInts[i] = i
		sumFloats[i] = float64(i)
	}
}

// SumLoop adds integers with a plain loop.
func SumLoop() any {
	total := 0
	for _, v := range sumInts {
		total += v
	}
	return total
}

// SumFloats adds floats with gonum.
func SumFloats() any {
	return floats.Sum(sumFloats)
}

// SumUnrolled adds integers four at a time.
func SumUnrolled() any {
	var a, b, c, d int
	i := 0
	for ; i+4 <= len(sumInts); i += 4 {
		a += sumInts[i]
		b += sumInts[i+1]
		c += sumInts[i+2]
		d += sumInts[i+3]
	}
	for ; i < len(sumInts); i++ {
		a += sumInts[i]
	}
	return a + b + c + d
}

func registerSum(reg *benchmark.Registry) error {
	return benchmark.NewClass("SumBench").
		WithOutputUnit(benchmark.Microseconds).
		WithWarmup(benchmark.Schedule{Iterations: 1, Time: 200, TimeUnit: benchmark.Milliseconds}).
		WithMeasurement(benchmark.Schedule{Iterations: 3, Time: 300, TimeUnit: benchmark.Milliseconds}).
		WithCase("", SumLoop).
		WithCase("", SumUnrolled).
		WithCase("", SumFloats).
		Register(reg)
}
