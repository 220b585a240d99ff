package benches

import (
	"sync"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-mh/benchmark"
)

const matrixSize = 32

// tensorFixtures holds the operands built by the class setup.
type tensorFixtures struct {
	once sync.Once
	err  error

	a, b *tensor.Dense

	vm  G.VM
	out *G.Node
}

func newMatrix(seed float32) *tensor.Dense {
	backing := make([]float32, matrixSize*matrixSize)
	for i := range backing {
		backing[i] = seed + float32(i%17)*0.25
	}
	return tensor.New(tensor.WithShape(matrixSize, matrixSize), tensor.WithBacking(backing))
}

// setup builds the operands and the graph once per process.
func (f *tensorFixtures) setup() error {
	f.once.Do(func() {
		f.a = newMatrix(1)
		f.b = newMatrix(2)

		g := G.NewGraph()
		x := G.NewMatrix(g, tensor.Float32, G.WithShape(matrixSize, matrixSize), G.WithName("x"), G.WithValue(f.a))
		w := G.NewMatrix(g, tensor.Float32, G.WithShape(matrixSize, matrixSize), G.WithName("w"), G.WithValue(f.b))
		out, err := G.Mul(x, w)
		if err != nil {
			f.err = errors.Wrap(err, "failed to build graph")
			return
		}
		f.out = out
		f.vm = G.NewTapeMachine(g)
	})
	return f.err
}

func (f *tensorFixtures) add() any {
	out, err := tensor.Add(f.a, f.b)
	if err != nil {
		panic(err)
	}
	return out.Size()
}

func (f *tensorFixtures) matMul() any {
	out, err := tensor.MatMul(f.a, f.b)
	if err != nil {
		panic(err)
	}
	return out.Size()
}

func (f *tensorFixtures) graph() any {
	defer f.vm.Reset()
	if err := f.vm.RunAll(); err != nil {
		panic(err)
	}
	return f.out.Value().Size()
}

func registerTensor(reg *benchmark.Registry) error {
	f := &tensorFixtures{}

	return benchmark.NewClass("TensorBench").
		WithOutputUnit(benchmark.Microseconds).
		WithWarmup(benchmark.Schedule{Iterations: 1, Time: 200, TimeUnit: benchmark.Milliseconds}).
		WithMeasurementIterations(3).
		WithSetup(f.setup).
		WithCase("add", f.add).
		WithCase("matmul", f.matMul).
		WithCase("graph", f.graph).
		Register(reg)
}
