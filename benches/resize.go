package benches

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"

	"github.com/nvr-ai/go-mh/benchmark"
)

const (
	resizeSource = 256
	resizeTarget = 64
)

// resizeInput builds a deterministic gradient frame.
func resizeInput() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, resizeSource, resizeSource))
	for y := 0; y < resizeSource; y++ {
		for x := 0; x < resizeSource; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func resizeCase(img image.Image, interp resize.InterpolationFunction) benchmark.CaseFunc {
	return func() any {
		return resize.Resize(resizeTarget, resizeTarget, img, interp).Bounds().Dx()
	}
}

func registerResize(reg *benchmark.Registry) error {
	img := resizeInput()

	return benchmark.NewClass("ResizeBench").
		WithOutputUnit(benchmark.Microseconds).
		WithWarmup(benchmark.Schedule{Iterations: 1, Time: 200, TimeUnit: benchmark.Milliseconds}).
		WithMeasurement(benchmark.Schedule{Iterations: 2, Time: 400, TimeUnit: benchmark.Milliseconds}).
		WithFork(benchmark.ForkSpec{Count: 2, Env: map[string]string{"GOMAXPROCS": "1"}}).
		WithCase("nearest", resizeCase(img, resize.NearestNeighbor)).
		WithCase("bilinear", resizeCase(img, resize.Bilinear)).
		WithCase("lanczos3", resizeCase(img, resize.Lanczos3)).
		Register(reg)
}
