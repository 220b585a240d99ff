// Package benches - Sample benchmark classes compiled into the gomh binary.
package benches

import "github.com/nvr-ai/go-mh/benchmark"

// Register adds every sample class to reg.
//
// Arguments:
//   - reg: The registry to register into.
//
// Returns:
//   - error: The first registration error.
func Register(reg *benchmark.Registry) error {
	for _, register := range []func(*benchmark.Registry) error{
		registerSum,
		registerSqrt,
		registerResize,
		registerTensor,
	} {
		if err := register(reg); err != nil {
			return err
		}
	}
	return nil
}
