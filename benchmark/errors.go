package benchmark

import "github.com/pkg/errors"

var (
	// ErrConfiguration indicates a directive supplied an out-of-range value.
	ErrConfiguration = errors.New("invalid benchmark configuration")

	// ErrRegistry indicates a registration or lookup error, such as a class
	// without any runnable case.
	ErrRegistry = errors.New("benchmark registry error")
)
