package benchmark

import "github.com/pkg/errors"

// ClassBuilder helps build benchmark classes with fluent API.
type ClassBuilder struct {
	name       string
	directives []Directive
	cases      []Case
	setup      func() error
}

// NewClass creates a new class builder.
//
// Arguments:
//   - name: The class name.
//
// Returns:
//   - *ClassBuilder: The class builder.
func NewClass(name string) *ClassBuilder {
	return &ClassBuilder{name: name}
}

// WithMode sets the benchmark mode.
func (b *ClassBuilder) WithMode(mode Mode) *ClassBuilder {
	b.directives = append(b.directives, WithMode(mode))
	return b
}

// WithOutputUnit sets the AverageTime output unit.
func (b *ClassBuilder) WithOutputUnit(unit TimeUnit) *ClassBuilder {
	b.directives = append(b.directives, WithOutputUnit(unit))
	return b
}

// WithWarmup sets the warmup schedule.
func (b *ClassBuilder) WithWarmup(s Schedule) *ClassBuilder {
	b.directives = append(b.directives, WithWarmup(s))
	return b
}

// WithWarmupIterations sets the number of warmup passes.
func (b *ClassBuilder) WithWarmupIterations(n int) *ClassBuilder {
	b.directives = append(b.directives, WithWarmupIterations(n))
	return b
}

// WithMeasurement sets the measurement schedule.
func (b *ClassBuilder) WithMeasurement(s Schedule) *ClassBuilder {
	b.directives = append(b.directives, WithMeasurement(s))
	return b
}

// WithMeasurementIterations sets the number of measurement passes.
func (b *ClassBuilder) WithMeasurementIterations(n int) *ClassBuilder {
	b.directives = append(b.directives, WithMeasurementIterations(n))
	return b
}

// WithFork sets the fork spec.
func (b *ClassBuilder) WithFork(spec ForkSpec) *ClassBuilder {
	b.directives = append(b.directives, WithFork(spec))
	return b
}

// WithCase adds a case. An empty name uses the function's identifier.
func (b *ClassBuilder) WithCase(name string, fn CaseFunc) *ClassBuilder {
	b.cases = append(b.cases, Case{Name: name, Invoke: fn})
	return b
}

// WithSetup sets the per-process setup function.
func (b *ClassBuilder) WithSetup(setup func() error) *ClassBuilder {
	b.setup = setup
	return b
}

// Register defines the class and its cases in the registry.
//
// Arguments:
//   - reg: The registry to register into.
//
// Returns:
//   - error: The first configuration or registration error.
func (b *ClassBuilder) Register(reg *Registry) error {
	if reg == nil {
		return errors.Wrapf(ErrRegistry, "class %q: nil registry", b.name)
	}
	if err := reg.Define(b.name, b.directives...); err != nil {
		return err
	}
	for _, c := range b.cases {
		if err := reg.Register(b.name, c.Name, c.Invoke); err != nil {
			return err
		}
	}
	if b.setup != nil {
		return reg.SetSetup(b.name, b.setup)
	}
	return nil
}
