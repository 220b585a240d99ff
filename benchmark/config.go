package benchmark

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// validate checks Config struct tags. Field names in messages use the json
// names so they match what users write in override files.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field of the configuration.
//
// Returns:
//   - error: nil, or an error matching ErrConfiguration naming each offending field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(ErrConfiguration, err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s=%v violates %s", field, fe.Value(), rule))
	}
	return errors.Wrap(ErrConfiguration, strings.Join(msgs, "; "))
}

// Directive is one class-level configuration override. Directives are
// applied in declaration order on top of DefaultConfig.
type Directive struct {
	name  string
	apply func(*Config)
}

// String returns the directive name used in error messages.
func (d Directive) String() string {
	return d.name
}

// WithMode sets the benchmark mode.
func WithMode(mode Mode) Directive {
	return Directive{name: "WithMode", apply: func(c *Config) { c.Mode = mode }}
}

// WithOutputUnit sets the unit AverageTime results are reported in.
func WithOutputUnit(unit TimeUnit) Directive {
	return Directive{name: "WithOutputUnit", apply: func(c *Config) { c.OutputUnit = unit }}
}

// WithWarmup replaces the whole warmup schedule.
func WithWarmup(s Schedule) Directive {
	return Directive{name: "WithWarmup", apply: func(c *Config) { c.Warmup = s }}
}

// WithWarmupIterations changes only the number of warmup passes, keeping the
// previously resolved time and unit.
func WithWarmupIterations(n int) Directive {
	return Directive{name: "WithWarmupIterations", apply: func(c *Config) { c.Warmup.Iterations = n }}
}

// WithMeasurement replaces the whole measurement schedule.
func WithMeasurement(s Schedule) Directive {
	return Directive{name: "WithMeasurement", apply: func(c *Config) { c.Measurement = s }}
}

// WithMeasurementIterations changes only the number of measurement passes,
// keeping the previously resolved time and unit.
func WithMeasurementIterations(n int) Directive {
	return Directive{name: "WithMeasurementIterations", apply: func(c *Config) { c.Measurement.Iterations = n }}
}

// WithFork replaces the fork spec, including its args and env.
func WithFork(spec ForkSpec) Directive {
	spec = spec.Clone()
	return Directive{name: "WithFork", apply: func(c *Config) { c.Fork = spec.Clone() }}
}

// Resolve computes the effective configuration of a class.
//
// Arguments:
//   - class: The class name, used in error messages.
//   - directives: Overrides applied in order on top of DefaultConfig.
//
// Returns:
//   - Config: The resolved configuration. Resolving the same inputs twice
//     yields equal values that share no mutable state.
//   - error: An error matching ErrConfiguration naming the first directive
//     that produced an out-of-range value.
func Resolve(class string, directives ...Directive) (Config, error) {
	cfg := DefaultConfig()

	for i, d := range directives {
		if d.apply == nil {
			return Config{}, errors.Wrapf(ErrConfiguration, "class %q: directive %d is empty", class, i+1)
		}
		d.apply(&cfg)
		if err := cfg.Validate(); err != nil {
			return Config{}, errors.Wrapf(err, "class %q: directive %d (%s)", class, i+1, d)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "class %q", class)
	}

	return cfg.Clone(), nil
}
