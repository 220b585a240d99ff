// Package benchmark - Benchmark class configuration, registration and result types.
package benchmark

import (
	"fmt"
	"time"
)

// Mode represents which statistic of a benchmark case is authoritative.
type Mode string

const (
	// ModeAverageTime reports the mean time per operation in the output unit.
	ModeAverageTime Mode = "AverageTime"
	// ModeThroughput reports operations per second.
	ModeThroughput Mode = "Throughput"
)

// TimeUnit represents the unit used for schedules and AverageTime output.
type TimeUnit string

// TimeUnit constants
const (
	Nanoseconds  TimeUnit = "ns"
	Microseconds TimeUnit = "us"
	Milliseconds TimeUnit = "ms"
	Seconds      TimeUnit = "s"
)

// Scale returns the length of one unit expressed in milliseconds.
//
// Returns:
//   - float64: ms→1, us→0.001, ns→0.000001, s→1000. Zero for unknown units.
func (u TimeUnit) Scale() float64 {
	switch u {
	case Nanoseconds:
		return 0.000001
	case Microseconds:
		return 0.001
	case Milliseconds:
		return 1
	case Seconds:
		return 1000
	default:
		return 0
	}
}

// Duration returns the length of one unit as a time.Duration.
func (u TimeUnit) Duration() time.Duration {
	switch u {
	case Nanoseconds:
		return time.Nanosecond
	case Microseconds:
		return time.Microsecond
	case Milliseconds:
		return time.Millisecond
	case Seconds:
		return time.Second
	default:
		return 0
	}
}

// PerOp returns the report label for a per-operation value in this unit.
func (u TimeUnit) PerOp() string {
	switch u {
	case Nanoseconds:
		return "ns/op"
	case Microseconds:
		return "us/op"
	case Milliseconds:
		return "ms/op"
	default:
		return "s/op"
	}
}

// Schedule describes a warmup or measurement phase: Iterations passes, each
// running every case for at least Time in TimeUnit.
type Schedule struct {
	Iterations int      `json:"iterations" yaml:"iterations" validate:"min=1"`
	Time       int      `json:"time"       yaml:"time"       validate:"gt=0"`
	TimeUnit   TimeUnit `json:"timeUnit"   yaml:"timeUnit"   validate:"oneof=ns us ms s"`
}

// Duration returns the minimum per-case time of one pass.
func (s Schedule) Duration() time.Duration {
	return time.Duration(s.Time) * s.TimeUnit.Duration()
}

// String renders the schedule as "<iterations>x<time><unit>".
func (s Schedule) String() string {
	return fmt.Sprintf("%dx%d%s", s.Iterations, s.Time, s.TimeUnit)
}

// ForkSpec controls how many isolated processes replicate the run and how
// they are launched.
type ForkSpec struct {
	// Count is the number of forks.
	Count int `json:"count" yaml:"count" validate:"min=1"`
	// Args are placed between the executable and the run-child sub-command.
	// Each must be a flag, otherwise it would be taken as the sub-command.
	Args []string `json:"args,omitempty" yaml:"args" validate:"dive,startswith=-"`
	// Env is merged into the inherited environment of each fork.
	Env map[string]string `json:"env,omitempty" yaml:"env"`
}

// Clone returns a deep copy of the fork spec.
func (f ForkSpec) Clone() ForkSpec {
	out := ForkSpec{Count: f.Count}
	if f.Args != nil {
		out.Args = append([]string(nil), f.Args...)
	}
	if f.Env != nil {
		out.Env = make(map[string]string, len(f.Env))
		for k, v := range f.Env {
			out.Env[k] = v
		}
	}
	return out
}

// Config is the resolved configuration of one benchmark class.
type Config struct {
	Mode        Mode     `json:"mode"        validate:"oneof=AverageTime Throughput"`
	OutputUnit  TimeUnit `json:"outputUnit"  validate:"oneof=ns us ms s"`
	Warmup      Schedule `json:"warmup"`
	Measurement Schedule `json:"measurement"`
	Fork        ForkSpec `json:"fork"`
}

// DefaultConfig returns the configuration every class starts from.
//
// Returns:
//   - Config: AverageTime in ms, warmup 1x300ms, measurement 3x800ms, one fork.
func DefaultConfig() Config {
	return Config{
		Mode:        ModeAverageTime,
		OutputUnit:  Milliseconds,
		Warmup:      Schedule{Iterations: 1, Time: 300, TimeUnit: Milliseconds},
		Measurement: Schedule{Iterations: 3, Time: 800, TimeUnit: Milliseconds},
		Fork:        ForkSpec{Count: 1},
	}
}

// Clone returns a deep copy so callers never share the fork args or env.
func (c Config) Clone() Config {
	out := c
	out.Fork = c.Fork.Clone()
	return out
}

// Unit returns the report label for the class: the per-op unit for
// AverageTime and "ops/s" for Throughput.
func (c Config) Unit() string {
	if c.Mode == ModeThroughput {
		return "ops/s"
	}
	return c.OutputUnit.PerOp()
}
