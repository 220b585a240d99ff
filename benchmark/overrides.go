package benchmark

import (
	"bytes"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Overrides is a YAML document of per-class configuration overrides:
//
//	classes:
//	  SumBench:
//	    mode: Throughput
//	    warmup: 3             # iterations only, keeps time/timeUnit
//	    measurement: {iterations: 5, time: 200, timeUnit: ms}
//	    fork: {count: 2, env: {GOGC: "off"}}
type Overrides struct {
	Classes map[string]ClassOverride `yaml:"classes"`
}

// ClassOverride holds the overrides of one class. Nil fields are left as
// the class defined them.
type ClassOverride struct {
	Mode        *Mode             `yaml:"mode"`
	OutputUnit  *TimeUnit         `yaml:"outputUnit"`
	Warmup      *ScheduleOverride `yaml:"warmup"`
	Measurement *ScheduleOverride `yaml:"measurement"`
	Fork        *ForkSpec         `yaml:"fork"`
}

// ScheduleOverride is either a bare iteration count or a full schedule.
type ScheduleOverride struct {
	Iterations *int      `yaml:"iterations"`
	Time       *int      `yaml:"time"`
	TimeUnit   *TimeUnit `yaml:"timeUnit"`
}

// UnmarshalYAML accepts a scalar iteration count as shorthand.
func (s *ScheduleOverride) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var n int
		if err := node.Decode(&n); err != nil {
			return errors.Wrapf(err, "line %d: schedule shorthand must be an integer", node.Line)
		}
		s.Iterations = &n
		return nil
	}

	type plain ScheduleOverride
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = ScheduleOverride(p)
	return nil
}

// shorthand reports whether only the iteration count is set.
func (s *ScheduleOverride) shorthand() bool {
	return s.Iterations != nil && s.Time == nil && s.TimeUnit == nil
}

func (s *ScheduleOverride) schedule() Schedule {
	var out Schedule
	if s.Iterations != nil {
		out.Iterations = *s.Iterations
	}
	if s.Time != nil {
		out.Time = *s.Time
	}
	if s.TimeUnit != nil {
		out.TimeUnit = *s.TimeUnit
	}
	return out
}

// LoadOverrides reads an overrides file.
//
// Arguments:
//   - filename: Path to the YAML file.
//
// Returns:
//   - *Overrides: The parsed overrides.
//   - error: ErrConfiguration if the file cannot be read or parsed.
func LoadOverrides(filename string) (*Overrides, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "failed to read overrides file: %v", err)
	}
	o, err := ParseOverrides(data)
	if err != nil {
		return nil, errors.Wrapf(err, "overrides file %s", filename)
	}
	return o, nil
}

// ParseOverrides parses an overrides document. Unknown keys are rejected.
func ParseOverrides(data []byte) (*Overrides, error) {
	o := &Overrides{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(o); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(ErrConfiguration, "failed to parse overrides: %v", err)
	}
	return o, nil
}

// Check verifies that every overridden class exists.
func (o *Overrides) Check(known []string) error {
	if o == nil {
		return nil
	}
	set := make(map[string]struct{}, len(known))
	for _, k := range known {
		set[k] = struct{}{}
	}

	var unknown []string
	for name := range o.Classes {
		if _, ok := set[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.Wrapf(ErrConfiguration, "overrides name unknown classes: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// Directives converts the overrides of a class into directives.
func (o *Overrides) Directives(className string) []Directive {
	if o == nil {
		return nil
	}
	co, ok := o.Classes[className]
	if !ok {
		return nil
	}

	var ds []Directive
	if co.Mode != nil {
		ds = append(ds, WithMode(*co.Mode))
	}
	if co.OutputUnit != nil {
		ds = append(ds, WithOutputUnit(*co.OutputUnit))
	}
	if co.Warmup != nil {
		if co.Warmup.shorthand() {
			ds = append(ds, WithWarmupIterations(*co.Warmup.Iterations))
		} else {
			ds = append(ds, WithWarmup(co.Warmup.schedule()))
		}
	}
	if co.Measurement != nil {
		if co.Measurement.shorthand() {
			ds = append(ds, WithMeasurementIterations(*co.Measurement.Iterations))
		} else {
			ds = append(ds, WithMeasurement(co.Measurement.schedule()))
		}
	}
	if co.Fork != nil {
		ds = append(ds, WithFork(*co.Fork))
	}
	return ds
}
