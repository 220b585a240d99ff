package benchmark

import "github.com/pkg/errors"

// RunResult is the outcome of one case in one pass of one process.
// Exactly one of MeanValue and OpsPerSecond is set, matching Mode.
type RunResult struct {
	BenchName string   `json:"benchName"`
	Mode      Mode     `json:"mode"`
	Unit      TimeUnit `json:"unit"`
	// MeanValue is the mean time per operation in Unit (AverageTime).
	MeanValue *float64 `json:"meanValue,omitempty"`
	// OpsPerSecond is the engine-reported throughput (Throughput).
	OpsPerSecond *float64 `json:"opsPerSecond,omitempty"`
	// RME is the relative margin of error in percent.
	RME float64 `json:"rme,omitempty"`
	// Samples is the number of raw samples the engine collected.
	Samples int `json:"samples,omitempty"`
}

// Value returns the mode-appropriate scalar of the result.
func (r RunResult) Value() (float64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	if r.Mode == ModeThroughput {
		return *r.OpsPerSecond, nil
	}
	return *r.MeanValue, nil
}

// Validate checks that exactly the field matching Mode is populated.
func (r RunResult) Validate() error {
	switch r.Mode {
	case ModeAverageTime:
		if r.MeanValue == nil {
			return errors.Errorf("result %q: AverageTime result without meanValue", r.BenchName)
		}
		if r.OpsPerSecond != nil {
			return errors.Errorf("result %q: AverageTime result carries opsPerSecond", r.BenchName)
		}
	case ModeThroughput:
		if r.OpsPerSecond == nil {
			return errors.Errorf("result %q: Throughput result without opsPerSecond", r.BenchName)
		}
		if r.MeanValue != nil {
			return errors.Errorf("result %q: Throughput result carries meanValue", r.BenchName)
		}
	default:
		return errors.Errorf("result %q: unknown mode %q", r.BenchName, r.Mode)
	}
	return nil
}

// IterationResult holds the results of one measurement pass.
type IterationResult struct {
	// Iteration is 1-based.
	Iteration int         `json:"iteration"`
	Results   []RunResult `json:"results"`
}

// ProcessEnv describes the process a fork ran in.
type ProcessEnv struct {
	GoVersion string   `json:"goVersion"`
	GOOS      string   `json:"goos"`
	GOARCH    string   `json:"goarch"`
	PID       int      `json:"pid"`
	NumCPU    int      `json:"numCpu"`
	Args      []string `json:"args"`
}

// ForkResult is everything one process produced for one class.
type ForkResult struct {
	Fork       int               `json:"fork"`
	Class      string            `json:"class"`
	RunID      string            `json:"runId,omitempty"`
	Iterations []IterationResult `json:"iterations"`
	Env        ProcessEnv        `json:"env"`
	Profile    Profile           `json:"profile"`
}

// Validate checks the structural invariants of a fork result.
func (f ForkResult) Validate() error {
	if f.Fork < 1 {
		return errors.Errorf("fork index %d is not positive", f.Fork)
	}
	for i, it := range f.Iterations {
		if it.Iteration != i+1 {
			return errors.Errorf("fork %d: iteration %d out of sequence (expected %d)", f.Fork, it.Iteration, i+1)
		}
		for _, r := range it.Results {
			if err := r.Validate(); err != nil {
				return errors.Wrapf(err, "fork %d iteration %d", f.Fork, it.Iteration)
			}
		}
	}
	return nil
}

// Summary holds the run-wide settings of one class.
type Summary struct {
	Class       string   `json:"class"`
	Forks       int      `json:"forks"`
	Warmup      Schedule `json:"warmup"`
	Measurement Schedule `json:"measurement"`
	Mode        Mode     `json:"mode"`
	Unit        TimeUnit `json:"unit"`
}

// NewSummary builds the summary of a class run from its resolved config.
func NewSummary(class string, cfg Config) Summary {
	forks := cfg.Fork.Count
	if forks < 1 {
		forks = 1
	}
	return Summary{
		Class:       class,
		Forks:       forks,
		Warmup:      cfg.Warmup,
		Measurement: cfg.Measurement,
		Mode:        cfg.Mode,
		Unit:        cfg.OutputUnit,
	}
}

// AggregatedResult is the full, unreduced dataset of one class run.
type AggregatedResult struct {
	RunID   string       `json:"runId"`
	Summary Summary      `json:"summary"`
	Forks   []ForkResult `json:"forks"`
}
