// Package aggregate - Reduces fork results to one statistical row per case.
package aggregate

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/nvr-ai/go-mh/benchmark"
)

// ErrAggregation indicates results of one case cannot be combined.
var ErrAggregation = errors.New("aggregation failed")

// Row is the reduction of every result of one case across all iterations
// of all forks.
type Row struct {
	Name  string             `json:"name"`
	Mode  benchmark.Mode     `json:"mode"`
	Unit  benchmark.TimeUnit `json:"unit"`
	Mean  float64            `json:"mean"`
	Stdev float64            `json:"stdev"`
	Min   float64            `json:"min"`
	Max   float64            `json:"max"`
	// N is the number of results (forks x iterations).
	N            int     `json:"n"`
	SamplesTotal int     `json:"samplesTotal"`
	RMEAvg       float64 `json:"rmeAvg"`
}

type group struct {
	name    string
	mode    benchmark.Mode
	unit    benchmark.TimeUnit
	values  []float64
	rmes    []float64
	samples int
}

// Rows reduces fork results to one row per case, in the order the cases
// first appear.
//
// Arguments:
//   - forks: The fork results of one class.
//
// Returns:
//   - []Row: One row per distinct case name.
//   - error: ErrAggregation if a case mixes modes or units, or a result
//     lacks the value its mode requires.
func Rows(forks []benchmark.ForkResult) ([]Row, error) {
	groups := make(map[string]*group)
	var order []string

	for _, fr := range forks {
		for _, it := range fr.Iterations {
			for _, r := range it.Results {
				v, err := r.Value()
				if err != nil {
					return nil, errors.Wrapf(ErrAggregation, "fork %d iteration %d: %v", fr.Fork, it.Iteration, err)
				}

				g, ok := groups[r.BenchName]
				if !ok {
					g = &group{name: r.BenchName, mode: r.Mode, unit: r.Unit}
					groups[r.BenchName] = g
					order = append(order, r.BenchName)
				}
				if r.Mode != g.mode {
					return nil, errors.Wrapf(ErrAggregation, "case %q mixes modes %s and %s", r.BenchName, g.mode, r.Mode)
				}
				if r.Mode == benchmark.ModeAverageTime && r.Unit != g.unit {
					return nil, errors.Wrapf(ErrAggregation, "case %q mixes units %s and %s", r.BenchName, g.unit, r.Unit)
				}

				g.values = append(g.values, v)
				g.rmes = append(g.rmes, r.RME)
				g.samples += r.Samples
			}
		}
	}

	rows := make([]Row, 0, len(order))
	for _, name := range order {
		rows = append(rows, groups[name].row())
	}
	return rows, nil
}

// ByName is Rows keyed by case name.
func ByName(forks []benchmark.ForkResult) (map[string]Row, error) {
	rows, err := Rows(forks)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Row, len(rows))
	for _, r := range rows {
		out[r.Name] = r
	}
	return out, nil
}

func (g *group) row() Row {
	r := Row{
		Name:         g.name,
		Mode:         g.mode,
		Unit:         g.unit,
		Mean:         stat.Mean(g.values, nil),
		Min:          floats.Min(g.values),
		Max:          floats.Max(g.values),
		N:            len(g.values),
		SamplesTotal: g.samples,
		RMEAvg:       stat.Mean(g.rmes, nil),
	}
	if len(g.values) > 1 {
		r.Stdev = stat.StdDev(g.values, nil)
	}
	return r
}
