// Package report - Ranks aggregated rows and renders them as a text table or JSON.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nvr-ai/go-mh/aggregate"
	"github.com/nvr-ai/go-mh/benchmark"
	"github.com/nvr-ai/go-mh/profiler"
)

const (
	minNameWidth = 18
	numWidth     = 12
	separator    = "  "
)

// Report is everything rendered for one class.
type Report struct {
	RunID   string                 `json:"runId"`
	Summary benchmark.Summary      `json:"summary"`
	Rows    []aggregate.Row        `json:"rows"`
	Forks   []benchmark.ForkResult `json:"forks"`
}

// New aggregates and ranks the result of one class run.
//
// Arguments:
//   - agg: The collected fork results of one class.
//
// Returns:
//   - Report: Rows ranked by ascending mean.
//   - error: aggregate.ErrAggregation if the results cannot be combined.
func New(agg benchmark.AggregatedResult) (Report, error) {
	rows, err := aggregate.Rows(agg.Forks)
	if err != nil {
		return Report{}, err
	}
	return Report{
		RunID:   agg.RunID,
		Summary: agg.Summary,
		Rows:    Rank(rows),
		Forks:   agg.Forks,
	}, nil
}

// Rank returns a copy of rows sorted by ascending mean. Rows with equal
// means keep their input order. Throughput rows use the same order, so the
// slowest case comes first.
func Rank(rows []aggregate.Row) []aggregate.Row {
	out := append([]aggregate.Row(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Mean < out[j].Mean
	})
	return out
}

// FormatValue formats a statistic: two decimals for throughput, otherwise
// four, five or six decimals depending on magnitude.
func FormatValue(v float64, mode benchmark.Mode) string {
	switch {
	case mode == benchmark.ModeThroughput:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case v >= 1:
		return strconv.FormatFloat(v, 'f', 4, 64)
	case v >= 0.01:
		return strconv.FormatFloat(v, 'f', 5, 64)
	default:
		return strconv.FormatFloat(v, 'f', 6, 64)
	}
}

// UnitLabel returns "ops/s" for throughput and the per-op unit otherwise.
func UnitLabel(s benchmark.Summary) string {
	if s.Mode == benchmark.ModeThroughput {
		return "ops/s"
	}
	return s.Unit.PerOp()
}

// Render formats ranked rows as the text report of one class.
func Render(rows []aggregate.Row, s benchmark.Summary) string {
	var sb strings.Builder

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "=== gomh: %s ===\n", s.Class)
	fmt.Fprintf(&sb, "mode=%s, unit=%s, forks=%d, warmup=%s, measurement=%s\n",
		s.Mode, UnitLabel(s), s.Forks, s.Warmup, s.Measurement)

	valueHeader := "Mean"
	if s.Mode == benchmark.ModeThroughput {
		valueHeader = "Ops/s"
	}
	headers := []string{"Benchmark", valueHeader, "Stdev", "Min", "Max", "N", "Samples", "RME%"}

	nameWidth := minNameWidth
	for _, r := range rows {
		if len(r.Name) > nameWidth {
			nameWidth = len(r.Name)
		}
	}

	header := formatLine(nameWidth, headers[0], headers[1:])
	sb.WriteString("\n")
	sb.WriteString(header + "\n")
	sb.WriteString(strings.Repeat("-", len(header)) + "\n")

	for _, r := range rows {
		sb.WriteString(formatLine(nameWidth, r.Name, []string{
			FormatValue(r.Mean, s.Mode),
			FormatValue(r.Stdev, s.Mode),
			FormatValue(r.Min, s.Mode),
			FormatValue(r.Max, s.Mode),
			strconv.Itoa(r.N),
			strconv.Itoa(r.SamplesTotal),
			strconv.FormatFloat(r.RMEAvg, 'f', 2, 64),
		}) + "\n")
	}

	if len(rows) >= 2 && s.Mode == benchmark.ModeAverageTime && rows[0].Mean > 0 {
		base := rows[0].Mean
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "(relative to fastest: %s)\n", rows[0].Name)
		for _, r := range rows {
			ratio := r.Mean / base
			fmt.Fprintf(&sb, "- %s: x%.3f (%+.1f%%)\n", r.Name, ratio, (ratio-1)*100)
		}
	}

	return sb.String()
}

// RenderProfiles formats one line per fork with its phase durations and the
// memory allocated while measuring.
func RenderProfiles(forks []benchmark.ForkResult) string {
	if len(forks) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n(fork profiles)\n")
	for _, fr := range forks {
		p := fr.Profile
		fmt.Fprintf(&sb, "fork %d: warmup=%s, measurement=%s, alloc=%s, mallocs=%d, gc=%d\n",
			fr.Fork,
			p.WarmupDuration.Round(time.Millisecond),
			p.MeasurementDuration.Round(time.Millisecond),
			profiler.FormatBytes(p.MemoryStats.TotalAllocBytes),
			p.MemoryStats.Mallocs,
			p.MemoryStats.NumGC)
	}
	return sb.String()
}

func formatLine(nameWidth int, name string, cells []string) string {
	parts := make([]string, 0, len(cells)+1)
	parts = append(parts, fmt.Sprintf("%-*s", nameWidth, name))
	for _, c := range cells {
		parts = append(parts, fmt.Sprintf("%*s", numWidth, c))
	}
	return strings.Join(parts, separator)
}
