// Package metrics - Prometheus metrics for benchmark runs, written as a
// node_exporter textfile after the run.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nvr-ai/go-mh/aggregate"
)

const namespace = "gomh"

// Recorder holds the metrics of one run in its own registry.
type Recorder struct {
	registry *prometheus.Registry

	forksTotal   *prometheus.CounterVec
	forkDuration *prometheus.HistogramVec
	caseMean     *prometheus.GaugeVec
	caseStdev    *prometheus.GaugeVec
	caseRME      *prometheus.GaugeVec
}

// NewRecorder creates a recorder with a private registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		// forksTotal counts forks that produced a valid result.
		// Labels: class
		forksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forks_total",
			Help:      "Total forks completed",
		}, []string{"class"}),
		// forkDuration measures wall time per fork, including process start.
		// Labels: class
		forkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fork_duration_seconds",
			Help:      "Wall time of a fork in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"class"}),
		// Labels: class, case, unit
		caseMean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "case_mean",
			Help:      "Aggregated mean of a case in its report unit",
		}, []string{"class", "case", "unit"}),
		caseStdev: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "case_stdev",
			Help:      "Sample standard deviation of a case in its report unit",
		}, []string{"class", "case", "unit"}),
		caseRME: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "case_rme_percent",
			Help:      "Average relative margin of error of a case",
		}, []string{"class", "case"}),
	}

	r.registry.MustRegister(r.forksTotal, r.forkDuration, r.caseMean, r.caseStdev, r.caseRME)
	return r
}

// ForkCompleted records one finished fork.
func (r *Recorder) ForkCompleted(class string, _ int, elapsed time.Duration) {
	r.forksTotal.WithLabelValues(class).Inc()
	r.forkDuration.WithLabelValues(class).Observe(elapsed.Seconds())
}

// RecordRows sets the per-case gauges of a class.
//
// Arguments:
//   - class: The class name.
//   - unit: The report unit label, e.g. "ms/op" or "ops/s".
//   - rows: The aggregated rows.
func (r *Recorder) RecordRows(class, unit string, rows []aggregate.Row) {
	for _, row := range rows {
		r.caseMean.WithLabelValues(class, row.Name, unit).Set(row.Mean)
		r.caseStdev.WithLabelValues(class, row.Name, unit).Set(row.Stdev)
		r.caseRME.WithLabelValues(class, row.Name).Set(row.RMEAvg)
	}
}

// WriteTextfile writes every metric in the text exposition format.
func (r *Recorder) WriteTextfile(filename string) error {
	if err := prometheus.WriteToTextfile(filename, r.registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", filename)
	}
	return nil
}
