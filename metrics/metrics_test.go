package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-mh/aggregate"
)

func TestForkCompleted(t *testing.T) {
	r := NewRecorder()
	r.ForkCompleted("SumBench", 1, 250*time.Millisecond)
	r.ForkCompleted("SumBench", 2, 300*time.Millisecond)
	r.ForkCompleted("SqrtBench", 1, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.forksTotal.WithLabelValues("SumBench")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.forksTotal.WithLabelValues("SqrtBench")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.forkDuration))
}

func TestRecordRows(t *testing.T) {
	r := NewRecorder()
	r.RecordRows("SumBench", "ms/op", []aggregate.Row{
		{Name: "loop", Mean: 1.5, Stdev: 0.1, RMEAvg: 2.5},
		{Name: "reduce", Mean: 0.5, Stdev: 0.05, RMEAvg: 1},
	})

	assert.Equal(t, 1.5, testutil.ToFloat64(r.caseMean.WithLabelValues("SumBench", "loop", "ms/op")))
	assert.Equal(t, 0.05, testutil.ToFloat64(r.caseStdev.WithLabelValues("SumBench", "reduce", "ms/op")))
	assert.Equal(t, 2.5, testutil.ToFloat64(r.caseRME.WithLabelValues("SumBench", "loop")))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ForkCompleted("SumBench", 1, time.Second)
	r.RecordRows("SumBench", "ops/s", []aggregate.Row{{Name: "loop", Mean: 1000}})

	path := filepath.Join(t.TempDir(), "gomh.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `gomh_forks_total{class="SumBench"} 1`)
	assert.Contains(t, string(data), `gomh_case_mean{case="loop",class="SumBench",unit="ops/s"} 1000`)

	assert.Error(t, r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "gomh.prom")))
}
