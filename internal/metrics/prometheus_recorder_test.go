package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("fetch", 150*time.Millisecond)
	pr.IncStageResult("fetch", ResultSuccess)
	pr.IncStageResult("execute", ResultFatal)
	pr.ObserveTaskDuration(2 * time.Second)
	pr.IncTaskOutcome(OutcomeFailed)
	pr.ObserveCommandDuration(time.Second, 1)
	pr.SetLastSuccess("acme/site", time.Unix(1700000000, 0))

	require.InDelta(t, 1, testutil.ToFloat64(pr.stageResults.WithLabelValues("execute", "fatal")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(pr.taskOutcome.WithLabelValues("failed")), 0)
	require.InDelta(t, 1700000000, testutil.ToFloat64(pr.lastSuccess.WithLabelValues("acme/site")), 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveStageDuration("fetch", time.Second)
	pr.IncTaskOutcome(OutcomeSuccess)
	require.Nil(t, pr.Registry())
}

func TestWriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncTaskOutcome(OutcomeSuccess)

	path := filepath.Join(t.TempDir(), "collector", "refbuilder.prom")
	require.NoError(t, WriteTextfile(path, pr.Registry()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `refbuilder_task_outcomes_total{outcome="success"} 1`)
}

func TestPush(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	pr := NewPrometheusRecorder(nil)
	pr.IncTaskOutcome(OutcomeSuccess)
	err := Push(context.Background(), srv.URL, "refbuilder", pr.Registry(), map[string]string{"repository": "acme_site"})
	require.NoError(t, err)
	require.Equal(t, "/metrics/job/refbuilder/repository/acme_site", gotPath)
	require.NotEmpty(t, gotBody)
}
