package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.IngestRuns.WithLabelValues(OutcomeOK).Inc()
	m.LinksCreated.Add(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`mnemo_ingest_runs_total{outcome="ok"} 1`,
		`mnemo_ingest_links_total 3`,
		`mnemo_ingest_duration_seconds_count 0`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
