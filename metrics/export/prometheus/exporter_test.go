package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dossier-crm/teamauth"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeSource struct {
	snapshot teamauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() teamauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestHandlerExposesCountersAndHistogram(t *testing.T) {
	out := scrape(t, Handler(fakeSource{
		snapshot: teamauth.MetricsSnapshot{
			Counters: map[teamauth.MetricID]uint64{
				teamauth.MetricLoginSuccess:   7,
				teamauth.MetricRefreshSuccess: 2,
			},
			Latencies: map[teamauth.MetricID]teamauth.LatencyHistogram{
				teamauth.MetricValidateLatency: {
					Buckets: []uint64{1, 2, 3, 4, 5, 6, 7, 8},
					Count:   36,
					Sum:     1500 * time.Millisecond,
				},
			},
		},
		dropped: 3,
	}))

	for _, want := range []string{
		"dossier_auth_login_success_total 7",
		"dossier_auth_refresh_success_total 2",
		"dossier_auth_login_failure_total 0",
		`dossier_auth_validate_latency_seconds_bucket{le="0.005"} 1`,
		`dossier_auth_validate_latency_seconds_bucket{le="0.5"} 28`,
		`dossier_auth_validate_latency_seconds_bucket{le="+Inf"} 36`,
		"dossier_auth_validate_latency_seconds_count 36",
		"dossier_auth_validate_latency_seconds_sum 1.5",
		"dossier_auth_audit_dropped_total 3",
		"go_goroutines",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestCollectorSkipsMissingHistogram(t *testing.T) {
	c := NewCollector(fakeSource{snapshot: teamauth.MetricsSnapshot{
		Counters:  map[teamauth.MetricID]uint64{},
		Latencies: map[teamauth.MetricID]teamauth.LatencyHistogram{},
	}})

	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var logins int
	for _, mf := range families {
		switch mf.GetName() {
		case "dossier_auth_validate_latency_seconds":
			t.Fatal("expected no latency histogram when histograms are disabled")
		case "dossier_auth_login_success_total":
			logins = len(mf.GetMetric())
		}
	}
	if logins != 1 {
		t.Fatalf("expected one login counter, got %d", logins)
	}
}

func TestCollectorAgainstEngineSnapshot(t *testing.T) {
	m := teamauth.NewMetrics(teamauth.MetricsConfig{Enabled: true})
	m.Inc(teamauth.MetricInviteAccepted)
	m.Inc(teamauth.MetricInviteAccepted)

	out := scrape(t, Handler(fakeSource{snapshot: m.Snapshot()}))
	if !strings.Contains(out, "dossier_auth_invite_accepted_total 2") {
		t.Fatalf("expected invite counter in output:\n%s", out)
	}
}
