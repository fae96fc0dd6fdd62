package internaldefs

import (
	"slices"
	"strings"
	"testing"

	"github.com/dossier-crm/teamauth"
)

func TestCounterDefsCoverEveryCounter(t *testing.T) {
	seen := make(map[teamauth.MetricID]bool, len(CounterDefs))
	names := make(map[string]bool, len(CounterDefs))
	for _, def := range CounterDefs {
		if seen[def.ID] {
			t.Fatalf("metric id %d defined twice", def.ID)
		}
		if names[def.Name] {
			t.Fatalf("metric name %s defined twice", def.Name)
		}
		if !strings.HasPrefix(def.Name, "dossier_auth_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("unexpected counter name %s", def.Name)
		}
		seen[def.ID] = true
		names[def.Name] = true
	}
	for id := teamauth.MetricID(0); id < teamauth.MetricValidateLatency; id++ {
		if !seen[id] {
			t.Fatalf("metric id %d has no exporter definition", id)
		}
	}
}

func TestBucketLabels(t *testing.T) {
	want := []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}
	if got := BucketLabels(); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCumulative(t *testing.T) {
	got := Cumulative(teamauth.LatencyHistogram{Buckets: []uint64{1, 0, 2}})
	want := []uint64{1, 1, 3, 3, 3, 3, 3, 3}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := Cumulative(teamauth.LatencyHistogram{}); len(got) != teamauth.LatencyBucketCount || got[len(got)-1] != 0 {
		t.Fatalf("unexpected empty cumulative %v", got)
	}
}
