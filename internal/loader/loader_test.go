package loader

import (
	"testing"
	"time"

	"github.com/plancraft/plancraft/internal/config"
	"github.com/plancraft/plancraft/internal/models"
)

func d(year int, month time.Month, day int) time.Time {
	return models.Date(year, month, day)
}

const sampleBundle = `
current_date: 2025-01-01
resources:
  - name: alice
    dns_periods:
      - start: 2025-07-01
        end: 2025-07-14
  - name: bob
groups:
  backend: [alice, bob]
global_dns_periods:
  - start: 2025-12-24
    end: 2025-12-31
config:
  strategy: cr_first
tasks:
  - id: api
    effort: 2w
    resources: ["alice|bob"]
    priority: 70
  - id: docs
    effort: 5d
    resources: ["bob:0.5"]
    dependencies:
      - task: api
        lag_days: 2
  - id: old
    effort: 1w
    status: done
  - id: launch
    effort: 0d
    timeframe: 2025q1
`

func TestParseBundle(t *testing.T) {
	bundle, err := Parse([]byte(sampleBundle))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !bundle.CurrentDate.Equal(d(2025, 1, 1)) {
		t.Errorf("current date = %v", bundle.CurrentDate)
	}
	if len(bundle.Tasks) != 3 {
		t.Fatalf("parsed %d tasks, want 3 (done task excluded)", len(bundle.Tasks))
	}
	if !bundle.CompletedTaskIDs["old"] {
		t.Error("done task should be in completed set")
	}
	if bundle.Config.Strategy != config.StrategyCRFirst {
		t.Errorf("strategy = %q", bundle.Config.Strategy)
	}
	// Sparse config still gets defaults filled in.
	if bundle.Config.CRWeight != 10.0 {
		t.Errorf("cr_weight = %f, want default 10", bundle.Config.CRWeight)
	}

	if len(bundle.Resources.Resources) != 2 {
		t.Fatalf("parsed %d resources", len(bundle.Resources.Resources))
	}
	if len(bundle.Resources.Resources[0].DNSPeriods) != 1 {
		t.Error("alice should carry a DNS period")
	}
	if len(bundle.GlobalDNSPeriods) != 1 {
		t.Error("missing global DNS period")
	}
}

func TestSpecDetection(t *testing.T) {
	bundle, err := Parse([]byte(sampleBundle))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	api := bundle.Tasks[0]
	if api.ResourceSpec != "alice|bob" {
		t.Errorf("api spec = %q", api.ResourceSpec)
	}
	if len(api.Resources) != 0 {
		t.Errorf("spec task should have no concrete resources: %v", api.Resources)
	}
	if api.DurationDays != 14 {
		t.Errorf("2w effort = %f days, want 14", api.DurationDays)
	}
}

func TestAllocationParsing(t *testing.T) {
	bundle, err := Parse([]byte(sampleBundle))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	docs := bundle.Tasks[1]
	if len(docs.Resources) != 1 || docs.Resources[0].Resource != "bob" {
		t.Fatalf("docs resources = %v", docs.Resources)
	}
	if docs.Resources[0].Allocation != 0.5 {
		t.Errorf("allocation = %f, want 0.5", docs.Resources[0].Allocation)
	}
	// 5 effort days at half allocation span 10 days.
	if docs.DurationDays != 10 {
		t.Errorf("duration = %f, want 10", docs.DurationDays)
	}
	if len(docs.Dependencies) != 1 || docs.Dependencies[0].LagDays != 2 {
		t.Errorf("dependencies = %v", docs.Dependencies)
	}
}

func TestTimeframeSeedsBounds(t *testing.T) {
	bundle, err := Parse([]byte(sampleBundle))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	launch := bundle.Tasks[2]
	if !launch.StartAfter.Equal(d(2025, 1, 1)) {
		t.Errorf("start_after = %v, want quarter start", launch.StartAfter)
	}
	if !launch.EndBefore.Equal(d(2025, 3, 31)) {
		t.Errorf("end_before = %v, want quarter end", launch.EndBefore)
	}
}

func TestParseEffort(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"5d", 5},
		{"2w", 14},
		{"1.5m", 45},
		{"L", 60},
		{"l", 60},
		{"nonsense", 7},
		{"", 7},
	}
	for _, tt := range tests {
		if got := parseEffort(tt.in); got != tt.want {
			t.Errorf("parseEffort(%q) = %f, want %f", tt.in, got, tt.want)
		}
	}
}

func TestGroupNameTreatedAsSpec(t *testing.T) {
	bundle, err := Parse([]byte(`
current_date: 2025-01-01
resources:
  - name: alice
  - name: bob
groups:
  backend: [alice, bob]
tasks:
  - id: t
    effort: 1w
    resources: ["backend"]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if bundle.Tasks[0].ResourceSpec != "backend" {
		t.Errorf("spec = %q, want group name", bundle.Tasks[0].ResourceSpec)
	}
}

func TestFixedDatesDeriveDuration(t *testing.T) {
	bundle, err := Parse([]byte(`
current_date: 2025-01-01
tasks:
  - id: offsite
    resources: ["alice"]
    start_on: 2025-02-03
    end_on: 2025-02-07
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	task := bundle.Tasks[0]
	if task.DurationDays != 4 {
		t.Errorf("duration = %f, want span of 4 days", task.DurationDays)
	}
}
