package resource

import (
	"errors"
	"reflect"
	"testing"
)

func testConfig() *Config {
	return &Config{
		Resources: []Definition{
			{Name: "john"},
			{Name: "mary"},
			{Name: "susan"},
		},
		Groups: map[string][]string{
			"team_a": {"john", "mary"},
		},
	}
}

func TestExpandSpec(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		spec string
		want []string
	}{
		{"*", []string{"john", "mary", "susan"}},
		{"john|mary|susan", []string{"john", "mary", "susan"}},
		{"mary|john", []string{"mary", "john"}},
		{"team_a", []string{"john", "mary"}},
		{"!john", []string{"mary", "susan"}},
		{"*|!john|!mary", []string{"susan"}},
		{"team_a|!john", []string{"mary"}},
		{"john|team_a", []string{"john", "mary"}},
		{"john|john", []string{"john"}},
	}

	for _, tt := range tests {
		got, err := ExpandSpec(tt.spec, cfg)
		if err != nil {
			t.Errorf("ExpandSpec(%q) error: %v", tt.spec, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ExpandSpec(%q) = %v, want %v", tt.spec, got, tt.want)
		}
	}
}

func TestExpandSpecUnknownResource(t *testing.T) {
	cfg := testConfig()
	_, err := ExpandSpec("nobody", cfg)

	var unknownErr *UnknownResourceError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownResourceError, got %v", err)
	}
	if unknownErr.Name != "nobody" {
		t.Errorf("error names %q, want nobody", unknownErr.Name)
	}
}

func TestExpandGroupUnknown(t *testing.T) {
	cfg := testConfig()
	_, err := cfg.ExpandGroup("team_z")

	var unknownErr *UnknownGroupError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownGroupError, got %v", err)
	}
}

func TestGroupWithExclusion(t *testing.T) {
	cfg := testConfig()
	cfg.Groups["most"] = []string{"*", "!susan"}

	got, err := cfg.ExpandGroup("most")
	if err != nil {
		t.Fatalf("ExpandGroup error: %v", err)
	}
	want := []string{"john", "mary"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandGroup(most) = %v, want %v", got, want)
	}
}

func TestConfigValidateGroupMembers(t *testing.T) {
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg.Groups["bad"] = []string{"ghost"}
	err := cfg.Validate()
	var unknownErr *UnknownResourceError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownResourceError, got %v", err)
	}
}

func TestDNSPeriodsMergeGlobal(t *testing.T) {
	cfg := &Config{
		Resources: []Definition{
			{Name: "john", DNSPeriods: []Period{{d(2025, 7, 1), d(2025, 7, 14)}}},
		},
	}
	global := []Period{{d(2025, 12, 24), d(2025, 12, 31)}}

	periods := cfg.DNSPeriods("john", global)
	if len(periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(periods))
	}
	if !periods[0].Start.Equal(d(2025, 12, 24)) {
		t.Errorf("global period should come first: %v", periods)
	}
}
