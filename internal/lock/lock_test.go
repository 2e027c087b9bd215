package lock

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/plancraft/plancraft/internal/models"
)

func d(year int, month time.Month, day int) time.Time {
	return models.Date(year, month, day)
}

func sampleResult() *models.Result {
	return &models.Result{
		ScheduledTasks: []models.ScheduledTask{
			{TaskID: "api", StartDate: d(2025, 1, 1), EndDate: d(2025, 1, 6),
				DurationDays: 5, Resources: []string{"alice"}},
		},
		Annotations: map[string]models.Annotation{
			"api": {
				EstimatedStart:      d(2025, 1, 1),
				EstimatedEnd:        d(2025, 1, 6),
				ResourceAssignments: []string{"alice"},
			},
			"dateless": {},
		},
	}
}

func TestWriteReadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.lock")

	if err := Write(path, sampleResult(), nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	loaded, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if loaded.Version != Version {
		t.Errorf("version = %d", loaded.Version)
	}
	entry, ok := loaded.Locks["api"]
	if !ok {
		t.Fatalf("missing api lock; got %v", loaded.Locks)
	}
	if !entry.StartDate.Equal(d(2025, 1, 1)) || !entry.EndDate.Equal(d(2025, 1, 6)) {
		t.Errorf("entry dates = %v..%v", entry.StartDate, entry.EndDate)
	}
	if len(entry.Resources) != 1 || entry.Resources[0].Resource != "alice" || entry.Resources[0].Allocation != 1.0 {
		t.Errorf("entry resources = %v", entry.Resources)
	}

	if _, ok := loaded.Locks["dateless"]; ok {
		t.Error("annotation without dates should not be locked")
	}
}

func TestWriteFiltersTaskIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.lock")

	if err := Write(path, sampleResult(), map[string]bool{"other": true}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	loaded, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(loaded.Locks) != 0 {
		t.Errorf("filtered lock file should be empty, got %v", loaded.Locks)
	}
}

func TestReadRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.lock")
	if err := os.WriteFile(path, []byte("version: 99\nlocks: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Read(path); err == nil {
		t.Fatal("expected version error")
	}
}
