// Package lock reads and writes schedule lock files. Lock files preserve
// dates and resource assignments between runs so earlier phases constrain
// later ones.
package lock

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/plancraft/plancraft/internal/models"
)

// Version of the lock file format this package writes.
const Version = 1

const dateLayout = "2006-01-02"

// TaskLock pins one task's dates and resources.
type TaskLock struct {
	StartDate time.Time
	EndDate   time.Time
	Resources []models.Allocation
}

// ScheduleLock is a parsed lock file.
type ScheduleLock struct {
	Version int
	Locks   map[string]TaskLock
}

type fileEntry struct {
	StartDate string   `yaml:"start_date"`
	EndDate   string   `yaml:"end_date"`
	Resources []string `yaml:"resources"`
}

type fileFormat struct {
	Version int                  `yaml:"version"`
	Locks   map[string]fileEntry `yaml:"locks"`
}

// Write exports a scheduling result to a lock file. When taskIDs is
// non-nil only those tasks are included.
func Write(path string, result *models.Result, taskIDs map[string]bool) error {
	entries := make(map[string]fileEntry)

	ids := make([]string, 0, len(result.Annotations))
	for id := range result.Annotations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if taskIDs != nil && !taskIDs[id] {
			continue
		}
		annot := result.Annotations[id]
		if annot.EstimatedStart.IsZero() || annot.EstimatedEnd.IsZero() {
			continue
		}
		resources := make([]string, 0, len(annot.ResourceAssignments))
		for _, r := range annot.ResourceAssignments {
			resources = append(resources, r+":1.0")
		}
		entries[id] = fileEntry{
			StartDate: annot.EstimatedStart.Format(dateLayout),
			EndDate:   annot.EstimatedEnd.Format(dateLayout),
			Resources: resources,
		}
	}

	data, err := yaml.Marshal(fileFormat{Version: Version, Locks: entries})
	if err != nil {
		return fmt.Errorf("marshal lock file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Read loads a lock file.
func Read(path string) (*ScheduleLock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw fileFormat
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse lock file: %w", err)
	}
	if raw.Version != Version {
		return nil, fmt.Errorf("unsupported lock file version %d", raw.Version)
	}

	locks := make(map[string]TaskLock, len(raw.Locks))
	for id, entry := range raw.Locks {
		start, err := time.ParseInLocation(dateLayout, entry.StartDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("lock entry %q: bad start_date: %w", id, err)
		}
		end, err := time.ParseInLocation(dateLayout, entry.EndDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("lock entry %q: bad end_date: %w", id, err)
		}

		resources := make([]models.Allocation, 0, len(entry.Resources))
		for _, r := range entry.Resources {
			name, alloc, err := parseResource(r)
			if err != nil {
				return nil, fmt.Errorf("lock entry %q: %w", id, err)
			}
			resources = append(resources, models.Allocation{Resource: name, Allocation: alloc})
		}

		locks[id] = TaskLock{StartDate: start, EndDate: end, Resources: resources}
	}

	return &ScheduleLock{Version: raw.Version, Locks: locks}, nil
}

func parseResource(s string) (string, float64, error) {
	name, allocStr, found := strings.Cut(s, ":")
	if !found {
		return s, 1.0, nil
	}
	alloc, err := strconv.ParseFloat(allocStr, 64)
	if err != nil {
		return "", 0, fmt.Errorf("bad resource allocation %q", s)
	}
	return name, alloc, nil
}
