// Package loader parses YAML bundle files into a service bundle.
package loader

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/plancraft/plancraft/internal/config"
	"github.com/plancraft/plancraft/internal/models"
	"github.com/plancraft/plancraft/internal/resource"
	"github.com/plancraft/plancraft/internal/service"
	"github.com/plancraft/plancraft/internal/timeframe"
)

const dateLayout = "2006-01-02"

var effortRe = regexp.MustCompile(`^([\d.]+)([dwm])$`)

type rawPeriod struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type rawResource struct {
	Name       string      `yaml:"name"`
	DNSPeriods []rawPeriod `yaml:"dns_periods"`
}

type rawDependency struct {
	Task    string  `yaml:"task"`
	LagDays float64 `yaml:"lag_days"`
}

type rawTask struct {
	ID           string          `yaml:"id"`
	Effort       string          `yaml:"effort"`
	Resources    []string        `yaml:"resources"`
	Dependencies []rawDependency `yaml:"dependencies"`
	StartAfter   string          `yaml:"start_after"`
	EndBefore    string          `yaml:"end_before"`
	StartOn      string          `yaml:"start_on"`
	EndOn        string          `yaml:"end_on"`
	Timeframe    string          `yaml:"timeframe"`
	Priority     *int            `yaml:"priority"`
	Status       string          `yaml:"status"`
}

type rawBundle struct {
	CurrentDate     string                   `yaml:"current_date"`
	Resources       []rawResource            `yaml:"resources"`
	Groups          map[string][]string      `yaml:"groups"`
	DefaultResource string                   `yaml:"default_resource"`
	GlobalDNS       []rawPeriod              `yaml:"global_dns_periods"`
	Config          *config.SchedulingConfig `yaml:"config"`
	Tasks           []rawTask                `yaml:"tasks"`
}

// Load reads a YAML bundle file.
func Load(path string) (*service.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse converts YAML bundle bytes into a service bundle.
func Parse(data []byte) (*service.Bundle, error) {
	var raw rawBundle
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse bundle: %w", err)
	}

	currentDate := models.Date(time.Now().UTC().Year(), time.Now().UTC().Month(), time.Now().UTC().Day())
	if raw.CurrentDate != "" {
		var err error
		currentDate, err = parseDate(raw.CurrentDate)
		if err != nil {
			return nil, fmt.Errorf("current_date: %w", err)
		}
	}

	var resourceConfig *resource.Config
	if len(raw.Resources) > 0 || len(raw.Groups) > 0 {
		resourceConfig = &resource.Config{
			Groups:          raw.Groups,
			DefaultResource: raw.DefaultResource,
		}
		for _, r := range raw.Resources {
			periods, err := parsePeriods(r.DNSPeriods)
			if err != nil {
				return nil, fmt.Errorf("resource %q: %w", r.Name, err)
			}
			resourceConfig.Resources = append(resourceConfig.Resources, resource.Definition{
				Name:       r.Name,
				DNSPeriods: periods,
			})
		}
	}

	globalDNS, err := parsePeriods(raw.GlobalDNS)
	if err != nil {
		return nil, fmt.Errorf("global_dns_periods: %w", err)
	}

	completed := make(map[string]bool)
	var tasks []*models.Task
	for _, rt := range raw.Tasks {
		task, done, err := convertTask(rt, resourceConfig)
		if err != nil {
			return nil, err
		}
		if done {
			completed[rt.ID] = true
			continue
		}
		tasks = append(tasks, task)
	}

	cfg := raw.Config
	if cfg == nil {
		cfg = config.DefaultSchedulingConfig()
	} else {
		applyConfigDefaults(cfg)
	}

	return &service.Bundle{
		Tasks:            tasks,
		Resources:        resourceConfig,
		GlobalDNSPeriods: globalDNS,
		CurrentDate:      currentDate,
		CompletedTaskIDs: completed,
		Config:           cfg,
	}, nil
}

// applyConfigDefaults fills zero-valued knobs so a sparse YAML config
// behaves like the defaults.
func applyConfigDefaults(cfg *config.SchedulingConfig) {
	defaults := config.DefaultSchedulingConfig()
	if cfg.Algorithm == "" {
		cfg.Algorithm = defaults.Algorithm
	}
	if cfg.Strategy == "" {
		cfg.Strategy = defaults.Strategy
	}
	if cfg.CRWeight == 0 {
		cfg.CRWeight = defaults.CRWeight
	}
	if cfg.PriorityWeight == 0 {
		cfg.PriorityWeight = defaults.PriorityWeight
	}
	if cfg.DefaultPriority == 0 {
		cfg.DefaultPriority = defaults.DefaultPriority
	}
	if cfg.DefaultCRMultiplier == 0 {
		cfg.DefaultCRMultiplier = defaults.DefaultCRMultiplier
	}
	if cfg.DefaultCRFloor == 0 {
		cfg.DefaultCRFloor = defaults.DefaultCRFloor
	}
	if cfg.ATCK == 0 {
		cfg.ATCK = defaults.ATCK
	}
	if cfg.ATCDefaultUrgencyMultiplier == 0 {
		cfg.ATCDefaultUrgencyMultiplier = defaults.ATCDefaultUrgencyMultiplier
	}
	if cfg.ATCDefaultUrgencyFloor == 0 {
		cfg.ATCDefaultUrgencyFloor = defaults.ATCDefaultUrgencyFloor
	}
	if cfg.Rollout == (config.RolloutConfig{}) {
		cfg.Rollout = defaults.Rollout
	}
	if cfg.CriticalPath == (config.CriticalPathConfig{}) {
		cfg.CriticalPath = defaults.CriticalPath
	}
}

func convertTask(rt rawTask, rc *resource.Config) (*models.Task, bool, error) {
	startOn, err := parseOptionalDate(rt.StartOn)
	if err != nil {
		return nil, false, fmt.Errorf("task %q: start_on: %w", rt.ID, err)
	}
	endOn, err := parseOptionalDate(rt.EndOn)
	if err != nil {
		return nil, false, fmt.Errorf("task %q: end_on: %w", rt.ID, err)
	}

	// Done without dates: exclude from scheduling, keep as completed.
	if rt.Status == "done" && startOn.IsZero() && endOn.IsZero() {
		return nil, true, nil
	}

	startAfter, err := parseOptionalDate(rt.StartAfter)
	if err != nil {
		return nil, false, fmt.Errorf("task %q: start_after: %w", rt.ID, err)
	}
	endBefore, err := parseOptionalDate(rt.EndBefore)
	if err != nil {
		return nil, false, fmt.Errorf("task %q: end_before: %w", rt.ID, err)
	}

	if rt.Timeframe != "" && startAfter.IsZero() && endBefore.IsZero() {
		start, end, err := timeframe.Parse(rt.Timeframe)
		if err != nil {
			return nil, false, fmt.Errorf("task %q: %w", rt.ID, err)
		}
		startAfter, endBefore = start, end
	}

	resources, spec := parseResources(rt.Resources, rc)

	var duration float64
	if !startOn.IsZero() && !endOn.IsZero() {
		duration = float64(models.DaysBetween(startOn, endOn))
	} else {
		effort := parseEffort(rt.Effort)
		total := 1.0
		if spec == "" {
			total = 0.0
			for _, a := range resources {
				total += a.Allocation
			}
			if total == 0 {
				total = 1.0
			}
		}
		duration = effort / total
	}

	deps := make([]models.Dependency, 0, len(rt.Dependencies))
	for _, d := range rt.Dependencies {
		deps = append(deps, models.Dependency{TaskID: d.Task, LagDays: d.LagDays})
	}

	return &models.Task{
		ID:           rt.ID,
		DurationDays: duration,
		Resources:    resources,
		Dependencies: deps,
		StartAfter:   startAfter,
		EndBefore:    endBefore,
		StartOn:      startOn,
		EndOn:        endOn,
		ResourceSpec: spec,
		Priority:     rt.Priority,
	}, false, nil
}

// parseResources splits raw resource strings into concrete allocations or
// an auto-assignment spec. A single entry that is a wildcard, alternative
// list, exclusion, or group name is a spec.
func parseResources(raw []string, rc *resource.Config) ([]models.Allocation, string) {
	if len(raw) == 0 {
		return nil, ""
	}

	if rc != nil && len(raw) == 1 {
		s := strings.TrimSpace(raw[0])
		_, isGroup := rc.Groups[s]
		if s == "*" || strings.Contains(s, "|") || strings.HasPrefix(s, "!") || isGroup {
			return nil, s
		}
	}

	var result []models.Allocation
	for _, r := range raw {
		name, allocStr, found := strings.Cut(r, ":")
		alloc := 1.0
		if found {
			if v, err := strconv.ParseFloat(strings.TrimSpace(allocStr), 64); err == nil {
				alloc = v
			}
		}
		result = append(result, models.Allocation{Resource: strings.TrimSpace(name), Allocation: alloc})
	}
	return result, ""
}

// parseEffort converts effort strings to working days: "5d", "2w",
// "1.5m", or "L" (large, 60 days). Unparseable efforts default to a week.
func parseEffort(s string) float64 {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "l" {
		return 60.0
	}

	m := effortRe.FindStringSubmatch(s)
	if m == nil {
		return 7.0
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 7.0
	}
	switch m[2] {
	case "d":
		return value
	case "w":
		return value * 7
	case "m":
		return value * 30
	}
	return 7.0
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
}

func parseOptionalDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return parseDate(s)
}

func parsePeriods(raw []rawPeriod) ([]resource.Period, error) {
	periods := make([]resource.Period, 0, len(raw))
	for _, p := range raw {
		start, err := parseDate(p.Start)
		if err != nil {
			return nil, fmt.Errorf("bad period start %q: %w", p.Start, err)
		}
		end, err := parseDate(p.End)
		if err != nil {
			return nil, fmt.Errorf("bad period end %q: %w", p.End, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("period end %q before start %q", p.End, p.Start)
		}
		periods = append(periods, resource.Period{Start: start, End: end})
	}
	return periods, nil
}
