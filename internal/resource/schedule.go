// Package resource tracks scheduling capacity: per-resource busy intervals,
// DNS periods, groups, and resource-spec expansion.
package resource

import (
	"math"
	"sort"
	"time"

	"github.com/plancraft/plancraft/internal/models"
)

// Period is a closed date interval. Both endpoints are inclusive days.
type Period struct {
	Start time.Time `yaml:"start" json:"start"`
	End   time.Time `yaml:"end" json:"end"`
}

type completionKey struct {
	start    int64
	centdays int64
}

// Schedule tracks busy periods for one resource using sorted,
// non-overlapping intervals. The sorted invariant enables binary-search
// lookups; insertions merge overlapping or adjacent periods.
type Schedule struct {
	// Name of the resource, for logging.
	Name string

	busy []Period

	// completion results keyed by (start, duration in centdays); cleared
	// whenever busy periods change.
	completionCache map[completionKey]time.Time
}

// NewSchedule creates a schedule with the resource's unavailable (DNS)
// periods pre-merged in.
func NewSchedule(name string, unavailable []Period) *Schedule {
	return &Schedule{
		Name:            name,
		busy:            mergePeriods(unavailable),
		completionCache: make(map[completionKey]time.Time),
	}
}

// Clone returns an independent copy for rollout simulations.
func (s *Schedule) Clone() *Schedule {
	busy := make([]Period, len(s.busy))
	copy(busy, s.busy)
	return &Schedule{
		Name:            s.Name,
		busy:            busy,
		completionCache: make(map[completionKey]time.Time),
	}
}

// BusyPeriods returns the current sorted interval list.
func (s *Schedule) BusyPeriods() []Period { return s.busy }

// mergePeriods sorts and merges overlapping or adjacent periods.
func mergePeriods(periods []Period) []Period {
	if len(periods) == 0 {
		return nil
	}
	sorted := make([]Period, len(periods))
	copy(sorted, periods)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := sorted[:1]
	for _, p := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !p.Start.After(models.AddDays(last.End, 1)) {
			last.End = models.MaxDate(last.End, p.End)
		} else {
			merged = append(merged, p)
		}
	}
	return merged
}

// AddBusyPeriod inserts [start, end], merging with neighbors.
func (s *Schedule) AddBusyPeriod(start, end time.Time) {
	for k := range s.completionCache {
		delete(s.completionCache, k)
	}

	if len(s.busy) == 0 {
		s.busy = append(s.busy, Period{start, end})
		return
	}

	// Fast path: strictly after the last interval, the common case when
	// walking chronologically forward.
	if last := s.busy[len(s.busy)-1]; start.After(models.AddDays(last.End, 1)) {
		s.busy = append(s.busy, Period{start, end})
		return
	}

	idx := sort.Search(len(s.busy), func(i int) bool { return !s.busy[i].Start.Before(start) })

	newStart, newEnd := start, end
	mergeStart, mergeEnd := idx, idx

	if idx > 0 {
		prev := s.busy[idx-1]
		if !prev.End.Before(models.AddDays(start, -1)) {
			newStart = prev.Start
			newEnd = models.MaxDate(newEnd, prev.End)
			mergeStart = idx - 1
		}
	}

	for mergeEnd < len(s.busy) {
		next := s.busy[mergeEnd]
		if !next.Start.After(models.AddDays(newEnd, 1)) {
			newEnd = models.MaxDate(newEnd, next.End)
			mergeEnd++
		} else {
			break
		}
	}

	if mergeStart < mergeEnd {
		s.busy = append(s.busy[:mergeStart], s.busy[mergeEnd:]...)
	}
	s.busy = append(s.busy, Period{})
	copy(s.busy[mergeStart+1:], s.busy[mergeStart:])
	s.busy[mergeStart] = Period{newStart, newEnd}
}

// findNextBusyPeriod returns the leftmost period with End >= current.
func (s *Schedule) findNextBusyPeriod(current time.Time) (Period, bool) {
	idx := sort.Search(len(s.busy), func(i int) bool { return !s.busy[i].End.Before(current) })
	if idx < len(s.busy) {
		return s.busy[idx], true
	}
	return Period{}, false
}

// NextAvailableTime returns the first date at or after from that is not
// inside a busy period.
func (s *Schedule) NextAvailableTime(from time.Time) time.Time {
	candidate := from
	for {
		p, ok := s.findNextBusyPeriod(candidate)
		if !ok || candidate.Before(p.Start) {
			return candidate
		}
		candidate = models.AddDays(p.End, 1)
	}
}

// IsAvailable reports whether the resource is free for durationDays
// starting at start.
func (s *Schedule) IsAvailable(start time.Time, durationDays float64) bool {
	end := models.AddDays(start, models.CeilDays(durationDays))
	for _, p := range s.busy {
		if p.Start.After(end) {
			break
		}
		if !p.Start.After(end) && !p.End.Before(start) {
			return false
		}
	}
	return true
}

// CalculateCompletionTime walks forward from start, accruing work days and
// skipping busy periods, until durationDays of work fits. A task may be
// interrupted by a busy period and resume after it.
func (s *Schedule) CalculateCompletionTime(start time.Time, durationDays float64) time.Time {
	if durationDays == 0 {
		return start
	}

	key := completionKey{start: start.Unix(), centdays: int64(math.Round(durationDays * 100))}
	if cached, ok := s.completionCache[key]; ok {
		return cached
	}

	workRemaining := durationDays
	current := start
	for workRemaining > 0 {
		p, ok := s.findNextBusyPeriod(current)
		if !ok {
			result := models.AddDays(current, models.CeilDays(workRemaining))
			s.completionCache[key] = result
			return result
		}

		if !p.Start.After(current) {
			current = models.AddDays(p.End, 1)
			continue
		}

		available := float64(models.DaysBetween(current, p.Start))
		if available >= workRemaining {
			result := models.AddDays(current, models.CeilDays(workRemaining))
			s.completionCache[key] = result
			return result
		}

		workRemaining -= available
		current = models.AddDays(p.End, 1)
	}

	s.completionCache[key] = current
	return current
}
