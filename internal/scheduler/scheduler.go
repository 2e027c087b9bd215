// Package scheduler implements the chronological forward pass (Parallel
// SGS) with optional bounded rollout lookahead.
package scheduler

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/plancraft/plancraft/internal/config"
	"github.com/plancraft/plancraft/internal/models"
	"github.com/plancraft/plancraft/internal/preprocess"
	"github.com/plancraft/plancraft/internal/resource"
	"github.com/plancraft/plancraft/internal/sorting"
)

const iterationFactor = 100

// Scheduler runs the Parallel SGS forward pass over a task bundle. With a
// rollout config it becomes the bounded-rollout variant: the per-tick
// commit decision is gated by a two-scenario simulation.
type Scheduler struct {
	tasks       map[string]*models.Task
	currentDate time.Time
	completed   map[string]bool
	cfg         *config.SchedulingConfig
	rollout     *config.RolloutConfig
	resources   *resource.Config
	globalDNS   []resource.Period

	deadlines  map[string]time.Time
	priorities map[string]int

	// candidates caches per-task spec expansion, parsed once.
	candidates map[string][]string
	// unassignedIDs are tasks that fell back to the shared unassigned
	// resource.
	unassignedIDs []string

	decisions []RolloutDecision
}

// New creates a scheduler. When pre is nil the backward pass runs
// internally. A non-nil rollout config selects the bounded-rollout variant.
func New(
	tasks []*models.Task,
	currentDate time.Time,
	completed map[string]bool,
	cfg *config.SchedulingConfig,
	rollout *config.RolloutConfig,
	resources *resource.Config,
	globalDNS []resource.Period,
	pre *models.PreProcessResult,
) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if completed == nil {
		completed = make(map[string]bool)
	}

	taskMap := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		taskMap[t.ID] = t
	}

	if pre == nil {
		var err error
		pre, err = preprocess.BackwardPass(tasks, completed, preprocess.Config{
			DefaultPriority: cfg.DefaultPriority,
		})
		if err != nil {
			return nil, err
		}
	}

	s := &Scheduler{
		tasks:       taskMap,
		currentDate: currentDate,
		completed:   completed,
		cfg:         cfg,
		rollout:     rollout,
		resources:   resources,
		globalDNS:   globalDNS,
		deadlines:   pre.ComputedDeadlines,
		priorities:  pre.ComputedPriorities,
		candidates:  make(map[string][]string),
	}

	if err := s.expandSpecs(); err != nil {
		return nil, err
	}
	return s, nil
}

// expandSpecs resolves each task's resource spec into an ordered candidate
// list. An empty expansion falls back to the shared unassigned resource.
func (s *Scheduler) expandSpecs() error {
	if s.resources == nil {
		return nil
	}
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		task := s.tasks[id]
		if task.ResourceSpec == "" {
			continue
		}
		expanded, err := resource.ExpandSpec(task.ResourceSpec, s.resources)
		if err != nil {
			return err
		}
		if len(expanded) == 0 {
			expanded = []string{resource.Unassigned}
			s.unassignedIDs = append(s.unassignedIDs, id)
		}
		s.candidates[id] = expanded
	}
	return nil
}

// Schedule runs the algorithm to completion.
func (s *Scheduler) Schedule() (*models.AlgorithmResult, error) {
	fixed := s.processFixedTasks()

	scheduled, err := s.scheduleForward(fixed)
	if err != nil {
		return nil, err
	}

	all := append(fixed, scheduled...)

	metadata := map[string]string{
		"algorithm": string(s.algorithmName()),
		"strategy":  string(s.cfg.Strategy),
	}
	if s.rollout != nil {
		metadata["rollout_decisions"] = strconv.Itoa(len(s.decisions))
	}

	return &models.AlgorithmResult{ScheduledTasks: all, Metadata: metadata}, nil
}

func (s *Scheduler) algorithmName() config.Algorithm {
	if s.rollout != nil {
		return config.AlgorithmBoundedRollout
	}
	return config.AlgorithmParallelSGS
}

// ComputedDeadlines returns the deadline map used for urgency.
func (s *Scheduler) ComputedDeadlines() map[string]time.Time { return s.deadlines }

// ComputedPriorities returns the effective priority map.
func (s *Scheduler) ComputedPriorities() map[string]int { return s.priorities }

// Decisions returns the rollout decisions made during scheduling.
func (s *Scheduler) Decisions() []RolloutDecision { return s.decisions }

// UnassignedTaskIDs returns ids that ran on the unassigned resource.
func (s *Scheduler) UnassignedTaskIDs() []string { return s.unassignedIDs }

// processFixedTasks resolves tasks with pinned dates and removes them from
// the scheduling problem. A pinned window overlapping DNS stands: the fixed
// date wins.
func (s *Scheduler) processFixedTasks() []models.ScheduledTask {
	ids := make([]string, 0, len(s.tasks))
	for id, task := range s.tasks {
		if task.IsFixed() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var fixed []models.ScheduledTask
	for _, id := range ids {
		task := s.tasks[id]

		var start, end time.Time
		switch {
		case !task.StartOn.IsZero() && !task.EndOn.IsZero():
			start, end = task.StartOn, task.EndOn
		case !task.StartOn.IsZero():
			start = task.StartOn
			end = s.dnsAwareEndDate(task, start)
		default:
			end = task.EndOn
			start = models.AddDays(end, -models.CeilDays(task.DurationDays))
		}

		var resources []string
		if !task.IsMilestone() {
			for _, a := range task.Resources {
				resources = append(resources, a.Resource)
			}
		}

		fixed = append(fixed, models.ScheduledTask{
			TaskID:       id,
			StartDate:    start,
			EndDate:      end,
			DurationDays: task.DurationDays,
			Resources:    resources,
		})
		delete(s.tasks, id)
	}
	return fixed
}

// dnsAwareEndDate computes an end date for a pinned start, extending across
// any DNS periods of the task's resources.
func (s *Scheduler) dnsAwareEndDate(task *models.Task, start time.Time) time.Time {
	if s.resources == nil || len(task.Resources) == 0 {
		return models.AddDays(start, models.CeilDays(task.DurationDays))
	}
	maxEnd := start
	for _, a := range task.Resources {
		sched := resource.NewSchedule(a.Resource, s.resources.DNSPeriods(a.Resource, s.globalDNS))
		completion := sched.CalculateCompletionTime(start, task.DurationDays)
		maxEnd = models.MaxDate(maxEnd, completion)
	}
	return maxEnd
}

// buildState initializes forward-pass state: every known resource gets a
// schedule seeded with its merged DNS periods, and fixed tasks claim their
// intervals up front.
func (s *Scheduler) buildState(fixed []models.ScheduledTask) *state {
	st := newState(s.currentDate)

	for id := range s.tasks {
		st.unscheduled[id] = true
	}
	for _, f := range fixed {
		st.scheduled[f.TaskID] = span{start: f.StartDate, end: f.EndDate}
	}

	names := make(map[string]bool)
	for _, task := range s.tasks {
		for _, a := range task.Resources {
			names[a.Resource] = true
		}
	}
	for _, f := range fixed {
		for _, r := range f.Resources {
			names[r] = true
		}
	}
	if s.resources != nil {
		for _, r := range s.resources.ResourceOrder() {
			names[r] = true
		}
	}
	for _, cands := range s.candidates {
		for _, r := range cands {
			names[r] = true
		}
	}

	for name := range names {
		var dns []resource.Period
		if s.resources != nil {
			dns = s.resources.DNSPeriods(name, s.globalDNS)
		} else {
			dns = s.globalDNS
		}
		st.schedules[name] = resource.NewSchedule(name, dns)
	}

	for _, f := range fixed {
		for _, r := range f.Resources {
			if sched, ok := st.schedules[r]; ok {
				sched.AddBusyPeriod(f.StartDate, f.EndDate)
			}
		}
	}

	return st
}

// scheduleForward is the main chronological loop.
func (s *Scheduler) scheduleForward(fixed []models.ScheduledTask) ([]models.ScheduledTask, error) {
	st := s.buildState(fixed)
	maxIterations := len(s.tasks)*iterationFactor + 1

	for iter := 0; iter < maxIterations; iter++ {
		if len(st.unscheduled) == 0 {
			break
		}

		s.cfg.Logf(config.VerbosityChanges, "time: %s", st.now.Format("2006-01-02"))

		eligible := s.findEligibleTasks(st)
		sorted, err := s.sortEligible(eligible, st)
		if err != nil {
			return nil, err
		}
		s.cfg.Logf(config.VerbosityDebug, "  eligible: %d", len(sorted))

		scheduledAny := false
		for _, id := range sorted {
			task := s.tasks[id]
			if task == nil {
				continue
			}

			if task.IsMilestone() {
				st.commit(models.ScheduledTask{
					TaskID:    id,
					StartDate: st.now,
					EndDate:   st.now,
				})
				scheduledAny = true
				s.cfg.Logf(config.VerbosityChanges, "  scheduled milestone %s at %s", id, st.now.Format("2006-01-02"))
				continue
			}

			var committed *models.ScheduledTask
			if task.ResourceSpec != "" && s.resources != nil {
				committed = s.tryAutoAssignment(id, task, st, true)
			} else {
				committed = s.tryExplicitResources(id, task, st, true)
			}

			if committed != nil {
				st.commit(*committed)
				scheduledAny = true
				s.cfg.Logf(config.VerbosityChanges, "  scheduled %s on %v from %s to %s",
					id, committed.Resources, committed.StartDate.Format("2006-01-02"), committed.EndDate.Format("2006-01-02"))
			} else {
				s.cfg.Logf(config.VerbosityChecks, "    skipping %s: resources not available now", id)
			}
		}

		if !scheduledAny {
			next, ok := s.findNextEventTime(st)
			if !ok {
				break
			}
			s.cfg.Logf(config.VerbosityDebug, "  nothing scheduled at %s, advancing to %s",
				st.now.Format("2006-01-02"), next.Format("2006-01-02"))
			st.now = next
		}
	}

	if len(st.unscheduled) > 0 {
		ids := make([]string, 0, len(st.unscheduled))
		for id := range st.unscheduled {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return nil, &UnscheduledError{TaskIDs: ids}
	}

	return st.result, nil
}

// findEligibleTasks collects unscheduled tasks whose dependencies (with
// lag) are satisfied and whose start constraints allow starting by now.
// The dependency end day is inclusive: a successor starts no earlier than
// depEnd + lag + 1.
func (s *Scheduler) findEligibleTasks(st *state) []string {
	var eligible []string

	for id := range st.unscheduled {
		task := s.tasks[id]
		if task == nil {
			continue
		}
		if earliest, ok := s.earliestStart(task, st); ok && !earliest.After(st.now) {
			eligible = append(eligible, id)
		}
	}

	sort.Strings(eligible)
	return eligible
}

// earliestStart returns the earliest possible start for a task given the
// committed state, or false if a dependency is not yet scheduled.
func (s *Scheduler) earliestStart(task *models.Task, st *state) (time.Time, bool) {
	earliest := st.now
	for _, dep := range task.Dependencies {
		if s.completed[dep.TaskID] {
			continue
		}
		sp, ok := st.scheduled[dep.TaskID]
		if !ok {
			return time.Time{}, false
		}
		depEligible := models.AddDays(sp.end, 1+models.CeilDays(dep.LagDays))
		earliest = models.MaxDate(earliest, depEligible)
	}
	if !task.StartAfter.IsZero() {
		earliest = models.MaxDate(earliest, task.StartAfter)
	}
	return earliest, true
}

// sortEligible orders eligible tasks by the configured strategy.
func (s *Scheduler) sortEligible(eligible []string, st *state) ([]string, error) {
	if len(eligible) == 0 {
		return nil, nil
	}

	defaultCR := s.computeDefaultCR(st)
	atcParams := s.computeATCParams(st)

	infos := make(map[string]sorting.Info, len(eligible))
	for _, id := range eligible {
		task := s.tasks[id]
		infos[id] = sorting.Info{
			DurationDays: task.DurationDays,
			Deadline:     s.deadlines[id],
			Priority:     s.priority(id),
		}
	}

	return sorting.SortTasks(eligible, infos, st.now, defaultCR, s.cfg, atcParams)
}

func (s *Scheduler) priority(id string) int {
	if p, ok := s.priorities[id]; ok {
		return p
	}
	return s.cfg.DefaultPriority
}

// computeDefaultCR derives the CR assigned to no-deadline tasks from the
// largest CR among the deadline tasks of the current unscheduled set,
// times the multiplier and floored.
func (s *Scheduler) computeDefaultCR(st *state) float64 {
	maxCR := 0.0
	for id := range st.unscheduled {
		deadline, ok := s.deadlines[id]
		if !ok || deadline.IsZero() {
			continue
		}
		task := s.tasks[id]
		if task == nil {
			continue
		}
		cr := sorting.CriticalRatio(deadline, task.DurationDays, st.now, 0)
		if cr > maxCR {
			maxCR = cr
		}
	}
	cr := maxCR * s.cfg.DefaultCRMultiplier
	if cr < s.cfg.DefaultCRFloor {
		cr = s.cfg.DefaultCRFloor
	}
	return cr
}

// computeATCParams aggregates the unscheduled set for the atc strategy.
func (s *Scheduler) computeATCParams(st *state) *sorting.ATCParams {
	if s.cfg.Strategy != config.StrategyATC {
		return nil
	}

	avg := 1.0
	if len(st.unscheduled) > 0 {
		total := 0.0
		for id := range st.unscheduled {
			if task := s.tasks[id]; task != nil {
				total += task.DurationDays
			}
		}
		avg = total / float64(len(st.unscheduled))
	}

	minUrgency := 1.0
	found := false
	for id := range st.unscheduled {
		deadline, ok := s.deadlines[id]
		if !ok || deadline.IsZero() {
			continue
		}
		task := s.tasks[id]
		if task == nil {
			continue
		}
		found = true
		slack := float64(models.DaysBetween(st.now, deadline)) - task.DurationDays
		urgency := 1.0
		if slack > 0 {
			urgency = math.Exp(-slack / (s.cfg.ATCK * avg))
		}
		if urgency < minUrgency {
			minUrgency = urgency
		}
	}

	defaultUrgency := s.cfg.ATCDefaultUrgencyFloor
	if found {
		defaultUrgency = minUrgency * s.cfg.ATCDefaultUrgencyMultiplier
		if defaultUrgency < s.cfg.ATCDefaultUrgencyFloor {
			defaultUrgency = s.cfg.ATCDefaultUrgencyFloor
		}
	}

	return &sorting.ATCParams{AvgDuration: avg, DefaultUrgency: defaultUrgency}
}

// tryAutoAssignment picks the candidate with the earliest completion. A
// strict comparison means the first candidate in expansion order wins
// ties. Greedy with foresight: only commit when the winner can start now.
func (s *Scheduler) tryAutoAssignment(id string, task *models.Task, st *state, allowRollout bool) *models.ScheduledTask {
	candidates := s.candidates[id]

	var bestResource string
	var bestStart, bestCompletion time.Time
	haveBest := false

	for _, name := range candidates {
		sched, ok := st.schedules[name]
		if !ok {
			continue
		}
		availableAt := sched.NextAvailableTime(st.now)
		completion := sched.CalculateCompletionTime(availableAt, task.DurationDays)
		if !haveBest || completion.Before(bestCompletion) {
			bestResource = name
			bestStart = availableAt
			bestCompletion = completion
			haveBest = true
		}
	}

	if !haveBest || !bestStart.Equal(st.now) {
		return nil
	}

	if allowRollout && s.rollout != nil && s.shouldSkipForRollout(id, task, bestCompletion, st) {
		return nil
	}

	st.schedules[bestResource].AddBusyPeriod(st.now, bestCompletion)
	return &models.ScheduledTask{
		TaskID:       id,
		StartDate:    st.now,
		EndDate:      bestCompletion,
		DurationDays: task.DurationDays,
		Resources:    []string{bestResource},
	}
}

// tryExplicitResources schedules a task that names its resources. Every
// resource must be free to start now; the end date is the latest DNS-aware
// completion across them.
func (s *Scheduler) tryExplicitResources(id string, task *models.Task, st *state, allowRollout bool) *models.ScheduledTask {
	if len(task.Resources) == 0 {
		return nil
	}

	for _, a := range task.Resources {
		sched, ok := st.schedules[a.Resource]
		if !ok {
			return nil
		}
		if !sched.NextAvailableTime(st.now).Equal(st.now) {
			return nil
		}
	}

	maxCompletion := st.now
	for _, a := range task.Resources {
		completion := st.schedules[a.Resource].CalculateCompletionTime(st.now, task.DurationDays)
		maxCompletion = models.MaxDate(maxCompletion, completion)
	}

	if allowRollout && s.rollout != nil && s.shouldSkipForRollout(id, task, maxCompletion, st) {
		return nil
	}

	resources := make([]string, len(task.Resources))
	for i, a := range task.Resources {
		resources[i] = a.Resource
		st.schedules[a.Resource].AddBusyPeriod(st.now, maxCompletion)
	}

	return &models.ScheduledTask{
		TaskID:       id,
		StartDate:    st.now,
		EndDate:      maxCompletion,
		DurationDays: task.DurationDays,
		Resources:    resources,
	}
}

// findNextEventTime returns the earliest future event: a dependency
// becoming satisfied, a start_after opening, or a busy period ending.
func (s *Scheduler) findNextEventTime(st *state) (time.Time, bool) {
	var next time.Time
	have := false
	consider := func(t time.Time) {
		if !have || t.Before(next) {
			next = t
			have = true
		}
	}

	for id := range st.unscheduled {
		task := s.tasks[id]
		if task == nil {
			continue
		}
		for _, dep := range task.Dependencies {
			if sp, ok := st.scheduled[dep.TaskID]; ok {
				eligible := models.AddDays(sp.end, 1+models.CeilDays(dep.LagDays))
				if eligible.After(st.now) {
					consider(eligible)
				}
			}
		}
		if !task.StartAfter.IsZero() && task.StartAfter.After(st.now) {
			consider(task.StartAfter)
		}
	}

	for _, sched := range st.schedules {
		for _, p := range sched.BusyPeriods() {
			if !p.End.Before(st.now) {
				consider(models.AddDays(p.End, 1))
			}
		}
	}

	return next, have
}
