package criticalpath

import (
	"sort"
	"strconv"
	"time"

	"github.com/plancraft/plancraft/internal/config"
	"github.com/plancraft/plancraft/internal/models"
	"github.com/plancraft/plancraft/internal/resource"
	"github.com/plancraft/plancraft/internal/scheduler"
)

// scheduledSpan is a committed start/end pair.
type scheduledSpan struct {
	start time.Time
	end   time.Time
}

// reservation holds a resource for a competing target's critical task.
type reservation struct {
	taskID       string
	reservedFrom time.Time
}

// cpState is the mutable state of a critical-path run; rollout simulations
// operate on clones.
type cpState struct {
	scheduled    map[string]scheduledSpan
	unscheduled  map[string]bool
	schedules    map[string]*resource.Schedule
	reservations map[string]reservation
	now          time.Time
	result       []models.ScheduledTask
}

func (s *cpState) clone() *cpState {
	c := &cpState{
		scheduled:    make(map[string]scheduledSpan, len(s.scheduled)),
		unscheduled:  make(map[string]bool, len(s.unscheduled)),
		schedules:    make(map[string]*resource.Schedule, len(s.schedules)),
		reservations: make(map[string]reservation, len(s.reservations)),
		now:          s.now,
		result:       make([]models.ScheduledTask, len(s.result)),
	}
	for id, sp := range s.scheduled {
		c.scheduled[id] = sp
	}
	for id := range s.unscheduled {
		c.unscheduled[id] = true
	}
	for name, sched := range s.schedules {
		c.schedules[name] = sched.Clone()
	}
	for name, r := range s.reservations {
		c.reservations[name] = r
	}
	copy(c.result, s.result)
	return c
}

func (s *cpState) commit(task models.ScheduledTask) {
	s.scheduled[task.TaskID] = scheduledSpan{start: task.StartDate, end: task.EndDate}
	delete(s.unscheduled, task.TaskID)
	s.result = append(s.result, task)
	for name, r := range s.reservations {
		if r.taskID == task.TaskID {
			delete(s.reservations, name)
		}
	}
}

// Scheduler is the target-driven critical-path variant. It skips the
// backward pass: targets are scored from their explicit deadlines, which
// avoids priority contamination of unrelated upstream work.
type Scheduler struct {
	tasks       map[string]*models.Task
	currentDate time.Time
	completed   map[string]bool
	cfg         config.CriticalPathConfig
	scfg        *config.SchedulingConfig
	resources   *resource.Config
	globalDNS   []resource.Period

	deadlines  map[string]time.Time
	dependents map[string][]depEdge
	candidates map[string][]string

	unassignedIDs []string
	rolloutSkips  int
}

// New creates a critical-path scheduler.
func New(
	tasks []*models.Task,
	currentDate time.Time,
	completed map[string]bool,
	scfg *config.SchedulingConfig,
	resources *resource.Config,
	globalDNS []resource.Period,
) (*Scheduler, error) {
	if err := scfg.CriticalPath.Validate(); err != nil {
		return nil, err
	}
	if completed == nil {
		completed = make(map[string]bool)
	}

	taskMap := make(map[string]*models.Task, len(tasks))
	deadlines := make(map[string]time.Time)
	for _, t := range tasks {
		taskMap[t.ID] = t
		switch {
		case !t.EndOn.IsZero():
			deadlines[t.ID] = t.EndOn
		case !t.EndBefore.IsZero():
			deadlines[t.ID] = t.EndBefore
		}
	}

	s := &Scheduler{
		tasks:       taskMap,
		currentDate: currentDate,
		completed:   completed,
		cfg:         scfg.CriticalPath,
		scfg:        scfg,
		resources:   resources,
		globalDNS:   globalDNS,
		deadlines:   deadlines,
		candidates:  make(map[string][]string),
	}

	if err := s.expandSpecs(); err != nil {
		return nil, err
	}
	return s, nil
}

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

func (s *Scheduler) priority(id string) int {
	if task := s.tasks[id]; task != nil && task.Priority != nil {
		return *task.Priority
	}
	return s.scfg.DefaultPriority
}

// UnassignedTaskIDs returns ids that ran on the unassigned resource.
func (s *Scheduler) UnassignedTaskIDs() []string { return s.unassignedIDs }

// Schedule runs the algorithm to completion.
func (s *Scheduler) Schedule() (*models.AlgorithmResult, error) {
	fixed := s.processFixedTasks()
	s.dependents = buildDependents(s.tasks)

	st := s.buildState(fixed)
	final, err := s.scheduleFromState(st, time.Time{}, true, "")
	if err != nil {
		return nil, err
	}

	if len(final.unscheduled) > 0 {
		ids := make([]string, 0, len(final.unscheduled))
		for id := range final.unscheduled {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return nil, &scheduler.UnscheduledError{TaskIDs: ids}
	}

	all := append(fixed, final.result...)
	metadata := map[string]string{"algorithm": string(config.AlgorithmCriticalPath)}
	if s.cfg.RolloutEnabled {
		metadata["rollout_skips"] = strconv.Itoa(s.rolloutSkips)
	}
	return &models.AlgorithmResult{ScheduledTasks: all, Metadata: metadata}, nil
}

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

func (s *Scheduler) dnsAwareEndDate(task *models.Task, start time.Time) time.Time {
	if s.resources == nil || len(task.Resources) == 0 {
		return models.AddDays(start, models.CeilDays(task.DurationDays))
	}
	maxEnd := start
	for _, a := range task.Resources {
		sched := resource.NewSchedule(a.Resource, s.resources.DNSPeriods(a.Resource, s.globalDNS))
		maxEnd = models.MaxDate(maxEnd, sched.CalculateCompletionTime(start, task.DurationDays))
	}
	return maxEnd
}

func (s *Scheduler) buildState(fixed []models.ScheduledTask) *cpState {
	st := &cpState{
		scheduled:    make(map[string]scheduledSpan),
		unscheduled:  make(map[string]bool),
		schedules:    make(map[string]*resource.Schedule),
		reservations: make(map[string]reservation),
		now:          s.currentDate,
	}

	for id := range s.tasks {
		if !s.completed[id] {
			st.unscheduled[id] = true
		}
	}
	for _, f := range fixed {
		st.scheduled[f.TaskID] = scheduledSpan{start: f.StartDate, end: f.EndDate}
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

// scheduleFromState is the core loop, shared by the run itself and by
// rollout simulations. A zero horizon means run to completion. skipID is
// excluded at the initial tick only.
func (s *Scheduler) scheduleFromState(st *cpState, horizon time.Time, enableRollout bool, skipID string) (*cpState, error) {
	initialTime := st.now
	maxIterations := len(s.tasks)*100 + 1

	for iter := 0; iter < maxIterations; iter++ {
		if len(st.unscheduled) == 0 {
			break
		}
		if !horizon.IsZero() && st.now.After(horizon) {
			break
		}

		if enableRollout {
			s.scfg.Logf(config.VerbosityChanges, "time: %s", st.now.Format("2006-01-02"))
		}

		targets, err := s.rankTargets(st)
		if err != nil {
			return nil, err
		}

		scheduledAny := false
	targetLoop:
		for _, target := range targets {
			eligible := s.eligibleCriticalPathTasks(target, st)
			if len(eligible) == 0 {
				continue
			}

			bestID := pickBestWSPT(eligible, s.priority, s.tasks)
			if bestID == skipID && st.now.Equal(initialTime) {
				continue
			}
			task := s.tasks[bestID]
			if task == nil {
				continue
			}

			if enableRollout {
				s.scfg.Logf(config.VerbosityChecks, "  considering %s (priority=%d, target=%s, score=%.2f)",
					bestID, s.priority(bestID), target.id, target.score)
			}

			chosen := s.chooseResources(bestID, task, st)
			if chosen == nil {
				if enableRollout {
					s.scfg.Logf(config.VerbosityChecks, "    skipping %s: resources not available now", bestID)
				}
				continue
			}

			if enableRollout && s.cfg.RolloutEnabled && !task.IsMilestone() && len(chosen.resources) == 1 {
				if skip, res := s.checkRolloutSkip(bestID, target, targets, chosen, st); skip {
					s.rolloutSkips++
					st.reservations[res.resource] = reservation{taskID: res.taskID, reservedFrom: res.reservedFrom}
					s.scfg.Logf(config.VerbosityChecks, "    skipping %s: reserving %s for %s",
						bestID, res.resource, res.taskID)
					continue
				}
			}

			for _, r := range chosen.resources {
				st.schedules[r].AddBusyPeriod(st.now, chosen.end)
			}
			st.commit(models.ScheduledTask{
				TaskID:       bestID,
				StartDate:    st.now,
				EndDate:      chosen.end,
				DurationDays: task.DurationDays,
				Resources:    chosen.resources,
			})
			scheduledAny = true
			if enableRollout {
				s.scfg.Logf(config.VerbosityChanges, "  scheduled %s on %v from %s to %s",
					bestID, chosen.resources, st.now.Format("2006-01-02"), chosen.end.Format("2006-01-02"))
			}
			break targetLoop
		}

		if !scheduledAny {
			next, ok := s.findNextEventTime(st)
			if !ok {
				break
			}
			if !horizon.IsZero() && next.After(horizon) {
				break
			}
			st.now = next
			for name, r := range st.reservations {
				if r.reservedFrom.Before(st.now) {
					delete(st.reservations, name)
				}
			}
		}
	}

	return st, nil
}

// rankTargets scores every unscheduled task as a goal and orders them most
// attractive first.
func (s *Scheduler) rankTargets(st *cpState) ([]targetInfo, error) {
	scheduledEnd := make(map[string]float64, len(st.scheduled))
	for id, sp := range st.scheduled {
		scheduledEnd[id] = float64(models.DaysBetween(s.currentDate, sp.end))
	}

	ids := make([]string, 0, len(st.unscheduled))
	for id := range st.unscheduled {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	targets := make([]targetInfo, 0, len(ids))
	totalWork := 0.0
	for _, id := range ids {
		path, err := calculatePath(id, s.tasks, scheduledEnd, s.completed, s.dependents)
		if err != nil {
			return nil, err
		}
		deadline := s.deadlines[id]
		targets = append(targets, targetInfo{
			id:       id,
			path:     path,
			priority: s.priority(id),
			deadline: deadline,
		})
		totalWork += path.TotalWork
	}

	avgWork := 1.0
	if len(targets) > 0 {
		avgWork = totalWork / float64(len(targets))
	}

	minDeadlineUrgency := 1.0
	haveDeadlines := false
	for i := range targets {
		t := &targets[i]
		if t.deadline.IsZero() {
			continue
		}
		haveDeadlines = true
		t.urgency = deadlineUrgency(t.deadline, t.path.Length, st.now, s.cfg, avgWork)
		if t.urgency < minDeadlineUrgency {
			minDeadlineUrgency = t.urgency
		}
	}
	fallback := noDeadlineUrgency(minDeadlineUrgency, haveDeadlines, s.cfg)
	for i := range targets {
		t := &targets[i]
		if t.deadline.IsZero() {
			t.urgency = fallback
		}
		t.score = scoreTarget(t.priority, t.path.TotalWork, t.urgency)
	}

	sort.Slice(targets, func(i, j int) bool {
		if targets[i].score != targets[j].score {
			return targets[i].score > targets[j].score
		}
		return targets[i].id < targets[j].id
	})
	return targets, nil
}

// eligibleCriticalPathTasks returns unscheduled tasks on the target's
// critical path whose dependencies and start constraints allow starting
// now.
func (s *Scheduler) eligibleCriticalPathTasks(target targetInfo, st *cpState) []string {
	var eligible []string
	for id := range target.path.CriticalTasks {
		if !st.unscheduled[id] {
			continue
		}
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

func (s *Scheduler) earliestStart(task *models.Task, st *cpState) (time.Time, bool) {
	earliest := st.now
	for _, dep := range task.Dependencies {
		if s.completed[dep.TaskID] {
			continue
		}
		sp, ok := st.scheduled[dep.TaskID]
		if !ok {
			return time.Time{}, false
		}
		earliest = models.MaxDate(earliest, models.AddDays(sp.end, 1+models.CeilDays(dep.LagDays)))
	}
	if !task.StartAfter.IsZero() {
		earliest = models.MaxDate(earliest, task.StartAfter)
	}
	return earliest, true
}

// pickBestWSPT returns the eligible task with the highest priority/duration
// ratio, ties broken by id.
func pickBestWSPT(eligible []string, priorityOf func(string) int, tasks map[string]*models.Task) string {
	best := eligible[0]
	bestScore := -1.0
	for _, id := range eligible {
		duration := 0.0
		if task := tasks[id]; task != nil {
			duration = task.DurationDays
		}
		score := wspt(priorityOf(id), duration)
		if score > bestScore {
			best = id
			bestScore = score
		}
	}
	return best
}

// choice is a resolved resource assignment for one task at the current
// tick.
type choice struct {
	resources []string
	end       time.Time
}

// chooseResources resolves the task's resources at st.now, honoring
// reservations held for other tasks. Nil means the task cannot start now.
func (s *Scheduler) chooseResources(id string, task *models.Task, st *cpState) *choice {
	if task.IsMilestone() {
		return &choice{end: st.now}
	}

	reserved := func(name string) bool {
		r, ok := st.reservations[name]
		return ok && r.taskID != id
	}

	if task.ResourceSpec != "" && s.resources != nil {
		var bestResource string
		var bestCompletion time.Time
		haveBest := false
		for _, name := range s.candidates[id] {
			if reserved(name) {
				continue
			}
			sched, ok := st.schedules[name]
			if !ok {
				continue
			}
			if !sched.NextAvailableTime(st.now).Equal(st.now) {
				continue
			}
			completion := sched.CalculateCompletionTime(st.now, task.DurationDays)
			if !haveBest || completion.Before(bestCompletion) {
				bestResource = name
				bestCompletion = completion
				haveBest = true
			}
		}
		if !haveBest {
			return nil
		}
		return &choice{resources: []string{bestResource}, end: bestCompletion}
	}

	if len(task.Resources) == 0 {
		return nil
	}
	for _, a := range task.Resources {
		if reserved(a.Resource) {
			return nil
		}
		sched, ok := st.schedules[a.Resource]
		if !ok {
			return nil
		}
		if !sched.NextAvailableTime(st.now).Equal(st.now) {
			return nil
		}
	}
	maxCompletion := st.now
	resources := make([]string, len(task.Resources))
	for i, a := range task.Resources {
		resources[i] = a.Resource
		completion := st.schedules[a.Resource].CalculateCompletionTime(st.now, task.DurationDays)
		maxCompletion = models.MaxDate(maxCompletion, completion)
	}
	return &choice{resources: resources, end: maxCompletion}
}

func (s *Scheduler) findNextEventTime(st *cpState) (time.Time, bool) {
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
