// Package orchestrator runs a DAG of named steps to completion, starting
// each step reactively as soon as its dependencies settle and propagating
// skips transitively through failed branches.
package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/handoverhq/handover/internal/herrors"
)

// stepDuration records wall time per step id and terminal status, so a run
// wrapped by anything exposing /metrics can see where the pipeline spends
// its time.
var stepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "handover",
	Subsystem: "orchestrator",
	Name:      "step_duration_seconds",
	Help:      "Wall time between a step's start and settlement.",
	Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
}, []string{"step", "status"})

func init() {
	prometheus.MustRegister(stepDuration)
}

// Status is a step's terminal or in-flight state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// StepFunc is the work a step performs. It receives the settled results of
// its dependencies, keyed by id, and returns the value stored as the step's
// result data.
type StepFunc func(deps map[string]*StepResult) (interface{}, error)

// StepDef registers a unit of work and the ids it depends on.
type StepDef struct {
	ID      string
	Name    string
	Deps    []string
	Execute StepFunc
}

// StepResult is the settled outcome of one step.
type StepResult struct {
	ID       string
	Name     string
	Status   Status
	Data     interface{}
	Err      error
	Duration time.Duration

	startedAt time.Time
	settledAt time.Time
}

// Hooks are optional callbacks fired as steps transition. A panicking or
// slow hook must never affect step outcomes; hooks run synchronously on the
// goroutine that produced the transition.
type Hooks struct {
	OnStepStart    func(id, name string)
	OnStepComplete func(result *StepResult)
	OnStepFail     func(result *StepResult)
	OnSkip         func(result *StepResult)
}

// ErrDuplicateID is returned by AddStep when the id is already registered.
type ErrDuplicateID struct{ ID string }

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("orchestrator: step %q already registered", e.ID)
}

// Orchestrator holds a registered step graph and runs it once via Execute.
type Orchestrator struct {
	mu    sync.Mutex
	order []string
	steps map[string]*StepDef
	hooks Hooks
}

// New creates an empty Orchestrator. Hooks may be the zero value; any unset
// callback is simply not invoked.
func New(hooks Hooks) *Orchestrator {
	return &Orchestrator{
		steps: make(map[string]*StepDef),
		hooks: hooks,
	}
}

// AddStep registers a step. It fails synchronously if id is already taken.
func (o *Orchestrator) AddStep(def StepDef) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.steps[def.ID]; exists {
		return &ErrDuplicateID{ID: def.ID}
	}
	cp := def
	o.steps[def.ID] = &cp
	o.order = append(o.order, def.ID)
	return nil
}

// Execute validates the graph, then runs every step to a terminal state and
// returns the full results map, keyed by step id.
func (o *Orchestrator) Execute() (map[string]*StepResult, error) {
	o.mu.Lock()
	steps := make(map[string]*StepDef, len(o.steps))
	order := append([]string(nil), o.order...)
	for id, def := range o.steps {
		steps[id] = def
	}
	o.mu.Unlock()

	if err := validate(steps, order); err != nil {
		return nil, err
	}

	run := &run{
		steps:     steps,
		hooks:     o.hooks,
		results:   make(map[string]*StepResult, len(steps)),
		indegree:  make(map[string]int, len(steps)),
		dependers: make(map[string][]string, len(steps)),
		started:   make(map[string]bool, len(steps)),
	}

	for id, def := range steps {
		run.indegree[id] = len(def.Deps)
		for _, dep := range def.Deps {
			run.dependers[dep] = append(run.dependers[dep], id)
		}
	}

	run.wg.Add(len(steps))
	for id := range steps {
		if run.indegree[id] == 0 {
			run.start(id)
		}
	}
	run.wg.Wait()

	return run.results, nil
}

// validate checks for unknown dependency ids (fail fast per step) and, via
// Kahn's algorithm, for cycles among the registered steps.
func validate(steps map[string]*StepDef, order []string) error {
	indegree := make(map[string]int, len(steps))
	dependers := make(map[string][]string, len(steps))
	for _, def := range steps {
		for _, dep := range def.Deps {
			if _, ok := steps[dep]; !ok {
				return herrors.OrchestratorMissingDep(def.ID, dep)
			}
			dependers[dep] = append(dependers[dep], def.ID)
		}
		indegree[def.ID] = len(def.Deps)
	}

	queue := make([]string, 0, len(steps))
	for _, id := range order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, dependent := range dependers[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if visited != len(steps) {
		var participants []string
		for _, id := range order {
			if indegree[id] > 0 {
				participants = append(participants, id)
			}
		}
		return herrors.OrchestratorCycle(participants)
	}

	return nil
}

// run carries the mutable state of one Execute call.
type run struct {
	mu        sync.Mutex
	wg        sync.WaitGroup
	steps     map[string]*StepDef
	hooks     Hooks
	results   map[string]*StepResult
	indegree  map[string]int
	dependers map[string][]string
	started   map[string]bool
}

func (r *run) start(id string) {
	r.mu.Lock()
	if r.started[id] {
		r.mu.Unlock()
		return
	}
	r.started[id] = true
	r.mu.Unlock()

	def := r.steps[id]
	go r.runStep(def)
}

func (r *run) runStep(def *StepDef) {
	defer r.wg.Done()

	deps := r.collectDeps(def.Deps)
	if skip, cause := skipReason(deps); skip {
		r.settleSkipped(def, cause)
		return
	}

	started := time.Now()
	if r.hooks.OnStepStart != nil {
		safeHook(func() { r.hooks.OnStepStart(def.ID, def.Name) })
	}

	data, err := def.Execute(deps)
	settled := time.Now()

	result := &StepResult{
		ID:        def.ID,
		Name:      def.Name,
		Data:      data,
		Duration:  settled.Sub(started),
		startedAt: started,
		settledAt: settled,
	}
	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		stepDuration.WithLabelValues(def.ID, string(StatusFailed)).Observe(result.Duration.Seconds())
		r.store(result)
		if r.hooks.OnStepFail != nil {
			safeHook(func() { r.hooks.OnStepFail(result) })
		}
	} else {
		result.Status = StatusCompleted
		stepDuration.WithLabelValues(def.ID, string(StatusCompleted)).Observe(result.Duration.Seconds())
		r.store(result)
		if r.hooks.OnStepComplete != nil {
			safeHook(func() { r.hooks.OnStepComplete(result) })
		}
	}

	r.advance(def.ID)
}

// settleSkipped marks def skipped without ever running its Execute func,
// then continues propagation to its own dependents.
func (r *run) settleSkipped(def *StepDef, _ string) {
	now := time.Now()
	result := &StepResult{
		ID:        def.ID,
		Name:      def.Name,
		Status:    StatusSkipped,
		Duration:  0,
		startedAt: now,
		settledAt: now,
	}
	r.store(result)
	if r.hooks.OnSkip != nil {
		safeHook(func() { r.hooks.OnSkip(result) })
	}
	r.advance(def.ID)
}

// safeHook isolates a hook invocation so a panicking hook cannot alter the
// owning step's outcome.
func safeHook(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// advance decrements the in-degree of every dependent of id and starts any
// that reach zero. wg.Add happens once up front for every registered step,
// so each dependent is accounted for exactly once regardless of which path
// triggers its eligibility.
func (r *run) advance(id string) {
	r.mu.Lock()
	dependents := append([]string(nil), r.dependers[id]...)
	var eligible []string
	for _, dep := range dependents {
		r.indegree[dep]--
		if r.indegree[dep] == 0 {
			eligible = append(eligible, dep)
		}
	}
	r.mu.Unlock()

	for _, depID := range eligible {
		r.start(depID)
	}
}

func (r *run) store(result *StepResult) {
	r.mu.Lock()
	r.results[result.ID] = result
	r.mu.Unlock()
}

func (r *run) collectDeps(ids []string) map[string]*StepResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*StepResult, len(ids))
	for _, id := range ids {
		if res, ok := r.results[id]; ok {
			out[id] = res
		}
	}
	return out
}

// skipReason reports whether any dependency settled as failed or skipped,
// in which case the step itself must be skipped without running.
func skipReason(deps map[string]*StepResult) (bool, string) {
	for _, dep := range deps {
		if dep.Status == StatusFailed || dep.Status == StatusSkipped {
			return true, dep.ID
		}
	}
	return false, ""
}
