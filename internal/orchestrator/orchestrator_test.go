package orchestrator

import (
	"errors"
	"sync"
	"testing"
)

func step(id string, deps []string, fn StepFunc) StepDef {
	return StepDef{ID: id, Name: id, Deps: deps, Execute: fn}
}

func constStep(id string, deps []string, val interface{}) StepDef {
	return step(id, deps, func(map[string]*StepResult) (interface{}, error) {
		return val, nil
	})
}

func TestLinearChainCompletesInOrder(t *testing.T) {
	o := New(Hooks{})
	_ = o.AddStep(constStep("a", nil, 1))
	_ = o.AddStep(step("b", []string{"a"}, func(deps map[string]*StepResult) (interface{}, error) {
		return deps["a"].Data.(int) + 1, nil
	}))
	_ = o.AddStep(step("c", []string{"b"}, func(deps map[string]*StepResult) (interface{}, error) {
		return deps["b"].Data.(int) + 1, nil
	}))

	results, err := o.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results["c"].Data.(int) != 3 {
		t.Errorf("expected c=3, got %v", results["c"].Data)
	}
	for _, id := range []string{"a", "b", "c"} {
		if results[id].Status != StatusCompleted {
			t.Errorf("step %s: expected completed, got %s", id, results[id].Status)
		}
	}
}

func TestDuplicateIDFailsSynchronously(t *testing.T) {
	o := New(Hooks{})
	if err := o.AddStep(constStep("a", nil, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := o.AddStep(constStep("a", nil, 2))
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
	var dup *ErrDuplicateID
	if !errors.As(err, &dup) {
		t.Fatalf("expected *ErrDuplicateID, got %T", err)
	}
}

func TestMissingDependencyFailsBeforeExecution(t *testing.T) {
	o := New(Hooks{})
	ran := false
	_ = o.AddStep(step("a", []string{"ghost"}, func(map[string]*StepResult) (interface{}, error) {
		ran = true
		return nil, nil
	}))

	_, err := o.Execute()
	if err == nil {
		t.Fatal("expected missing dependency error")
	}
	if ran {
		t.Error("step must not run when validation fails")
	}
}

func TestCycleFailsBeforeExecution(t *testing.T) {
	o := New(Hooks{})
	_ = o.AddStep(constStep("a", []string{"b"}, 1))
	_ = o.AddStep(constStep("b", []string{"a"}, 1))

	_, err := o.Execute()
	if err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestFailurePropagatesSkipToDependents(t *testing.T) {
	o := New(Hooks{})
	_ = o.AddStep(step("a", nil, func(map[string]*StepResult) (interface{}, error) {
		return nil, errors.New("boom")
	}))
	_ = o.AddStep(constStep("b", []string{"a"}, 1))
	_ = o.AddStep(constStep("c", []string{"b"}, 1))
	_ = o.AddStep(constStep("independent", nil, 42))

	results, err := o.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results["a"].Status != StatusFailed {
		t.Errorf("expected a failed, got %s", results["a"].Status)
	}
	if results["b"].Status != StatusSkipped {
		t.Errorf("expected b skipped, got %s", results["b"].Status)
	}
	if results["c"].Status != StatusSkipped {
		t.Errorf("expected c skipped (transitive), got %s", results["c"].Status)
	}
	if results["independent"].Status != StatusCompleted {
		t.Errorf("expected independent step to still complete, got %s", results["independent"].Status)
	}
}

func TestDiamondDependencyWaitsForBothParents(t *testing.T) {
	o := New(Hooks{})
	_ = o.AddStep(constStep("top", nil, 1))
	_ = o.AddStep(constStep("left", []string{"top"}, 2))
	_ = o.AddStep(constStep("right", []string{"top"}, 3))
	_ = o.AddStep(step("bottom", []string{"left", "right"}, func(deps map[string]*StepResult) (interface{}, error) {
		if deps["left"] == nil || deps["right"] == nil {
			t.Fatal("bottom started without both deps settled")
		}
		return deps["left"].Data.(int) + deps["right"].Data.(int), nil
	}))

	results, err := o.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results["bottom"].Data.(int) != 5 {
		t.Errorf("expected bottom=5, got %v", results["bottom"].Data)
	}
}

func TestHooksFireForEachTransition(t *testing.T) {
	var mu sync.Mutex
	var started, completed, failed, skipped []string

	o := New(Hooks{
		OnStepStart: func(id, name string) {
			mu.Lock()
			started = append(started, id)
			mu.Unlock()
		},
		OnStepComplete: func(r *StepResult) {
			mu.Lock()
			completed = append(completed, r.ID)
			mu.Unlock()
		},
		OnStepFail: func(r *StepResult) {
			mu.Lock()
			failed = append(failed, r.ID)
			mu.Unlock()
		},
		OnSkip: func(r *StepResult) {
			mu.Lock()
			skipped = append(skipped, r.ID)
			mu.Unlock()
		},
	})
	_ = o.AddStep(step("a", nil, func(map[string]*StepResult) (interface{}, error) {
		return nil, errors.New("boom")
	}))
	_ = o.AddStep(constStep("b", []string{"a"}, 1))

	if _, err := o.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(started) != 1 || started[0] != "a" {
		t.Errorf("expected only 'a' to start, got %v", started)
	}
	if len(completed) != 0 {
		t.Errorf("expected no completions, got %v", completed)
	}
	if len(failed) != 1 || failed[0] != "a" {
		t.Errorf("expected 'a' to fail, got %v", failed)
	}
	if len(skipped) != 1 || skipped[0] != "b" {
		t.Errorf("expected 'b' to be skipped, got %v", skipped)
	}
}

func TestEveryRegisteredStepAppearsInResults(t *testing.T) {
	o := New(Hooks{})
	ids := []string{"a", "b", "c", "d"}
	for i, id := range ids {
		deps := []string(nil)
		if i > 0 {
			deps = []string{ids[i-1]}
		}
		_ = o.AddStep(constStep(id, deps, i))
	}

	results, err := o.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != len(ids) {
		t.Fatalf("expected %d results, got %d", len(ids), len(results))
	}
}
