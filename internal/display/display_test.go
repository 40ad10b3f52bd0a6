package display

import (
	"testing"
	"time"
)

func TestStartCompleteRoundLifecycle(t *testing.T) {
	s := New()
	s.StartRound(1, "static-analysis")
	entry, ok := s.Round(1)
	if !ok {
		t.Fatal("expected round 1 to exist")
	}
	if entry.Status != RoundRunning {
		t.Errorf("expected running, got %s", entry.Status)
	}

	s.CompleteRound(1, false, 1200, 0)
	entry, _ = s.Round(1)
	if entry.Status != RoundDone {
		t.Errorf("expected done, got %s", entry.Status)
	}
	if entry.Tokens != 1200 {
		t.Errorf("expected 1200 tokens, got %d", entry.Tokens)
	}
}

func TestCompleteRoundCachedStatus(t *testing.T) {
	s := New()
	s.StartRound(2, "module-summaries")
	s.CompleteRound(2, true, 900, 500)
	entry, _ := s.Round(2)
	if entry.Status != RoundCached {
		t.Errorf("expected cached, got %s", entry.Status)
	}
	if entry.CacheSavingsTokens != 500 {
		t.Errorf("expected 500 cache savings, got %d", entry.CacheSavingsTokens)
	}
}

func TestFailRoundSetsFailedStatus(t *testing.T) {
	s := New()
	s.StartRound(3, "relationships")
	s.FailRound(3)
	entry, _ := s.Round(3)
	if entry.Status != RoundFailed {
		t.Errorf("expected failed, got %s", entry.Status)
	}
}

func TestTickerAdvancesElapsedForRunningRounds(t *testing.T) {
	s := New()
	s.StartRound(1, "static-analysis")
	s.StartTicker()
	defer s.StopTicker()

	time.Sleep(200 * time.Millisecond)

	entry, _ := s.Round(1)
	if entry.ElapsedMs <= 0 {
		t.Errorf("expected elapsed to advance, got %d", entry.ElapsedMs)
	}
}

func TestTickerIgnoresSettledRounds(t *testing.T) {
	s := New()
	s.StartRound(1, "static-analysis")
	s.CompleteRound(1, false, 100, 0)
	s.StartTicker()
	defer s.StopTicker()

	time.Sleep(150 * time.Millisecond)

	entry, _ := s.Round(1)
	if entry.ElapsedMs != 0 {
		t.Errorf("expected settled round's elapsed to stay 0, got %d", entry.ElapsedMs)
	}
}

func TestRoundsReturnsSnapshot(t *testing.T) {
	s := New()
	s.StartRound(1, "a")
	s.StartRound(2, "b")
	all := s.Rounds()
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
}
