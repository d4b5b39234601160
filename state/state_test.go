package state

import (
	"errors"
	"testing"

	"github.com/ShomaShirai/Ito-game/models"
)

func TestAdvanceFollowsSequence(t *testing.T) {
	pm := NewPhaseMachine(models.PhaseDiscuss)

	steps := []models.Phase{models.PhaseArrange, models.PhaseReveal, models.PhaseResult}
	for _, phase := range steps {
		if err := pm.Advance(phase); err != nil {
			t.Fatalf("Advance(%s): %v", phase, err)
		}
		if pm.Current() != phase {
			t.Fatalf("Current() = %s, want %s", pm.Current(), phase)
		}
	}
}

func TestAdvanceRejectsSkips(t *testing.T) {
	pm := NewPhaseMachine(models.PhaseDiscuss)

	if err := pm.Advance(models.PhaseReveal); !errors.Is(err, ErrTransitionNotAllowed) {
		t.Errorf("skip to reveal: err = %v, want ErrTransitionNotAllowed", err)
	}
	if err := pm.Advance(models.PhaseResult); !errors.Is(err, ErrTransitionNotAllowed) {
		t.Errorf("skip to result: err = %v, want ErrTransitionNotAllowed", err)
	}
	if pm.Current() != models.PhaseDiscuss {
		t.Errorf("Current() = %s, want discuss", pm.Current())
	}
}

func TestAdvanceRejectsBackwards(t *testing.T) {
	pm := NewPhaseMachine(models.PhaseReveal)

	if err := pm.Advance(models.PhaseArrange); !errors.Is(err, ErrTransitionNotAllowed) {
		t.Errorf("err = %v, want ErrTransitionNotAllowed", err)
	}
}

func TestAdvanceSamePhase(t *testing.T) {
	pm := NewPhaseMachine(models.PhaseArrange)

	if err := pm.Advance(models.PhaseArrange); !errors.Is(err, ErrAlreadyInPhase) {
		t.Errorf("err = %v, want ErrAlreadyInPhase", err)
	}
}

func TestAdvanceRejectsUnknownPhase(t *testing.T) {
	pm := NewPhaseMachine(models.PhaseDiscuss)

	if err := pm.Advance(models.Phase("lobby")); !errors.Is(err, ErrTransitionNotAllowed) {
		t.Errorf("err = %v, want ErrTransitionNotAllowed", err)
	}
}

func TestObserveAdoptsRemotePhase(t *testing.T) {
	pm := NewPhaseMachine(models.PhaseDiscuss)

	// A remote client can have advanced several phases before we hear of it.
	pm.Observe(models.PhaseReveal)
	if pm.Current() != models.PhaseReveal {
		t.Errorf("Current() = %s, want reveal", pm.Current())
	}
}

func TestObserveIgnoresStalePhase(t *testing.T) {
	pm := NewPhaseMachine(models.PhaseReveal)

	pm.Observe(models.PhaseDiscuss)
	if pm.Current() != models.PhaseReveal {
		t.Errorf("stale observe rewound the machine to %s", pm.Current())
	}

	pm.Observe(models.Phase("bogus"))
	if pm.Current() != models.PhaseReveal {
		t.Errorf("invalid observe moved the machine to %s", pm.Current())
	}
}

func TestOnEnterHooks(t *testing.T) {
	pm := NewPhaseMachine(models.PhaseDiscuss)

	var entered []models.Phase
	var from models.Phase
	pm.OnEnter(models.PhaseReveal, func(f models.Phase) {
		entered = append(entered, models.PhaseReveal)
		from = f
	})

	if err := pm.Advance(models.PhaseArrange); err != nil {
		t.Fatalf("Advance(arrange): %v", err)
	}
	if len(entered) != 0 {
		t.Fatal("reveal hook fired on arrange")
	}

	pm.Observe(models.PhaseReveal)
	if len(entered) != 1 {
		t.Fatalf("reveal hook fired %d times, want 1", len(entered))
	}
	if from != models.PhaseArrange {
		t.Errorf("hook from = %s, want arrange", from)
	}
}

func TestCanAdvance(t *testing.T) {
	cases := []struct {
		from, to models.Phase
		want     bool
	}{
		{models.PhaseDiscuss, models.PhaseArrange, true},
		{models.PhaseArrange, models.PhaseReveal, true},
		{models.PhaseReveal, models.PhaseResult, true},
		{models.PhaseDiscuss, models.PhaseReveal, false},
		{models.PhaseResult, models.PhaseDiscuss, false},
		{models.PhaseResult, models.PhaseResult, false},
	}
	for _, c := range cases {
		if got := CanAdvance(c.from, c.to); got != c.want {
			t.Errorf("CanAdvance(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
