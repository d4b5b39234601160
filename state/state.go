package state

import (
	"errors"
	"sync"

	"github.com/ShomaShirai/Ito-game/models"
)

// ErrTransitionNotAllowed is returned when a phase transition would skip a
// phase or move backwards.
var ErrTransitionNotAllowed = errors.New("phase transition not allowed")

// ErrAlreadyInPhase is returned when the requested phase equals the current
// one. Callers that re-run checks on every notification treat this as a
// no-op rather than a failure.
var ErrAlreadyInPhase = errors.New("already in requested phase")

// PhaseMachine guards a round's phase so it only ever advances
// discuss -> arrange -> reveal -> result.
type PhaseMachine struct {
	current models.Phase
	mutex   sync.RWMutex

	onEnter map[models.Phase][]func(models.Phase)
}

func NewPhaseMachine(initial models.Phase) *PhaseMachine {
	return &PhaseMachine{
		current: initial,
		onEnter: make(map[models.Phase][]func(models.Phase)),
	}
}

// Current returns the phase the machine is in.
func (pm *PhaseMachine) Current() models.Phase {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()
	return pm.current
}

// OnEnter registers a hook invoked after the machine enters the given phase.
func (pm *PhaseMachine) OnEnter(phase models.Phase, fn func(from models.Phase)) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	pm.onEnter[phase] = append(pm.onEnter[phase], fn)
}

// Advance moves the machine to the requested phase. Only the immediate next
// phase in sequence is accepted; requesting the current phase returns
// ErrAlreadyInPhase, anything else ErrTransitionNotAllowed.
func (pm *PhaseMachine) Advance(to models.Phase) error {
	pm.mutex.Lock()

	if !to.Valid() {
		pm.mutex.Unlock()
		return ErrTransitionNotAllowed
	}
	if to == pm.current {
		pm.mutex.Unlock()
		return ErrAlreadyInPhase
	}
	next, ok := pm.current.Next()
	if !ok || next != to {
		pm.mutex.Unlock()
		return ErrTransitionNotAllowed
	}

	from := pm.current
	pm.current = to
	hooks := pm.onEnter[to]
	pm.mutex.Unlock()

	for _, fn := range hooks {
		fn(from)
	}
	return nil
}

// Observe force-sets the machine to a phase received from the backend feed.
// Remote phases are authoritative, but a notification that would move the
// machine backwards is ignored so stale deliveries cannot rewind a round.
func (pm *PhaseMachine) Observe(remote models.Phase) {
	pm.mutex.Lock()

	if !remote.Valid() || remote == pm.current {
		pm.mutex.Unlock()
		return
	}
	if phaseIndex(remote) < phaseIndex(pm.current) {
		pm.mutex.Unlock()
		return
	}

	from := pm.current
	pm.current = remote
	hooks := pm.onEnter[remote]
	pm.mutex.Unlock()

	for _, fn := range hooks {
		fn(from)
	}
}

// CanAdvance reports whether moving from one phase to another is a legal
// single step.
func CanAdvance(from, to models.Phase) bool {
	next, ok := from.Next()
	return ok && next == to
}

func phaseIndex(p models.Phase) int {
	switch p {
	case models.PhaseDiscuss:
		return 0
	case models.PhaseArrange:
		return 1
	case models.PhaseReveal:
		return 2
	case models.PhaseResult:
		return 3
	}
	return -1
}
