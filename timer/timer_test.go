// timer/timer_test.go
package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestTimerFiresAfterDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	manager := NewTimerManagerWithClock(clock)
	defer manager.Stop()

	// Wait for the process loop's ticker to register with the fake clock.
	clock.BlockUntil(1)

	fired := make(chan struct{}, 1)
	manager.AddTimer(100*time.Millisecond, 0, func() {
		fired <- struct{}{}
	})

	clock.Advance(200 * time.Millisecond)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestTimerNotFiredBeforeDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	manager := NewTimerManagerWithClock(clock)
	defer manager.Stop()

	clock.BlockUntil(1)

	var fired atomic.Int32
	manager.AddTimer(time.Second, 0, func() {
		fired.Add(1)
	})

	clock.Advance(500 * time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	if fired.Load() != 0 {
		t.Error("timer fired before its delay elapsed")
	}
}

func TestRemoveTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	manager := NewTimerManagerWithClock(clock)
	defer manager.Stop()

	clock.BlockUntil(1)

	var fired atomic.Int32
	id := manager.AddTimer(time.Second, 0, func() {
		fired.Add(1)
	})
	manager.RemoveTimer(id)

	clock.Advance(2 * time.Second)
	time.Sleep(50 * time.Millisecond)

	if fired.Load() != 0 {
		t.Error("removed timer still fired")
	}
}

func TestRepeatingTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	manager := NewTimerManagerWithClock(clock)
	defer manager.Stop()

	clock.BlockUntil(1)

	fired := make(chan struct{}, 16)
	manager.AddTimer(100*time.Millisecond, 100*time.Millisecond, func() {
		fired <- struct{}{}
	})

	for i := 0; i < 2; i++ {
		clock.Advance(150 * time.Millisecond)
		select {
		case <-fired:
		case <-time.After(2 * time.Second):
			t.Fatalf("repeat %d did not fire", i+1)
		}
	}
}
