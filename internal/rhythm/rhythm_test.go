package rhythm

import "testing"

func TestWakeSleepCycle(t *testing.T) {
	r := New(Config{WakeDuration: 3, SleepDuration: 2})

	if r.Phase() != PhaseWake {
		t.Fatalf("initial phase = %s, want wake", r.Phase())
	}

	// Three steps of wake → sleep with counter reset.
	for i := 0; i < 2; i++ {
		phase, flipped := r.Step(1)
		if flipped || phase != PhaseWake {
			t.Fatalf("step %d: premature transition to %s", i+1, phase)
		}
	}
	phase, flipped := r.Step(1)
	if !flipped || phase != PhaseSleep {
		t.Fatalf("after 3 steps: phase=%s flipped=%v, want sleep transition", phase, flipped)
	}
	if r.Counter() != 0 {
		t.Fatalf("counter = %d after transition, want 0", r.Counter())
	}

	// Two more steps of sleep → back to wake.
	if _, flipped := r.Step(1); flipped {
		t.Fatal("premature sleep→wake transition")
	}
	phase, flipped = r.Step(1)
	if !flipped || phase != PhaseWake {
		t.Fatalf("after 2 sleep steps: phase=%s flipped=%v, want wake transition", phase, flipped)
	}
}

func TestAtMostOneTransitionPerStep(t *testing.T) {
	r := New(Config{WakeDuration: 1, SleepDuration: 1})

	prev := r.Phase()
	for i := 0; i < 10; i++ {
		phase, flipped := r.Step(1)
		if !flipped {
			t.Fatalf("step %d: expected a transition with duration 1", i)
		}
		if phase == prev {
			t.Fatalf("step %d: phase did not alternate", i)
		}
		prev = phase
	}
}

func TestTauScaleShortensEffectiveDuration(t *testing.T) {
	r := New(Config{WakeDuration: 10, SleepDuration: 10})

	// tauScale 0.2 → effective wake duration 2 for these steps.
	if _, flipped := r.Step(0.2); flipped {
		t.Fatal("transition after one step, effective duration should be 2")
	}
	phase, flipped := r.Step(0.2)
	if !flipped || phase != PhaseSleep {
		t.Fatalf("expected wake→sleep after 2 scaled steps, got phase=%s flipped=%v", phase, flipped)
	}

	// Configured duration must be untouched: at tauScale 1 the sleep phase
	// runs its full 10 steps.
	for i := 0; i < 9; i++ {
		if _, flipped := r.Step(1); flipped {
			t.Fatalf("sleep step %d: premature transition, configured duration mutated", i+1)
		}
	}
	if _, flipped := r.Step(1); !flipped {
		t.Fatal("expected sleep→wake after full configured duration")
	}
}

func TestInvalidTauScaleIgnored(t *testing.T) {
	r := New(Config{WakeDuration: 2, SleepDuration: 2})

	if _, flipped := r.Step(-1); flipped {
		t.Fatal("negative tauScale must fall back to configured duration")
	}
	if _, flipped := r.Step(0); !flipped {
		t.Fatal("expected transition at configured duration with tauScale 0 ignored")
	}
}

func TestNonPositiveDurationFailsClosed(t *testing.T) {
	r := New(Config{WakeDuration: 0, SleepDuration: 2})

	if !r.Frozen() {
		t.Fatal("rhythm with zero duration should freeze")
	}
	for i := 0; i < 5; i++ {
		phase, flipped := r.Step(1)
		if flipped || phase != PhaseWake {
			t.Fatal("frozen rhythm must not transition")
		}
	}

	r.Reconfigure(Config{WakeDuration: 1, SleepDuration: 1})
	if r.Frozen() {
		t.Fatal("reconfigure with valid durations should unfreeze")
	}
	if _, flipped := r.Step(1); !flipped {
		t.Fatal("unfrozen rhythm should transition again")
	}
}

func TestCyclePositionWithinUnitInterval(t *testing.T) {
	r := New(Config{WakeDuration: 4, SleepDuration: 2})

	for i := 0; i < 20; i++ {
		pos := r.CyclePosition()
		if pos < 0 || pos >= 1 {
			t.Fatalf("cycle position %f outside [0, 1)", pos)
		}
		r.Step(1)
	}
}
