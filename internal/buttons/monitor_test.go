package buttons

import (
	"testing"
	"time"
)

// drive feeds a scripted level sequence for one button through the state
// machine at a fixed sample spacing.
func drive(t *testing.T, m *Monitor, button int, levels []bool, spacing time.Duration) {
	t.Helper()
	now := time.Unix(0, 0)
	for _, level := range levels {
		m.step(button, level, now)
		now = now.Add(spacing)
	}
}

func newTestMonitor(presses *[]int) *Monitor {
	return NewMonitor(Config{
		SampleInterval: 20 * time.Millisecond,
		Debounce:       100 * time.Millisecond,
		Suppression:    500 * time.Millisecond,
	}, nil, func(n int) { *presses = append(*presses, n) }, nil)
}

func repeat(level bool, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = level
	}
	return out
}

func TestMonitor_CleanPressFiresOnce(t *testing.T) {
	var presses []int
	m := newTestMonitor(&presses)

	// Held well past the debounce window, then released.
	seq := append(repeat(true, 10), repeat(false, 5)...)
	drive(t, m, 1, seq, 20*time.Millisecond)

	if len(presses) != 1 || presses[0] != 1 {
		t.Errorf("presses = %v, want exactly [1]", presses)
	}
}

func TestMonitor_BounceBeforeDebounceDoesNotFire(t *testing.T) {
	var presses []int
	m := newTestMonitor(&presses)

	// Chatter: never stable for the full debounce window.
	seq := []bool{true, true, false, true, false, true, true, false, false}
	drive(t, m, 0, seq, 20*time.Millisecond)

	if len(presses) != 0 {
		t.Errorf("presses = %v, want none for a bouncing contact", presses)
	}
}

func TestMonitor_NoisyPressFiresExactlyOnce(t *testing.T) {
	var presses []int
	m := newTestMonitor(&presses)

	// Bounce on contact, a long stable hold, bounce on release.
	seq := []bool{true, false, true, false}
	seq = append(seq, repeat(true, 30)...)
	seq = append(seq, true, false, true, false)
	seq = append(seq, repeat(false, 30)...)
	drive(t, m, 2, seq, 20*time.Millisecond)

	if len(presses) != 1 {
		t.Errorf("presses = %v, want exactly one for one physical press", presses)
	}
}

func TestMonitor_SuppressionWindowBlocksRepeat(t *testing.T) {
	var presses []int
	m := newTestMonitor(&presses)

	// First press confirms, release, then a second press entirely inside
	// the suppression window.
	seq := repeat(true, 6)
	seq = append(seq, repeat(false, 2)...)
	seq = append(seq, repeat(true, 8)...)
	seq = append(seq, repeat(false, 2)...)
	drive(t, m, 0, seq, 20*time.Millisecond)

	if len(presses) != 1 {
		t.Errorf("presses = %v, want 1 (second press suppressed)", presses)
	}
}

func TestMonitor_PressAfterSuppressionFiresAgain(t *testing.T) {
	var presses []int
	m := newTestMonitor(&presses)

	seq := repeat(true, 6) // press one
	seq = append(seq, repeat(false, 30)...) // released through suppression
	seq = append(seq, repeat(true, 6)...) // press two
	seq = append(seq, repeat(false, 2)...)
	drive(t, m, 0, seq, 20*time.Millisecond)

	if len(presses) != 2 {
		t.Errorf("presses = %v, want 2", presses)
	}
}

func TestMonitor_HeldButtonDoesNotRepeat(t *testing.T) {
	var presses []int
	m := newTestMonitor(&presses)

	// Held for several seconds.
	drive(t, m, 1, repeat(true, 200), 20*time.Millisecond)

	if len(presses) != 1 {
		t.Errorf("presses = %v, want 1 for a held button", presses)
	}
}

func TestMonitor_IndependentButtons(t *testing.T) {
	var presses []int
	m := newTestMonitor(&presses)

	now := time.Unix(0, 0)
	for i := 0; i < 10; i++ {
		m.step(0, true, now)
		m.step(2, true, now)
		now = now.Add(20 * time.Millisecond)
	}

	if len(presses) != 2 {
		t.Fatalf("presses = %v, want one per button", presses)
	}
	if !((presses[0] == 0 && presses[1] == 2) || (presses[0] == 2 && presses[1] == 0)) {
		t.Errorf("presses = %v, want buttons 0 and 2", presses)
	}
}
