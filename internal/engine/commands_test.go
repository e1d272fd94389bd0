package engine

import "testing"

func TestPauseStateAdvanceCycle(t *testing.T) {
	sequence := []PauseState{Running, Frozen, Paused, Running}
	state := Running
	for i := 1; i < len(sequence); i++ {
		state = state.Advance()
		if state != sequence[i] {
			t.Fatalf("step %d: Advance() = %v, want %v", i, state, sequence[i])
		}
	}
}

func TestPauseStateStringNamesEveryValue(t *testing.T) {
	for _, s := range []PauseState{Running, Frozen, Paused} {
		if s.String() == "unknown" {
			t.Errorf("PauseState(%d).String() = %q, want a real name", s, s.String())
		}
	}
}
