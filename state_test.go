package fdwatch

import (
	"testing"
)

func TestRunState_String(t *testing.T) {
	for _, tc := range []struct {
		state RunState
		want  string
	}{
		{StateStopped, "Stopped"},
		{StateRunning, "Running"},
		{RunState(42), "Unknown"},
	} {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("RunState(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
