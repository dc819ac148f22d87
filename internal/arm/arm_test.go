package arm

import (
	"errors"
	"testing"
	"time"

	"github.com/ficrammanifur/smart-robotic-arm/internal/hal"
)

var testPins = []int{18, 19, 20, 21, 22}

func newTestArm(t *testing.T) (*Arm, *hal.Mock) {
	t.Helper()
	mock := hal.NewMock()
	a, err := New(mock, testPins, Params{
		SettleDelay: time.Microsecond,
		StepDelay:   time.Microsecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return a, mock
}

func mustAngle(t *testing.T, a *Arm, id int) int {
	t.Helper()
	angle, err := a.Angle(id)
	if err != nil {
		t.Fatalf("Angle(%d) failed: %v", id, err)
	}
	return angle
}

func TestNewHomesAllJoints(t *testing.T) {
	a, mock := newTestArm(t)

	for id := range testPins {
		if got := mustAngle(t, a, id); got != 90 {
			t.Errorf("joint %d: got %d, want 90", id, got)
		}
	}
	// One write per joint from homing.
	if len(mock.PWMWrites) != len(testPins) {
		t.Errorf("writes: got %d, want %d", len(mock.PWMWrites), len(testPins))
	}
}

func TestSetAngleStoresExactAngleAndClampsDuty(t *testing.T) {
	a, mock := newTestArm(t)

	for angle := 0; angle <= 180; angle++ {
		if err := a.SetAngle(0, angle); err != nil {
			t.Fatalf("SetAngle(0, %d) failed: %v", angle, err)
		}
		if got := mustAngle(t, a, 0); got != angle {
			t.Errorf("stored angle: got %d, want %d", got, angle)
		}
		if duty := mock.PWMValue(testPins[0]); duty < 5 || duty > 25 {
			t.Errorf("angle %d: duty %d outside safe band [5,25]", angle, duty)
		}
	}
}

func TestSetAngleRejectsInvalidInput(t *testing.T) {
	a, mock := newTestArm(t)
	writesBefore := len(mock.PWMWrites)

	cases := []struct {
		name      string
		id, angle int
		wantErr   error
	}{
		{"negative angle", 0, -1, ErrBadAngle},
		{"angle above range", 0, 181, ErrBadAngle},
		{"negative joint", -1, 90, ErrBadJoint},
		{"joint above range", len(testPins), 90, ErrBadJoint},
	}
	for _, tc := range cases {
		if err := a.SetAngle(tc.id, tc.angle); !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.wantErr)
		}
	}

	if len(mock.PWMWrites) != writesBefore {
		t.Errorf("invalid input reached the hardware: %v", mock.PWMWrites[writesBefore:])
	}
	if got := mustAngle(t, a, 0); got != 90 {
		t.Errorf("stored angle changed on rejected input: got %d, want 90", got)
	}
}

func TestSetAnglesLengthMismatch(t *testing.T) {
	a, _ := newTestArm(t)

	if err := a.SetAngles([]int{90, 90}); !errors.Is(err, ErrBadJoint) {
		t.Fatalf("got %v, want ErrBadJoint", err)
	}
}

func TestSetAnglesAttemptsAllJoints(t *testing.T) {
	a, _ := newTestArm(t)

	err := a.SetAngles([]int{10, 200, 30, 40, 50})
	if !errors.Is(err, ErrBadAngle) {
		t.Fatalf("got %v, want ErrBadAngle", err)
	}

	// The invalid element must not stop the others from applying.
	want := []int{10, 90, 30, 40, 50}
	for id, w := range want {
		if got := mustAngle(t, a, id); got != w {
			t.Errorf("joint %d: got %d, want %d", id, got, w)
		}
	}
}

func TestSmoothMoveExactSequence(t *testing.T) {
	a, _ := newTestArm(t)

	// Record the stored angle after every actuation delay, deduplicating
	// the settle/step pairs.
	var trace []int
	a.sleep = func(time.Duration) {
		angle := a.Angles()[0]
		if len(trace) == 0 || trace[len(trace)-1] != angle {
			trace = append(trace, angle)
		}
	}

	if err := a.SmoothMove(0, 0, 5); err != nil {
		t.Fatalf("SmoothMove failed: %v", err)
	}

	want := []int{72, 54, 36, 18, 0}
	if len(trace) != len(want) {
		t.Fatalf("sequence: got %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("sequence: got %v, want %v", trace, want)
		}
	}

	if got := mustAngle(t, a, 0); got != 0 {
		t.Errorf("final angle: got %d, want exactly 0", got)
	}
}

func TestSmoothMoveSnapsToTarget(t *testing.T) {
	a, _ := newTestArm(t)

	// 90 -> 100 in 7 steps: 10/7 truncates to 1 per step, so without the
	// final snap the move would end at 97.
	if err := a.SmoothMove(2, 100, 7); err != nil {
		t.Fatalf("SmoothMove failed: %v", err)
	}
	if got := mustAngle(t, a, 2); got != 100 {
		t.Errorf("final angle: got %d, want exactly 100", got)
	}
}

func TestSmoothMoveRejectsZeroSteps(t *testing.T) {
	a, mock := newTestArm(t)
	writesBefore := len(mock.PWMWrites)

	if err := a.SmoothMove(0, 45, 0); !errors.Is(err, ErrBadSteps) {
		t.Fatalf("got %v, want ErrBadSteps", err)
	}
	if len(mock.PWMWrites) != writesBefore {
		t.Errorf("zero-step move reached the hardware")
	}
}

func TestSmoothMoveHaltsBetweenSteps(t *testing.T) {
	a, mock := newTestArm(t)
	writesBefore := len(mock.PWMWrites)

	halted := false
	a.SetHaltFunc(func() bool { return halted })
	// Raise the halt during the first step's delay.
	a.sleep = func(time.Duration) { halted = true }

	err := a.SmoothMove(0, 0, 5)
	if !errors.Is(err, ErrHalted) {
		t.Fatalf("got %v, want ErrHalted", err)
	}

	// Exactly one step landed before the halt was observed.
	if got := len(mock.PWMWrites) - writesBefore; got != 1 {
		t.Errorf("writes after halt raised: got %d, want 1", got)
	}
	if got := mustAngle(t, a, 0); got != 72 {
		t.Errorf("angle: got %d, want 72", got)
	}
}

func TestEmergencyStopSilencesAllJointsKeepsAngles(t *testing.T) {
	a, mock := newTestArm(t)

	if err := a.SetAngle(1, 45); err != nil {
		t.Fatalf("SetAngle failed: %v", err)
	}

	a.EmergencyStop()

	for id, pin := range testPins {
		if duty := mock.PWMValue(pin); duty != 0 {
			t.Errorf("joint %d: duty %d after emergency stop, want 0", id, duty)
		}
	}
	// Last-known positions stay on record.
	if got := mustAngle(t, a, 1); got != 45 {
		t.Errorf("stored angle: got %d, want 45", got)
	}
}
