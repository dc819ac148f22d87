package control

import (
	"testing"
	"time"

	"github.com/ficrammanifur/smart-robotic-arm/internal/arm"
	"github.com/ficrammanifur/smart-robotic-arm/internal/ultrasonic"
)

// fakeRanger returns a fixed reading (or error) and counts calls.
type fakeRanger struct {
	d     float32
	err   error
	calls int
}

func (r *fakeRanger) Average(n int) (float32, error) {
	r.calls++
	return r.d, r.err
}

type loopRig struct {
	loop     *Loop
	ap       *Applier
	ranger   *fakeRanger
	statuses []Status
	grabs    []Grab
}

func newLoopRig(t *testing.T, ranger *fakeRanger) *loopRig {
	t.Helper()
	ap, _ := newTestRig(t)

	rig := &loopRig{ap: ap, ranger: ranger}
	rig.loop = NewLoop(LoopConfig{
		State:  ap.State,
		Arm:    ap.Arm,
		Motor:  ap.Motor,
		Sensor: ranger,
		Publish: func(s Status) {
			rig.statuses = append(rig.statuses, s)
		},
		OnGrab: func(g Grab) {
			rig.grabs = append(rig.grabs, g)
		},
	})
	rig.loop.sleep = func(time.Duration) {}
	return rig
}

func jointAngle(t *testing.T, a *arm.Arm, id int) int {
	t.Helper()
	angle, err := a.Angle(id)
	if err != nil {
		t.Fatalf("Angle(%d) failed: %v", id, err)
	}
	return angle
}

func TestAutoStepGrabsBelowThreshold(t *testing.T) {
	rig := newLoopRig(t, &fakeRanger{d: 15})

	rig.loop.autoStep()

	if len(rig.grabs) != 1 {
		t.Fatalf("grab attempts: got %d, want 1", len(rig.grabs))
	}
	g := rig.grabs[0]
	if !g.Success {
		t.Errorf("grab failed: %+v", g)
	}
	if g.DistanceCM != 15 {
		t.Errorf("grab distance: got %.1f, want 15", g.DistanceCM)
	}

	// The sequence ends with the object held and the arm retracted.
	if got := jointAngle(t, rig.ap.Arm, arm.JointGripper); got != 180 {
		t.Errorf("gripper: got %d, want 180 (closed)", got)
	}
	if got := jointAngle(t, rig.ap.Arm, arm.JointShoulder); got != 90 {
		t.Errorf("shoulder: got %d, want 90", got)
	}
	if got := jointAngle(t, rig.ap.Arm, arm.JointElbow); got != 90 {
		t.Errorf("elbow: got %d, want 90", got)
	}
}

func TestAutoStepNoGrabAtThreshold(t *testing.T) {
	// The trigger is strictly below 20, so exactly 20.0 must not fire.
	rig := newLoopRig(t, &fakeRanger{d: 20})

	rig.loop.autoStep()

	if len(rig.grabs) != 0 {
		t.Fatalf("grab attempts: got %d, want 0", len(rig.grabs))
	}
	if rig.loop.lastDistance != 20 {
		t.Errorf("cached distance: got %.1f, want 20", rig.loop.lastDistance)
	}
}

func TestAutoStepNoGrabOnSensorFailure(t *testing.T) {
	rig := newLoopRig(t, &fakeRanger{err: ultrasonic.ErrAllInvalid})

	rig.loop.autoStep()

	if len(rig.grabs) != 0 {
		t.Fatalf("grab attempts: got %d, want 0", len(rig.grabs))
	}
	if rig.loop.lastDistance != -1 {
		t.Errorf("cached distance: got %.1f, want -1", rig.loop.lastDistance)
	}
}

func TestStopPreemptsGrabSequence(t *testing.T) {
	rig := newLoopRig(t, &fakeRanger{d: 10})

	// The loop's sleep only fires on the pauses between gripper stages
	// (and the cooldown, which a preempted grab skips). Raising STOP
	// during the pause after the gripper opens means the close stage and
	// everything after it must not run.
	rig.loop.sleep = func(time.Duration) {
		if err := rig.ap.Apply(Command{Kind: CmdStop}); err != nil {
			t.Errorf("Apply(STOP) failed: %v", err)
		}
	}

	rig.loop.autoStep()

	if len(rig.grabs) != 1 {
		t.Fatalf("grab attempts: got %d, want 1", len(rig.grabs))
	}
	g := rig.grabs[0]
	if g.Success {
		t.Error("preempted grab reported success")
	}
	if g.Err != "preempted" {
		t.Errorf("grab error: got %q, want \"preempted\"", g.Err)
	}

	// Frozen mid-sequence: gripper still open, shoulder still down.
	if got := jointAngle(t, rig.ap.Arm, arm.JointGripper); got != 0 {
		t.Errorf("gripper: got %d, want 0 (open)", got)
	}
	if got := jointAngle(t, rig.ap.Arm, arm.JointShoulder); got != 45 {
		t.Errorf("shoulder: got %d, want 45", got)
	}
	if got := jointAngle(t, rig.ap.Arm, arm.JointElbow); got != 120 {
		t.Errorf("elbow: got %d, want 120", got)
	}
}

func TestPublishStatusSnapshotAndReset(t *testing.T) {
	rig := newLoopRig(t, &fakeRanger{d: 33.5})

	rig.loop.autoStep() // caches 33.5, no grab
	rig.loop.publishStatus()
	rig.loop.publishStatus() // no reading in between

	if len(rig.statuses) != 2 {
		t.Fatalf("statuses: got %d, want 2", len(rig.statuses))
	}

	first := rig.statuses[0]
	if first.Mode != "AUTO" {
		t.Errorf("mode: got %q, want AUTO", first.Mode)
	}
	if first.Distance != 33.5 {
		t.Errorf("distance: got %.1f, want 33.5", first.Distance)
	}
	if len(first.Servos) != 5 {
		t.Fatalf("servos: got %d entries, want 5", len(first.Servos))
	}
	for id, angle := range first.Servos {
		if angle != 90 {
			t.Errorf("servo %d: got %d, want 90", id, angle)
		}
	}
	if first.MotorSpeed != 0 {
		t.Errorf("motor speed: got %d, want 0", first.MotorSpeed)
	}

	// The cache is consumed by each emission.
	if second := rig.statuses[1]; second.Distance != -1 {
		t.Errorf("stale distance: got %.1f, want -1", second.Distance)
	}
}

func TestRunSkipsSamplingInManualMode(t *testing.T) {
	rig := newLoopRig(t, &fakeRanger{d: 5})
	rig.ap.State.SetMode(ModeManual)

	// Let the loop complete exactly one iteration.
	rig.loop.sleep = func(time.Duration) { rig.ap.State.Shutdown() }

	rig.loop.Run()

	if rig.ranger.calls != 0 {
		t.Errorf("sensor sampled %d times in MANUAL mode, want 0", rig.ranger.calls)
	}
	if len(rig.grabs) != 0 {
		t.Errorf("grab attempts: got %d, want 0", len(rig.grabs))
	}
}

func TestRunDisablesOutputsOnExit(t *testing.T) {
	rig := newLoopRig(t, &fakeRanger{d: 100})

	rig.ap.State.SetMode(ModeManual)
	if err := rig.ap.Apply(Command{Kind: CmdSetMotor, Speed: 40}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	rig.loop.sleep = func(time.Duration) { rig.ap.State.Shutdown() }
	rig.loop.Run()

	if got := rig.ap.Motor.Speed(); got != 0 {
		t.Errorf("motor speed after exit: got %d, want 0", got)
	}
}
