package control

import (
	"errors"
	"log"
	"time"

	"github.com/ficrammanifur/smart-robotic-arm/internal/arm"
	"github.com/ficrammanifur/smart-robotic-arm/internal/motor"
)

// Ranger is the distance sensor capability the loop consumes.
type Ranger interface {
	Average(n int) (float32, error)
}

// LoopConfig wires a Loop. Publish and OnGrab are optional sinks.
type LoopConfig struct {
	State  *State
	Arm    *arm.Arm
	Motor  *motor.Motor
	Sensor Ranger

	Publish func(Status) // called once per status interval
	OnGrab  func(Grab)   // called after each grab attempt

	GrabThresholdCM float32       // default 20
	Tick            time.Duration // default 100ms
	StatusInterval  time.Duration // default 1s
	GrabPause       time.Duration // default 500ms
	GrabCooldown    time.Duration // default 3s
}

// Loop is the orchestrator: it samples the sensor in AUTO mode, runs the
// grab sequence on proximity detection, and emits periodic status
// regardless of mode. It runs on its own goroutine, concurrently with the
// command intake.
type Loop struct {
	st     *State
	arm    *arm.Arm
	motor  *motor.Motor
	sensor Ranger

	publish func(Status)
	onGrab  func(Grab)

	threshold      float32
	tick           time.Duration
	statusInterval time.Duration
	grabPause      time.Duration
	cooldown       time.Duration

	// Latest valid reading since the last status emission; -1 when none.
	lastDistance float32

	now   func() time.Time
	sleep func(time.Duration)
}

// NewLoop builds the loop and installs the shared halt/shutdown signal as
// the arm's move preemption check, so a STOP or shutdown interrupts an
// interpolated move within one step delay.
func NewLoop(c LoopConfig) *Loop {
	if c.GrabThresholdCM == 0 {
		c.GrabThresholdCM = 20
	}
	if c.Tick == 0 {
		c.Tick = 100 * time.Millisecond
	}
	if c.StatusInterval == 0 {
		c.StatusInterval = time.Second
	}
	if c.GrabPause == 0 {
		c.GrabPause = 500 * time.Millisecond
	}
	if c.GrabCooldown == 0 {
		c.GrabCooldown = 3 * time.Second
	}

	l := &Loop{
		st:             c.State,
		arm:            c.Arm,
		motor:          c.Motor,
		sensor:         c.Sensor,
		publish:        c.Publish,
		onGrab:         c.OnGrab,
		threshold:      c.GrabThresholdCM,
		tick:           c.Tick,
		statusInterval: c.StatusInterval,
		grabPause:      c.GrabPause,
		cooldown:       c.GrabCooldown,
		lastDistance:   -1,
		now:            time.Now,
		sleep:          time.Sleep,
	}
	l.arm.SetHaltFunc(func() bool {
		return l.st.Halted() || !l.st.Running()
	})
	return l
}

// Run executes the control loop until the shared running flag goes false,
// then disables all outputs. The output shutdown happens on every exit
// path, whatever caused the stop.
func (l *Loop) Run() {
	log.Println("control: loop started")
	lastStatus := l.now()

	for l.st.Running() {
		if l.st.Mode() == ModeAuto {
			l.autoStep()
		}

		if l.now().Sub(lastStatus) >= l.statusInterval {
			l.publishStatus()
			lastStatus = l.now()
		}

		l.sleep(l.tick)
	}

	l.arm.EmergencyStop()
	if err := l.motor.Stop(); err != nil {
		log.Printf("control: motor stop on shutdown: %v", err)
	}
	log.Println("control: loop stopped, outputs disabled")
}

// autoStep performs one autonomous detection cycle: average three
// samples, and run the grab sequence when a valid reading falls strictly
// below the threshold. Sensor failures count as "no object detected".
func (l *Loop) autoStep() {
	distance, err := l.sensor.Average(3)
	if err != nil {
		return
	}
	l.lastDistance = distance

	if distance >= l.threshold {
		return
	}
	l.runGrab(distance)
}

func (l *Loop) runGrab(distance float32) {
	log.Printf("control: object at %.1f cm, executing grab sequence", distance)

	// Re-arm the preemption signal for this sequence.
	l.st.ClearHalt()

	start := l.now()
	err := l.grabSequence()
	result := Grab{
		DistanceCM: distance,
		Success:    err == nil,
		DurationMS: l.now().Sub(start).Milliseconds(),
	}

	switch {
	case errors.Is(err, arm.ErrHalted):
		result.Err = "preempted"
		log.Println("control: grab sequence preempted")
	case err != nil:
		result.Err = err.Error()
		log.Printf("control: grab sequence failed: %v", err)
	default:
		log.Println("control: grab sequence completed")
	}

	if l.onGrab != nil {
		l.onGrab(result)
	}

	// Cooldown before re-arming detection, only after a completed grab.
	if err == nil {
		l.sleep(l.cooldown)
	}
}

// grabSequence runs the fixed choreography as discrete stages with the
// halt signal checked between them, so a STOP lands within one
// interpolation step's delay rather than after the whole sequence.
func (l *Loop) grabSequence() error {
	stages := []struct {
		joint, target, steps int
		pauseAfter           time.Duration
	}{
		{arm.JointShoulder, 45, 5, 0},           // shoulder down to pick angle
		{arm.JointElbow, 120, 5, 0},             // elbow extend
		{arm.JointGripper, 0, 3, l.grabPause},   // open gripper
		{arm.JointGripper, 180, 3, l.grabPause}, // close gripper
		{arm.JointShoulder, 90, 5, 0},           // shoulder up
		{arm.JointElbow, 90, 5, 0},              // elbow retract
	}

	for _, sg := range stages {
		if l.st.Halted() || !l.st.Running() {
			return arm.ErrHalted
		}
		if err := l.arm.SmoothMove(sg.joint, sg.target, sg.steps); err != nil {
			return err
		}
		if sg.pauseAfter > 0 {
			l.sleep(sg.pauseAfter)
		}
	}
	return nil
}

// publishStatus emits the periodic snapshot and resets the distance cache
// so the next emission reports -1 unless a newer valid reading arrives.
func (l *Loop) publishStatus() {
	s := Status{
		Mode:       l.st.Mode().String(),
		Distance:   l.lastDistance,
		Servos:     l.arm.Angles(),
		MotorSpeed: l.motor.Speed(),
	}
	l.lastDistance = -1

	if l.publish != nil {
		l.publish(s)
	}
}
