package control

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/ficrammanifur/smart-robotic-arm/internal/arm"
	"github.com/ficrammanifur/smart-robotic-arm/internal/motor"
)

// Kind tags a parsed command.
type Kind int

const (
	CmdSetMode Kind = iota
	CmdSetServo
	CmdSetMotor
	CmdStop
	CmdHome
)

// Command is one parsed control message. Commands are transient: parsed,
// applied, and discarded.
type Command struct {
	Kind  Kind
	Mode  Mode // CmdSetMode
	Joint int  // CmdSetServo
	Angle int  // CmdSetServo
	Speed int  // CmdSetMotor
}

// ErrBadCommand wraps all parse failures.
var ErrBadCommand = errors.New("control: bad command")

// Parse parses one whitespace-delimited control message:
//
//	MODE AUTO|MANUAL
//	SERVO <id> <angle 0-180>
//	MOTOR <speed -100..100>
//	STOP
//	HOME
//
// Out-of-range arguments are rejected here, at the validation boundary,
// rather than clamped: clamping would mask caller bugs.
func Parse(msg string) (Command, error) {
	tokens := strings.Fields(msg)
	if len(tokens) == 0 {
		return Command{}, fmt.Errorf("empty message: %w", ErrBadCommand)
	}

	argc := func(n int) error {
		if len(tokens) != n {
			return fmt.Errorf("%s takes %d arguments: %w", tokens[0], n-1, ErrBadCommand)
		}
		return nil
	}

	switch tokens[0] {
	case "MODE":
		if err := argc(2); err != nil {
			return Command{}, err
		}
		mode, err := ParseMode(tokens[1])
		if err != nil {
			return Command{}, fmt.Errorf("%v: %w", err, ErrBadCommand)
		}
		return Command{Kind: CmdSetMode, Mode: mode}, nil

	case "SERVO":
		if err := argc(3); err != nil {
			return Command{}, err
		}
		id, err := strconv.Atoi(tokens[1])
		if err != nil {
			return Command{}, fmt.Errorf("servo id %q: %w", tokens[1], ErrBadCommand)
		}
		angle, err := strconv.Atoi(tokens[2])
		if err != nil {
			return Command{}, fmt.Errorf("servo angle %q: %w", tokens[2], ErrBadCommand)
		}
		if id < 0 {
			return Command{}, fmt.Errorf("servo id %d: %w", id, ErrBadCommand)
		}
		if angle < 0 || angle > 180 {
			return Command{}, fmt.Errorf("servo angle %d: %w", angle, ErrBadCommand)
		}
		return Command{Kind: CmdSetServo, Joint: id, Angle: angle}, nil

	case "MOTOR":
		if err := argc(2); err != nil {
			return Command{}, err
		}
		speed, err := strconv.Atoi(tokens[1])
		if err != nil {
			return Command{}, fmt.Errorf("motor speed %q: %w", tokens[1], ErrBadCommand)
		}
		if speed < motor.MinSpeed || speed > motor.MaxSpeed {
			return Command{}, fmt.Errorf("motor speed %d: %w", speed, ErrBadCommand)
		}
		return Command{Kind: CmdSetMotor, Speed: speed}, nil

	case "STOP":
		if err := argc(1); err != nil {
			return Command{}, err
		}
		return Command{Kind: CmdStop}, nil

	case "HOME":
		if err := argc(1); err != nil {
			return Command{}, err
		}
		return Command{Kind: CmdHome}, nil
	}

	return Command{}, fmt.Errorf("unknown command %q: %w", tokens[0], ErrBadCommand)
}

// Applier applies inbound commands against the shared state and the
// controllers. It runs on the command intake goroutine, concurrently with
// the control loop.
type Applier struct {
	State *State
	Arm   *arm.Arm
	Motor *motor.Motor
}

// HandleMessage parses and applies one inbound message. Malformed or
// failing commands are logged and dropped; no acknowledgment is sent.
func (ap *Applier) HandleMessage(msg string) {
	cmd, err := Parse(msg)
	if err != nil {
		log.Printf("control: dropping message %q: %v", msg, err)
		return
	}
	if err := ap.Apply(cmd); err != nil {
		log.Printf("control: command %q failed: %v", msg, err)
	}
}

// Apply executes one command under the arbitration rules: mode changes,
// STOP, and HOME are always honored; direct servo/motor control only in
// MANUAL mode.
func (ap *Applier) Apply(cmd Command) error {
	switch cmd.Kind {
	case CmdSetMode:
		ap.State.SetMode(cmd.Mode)
		log.Printf("control: switched to %s mode", cmd.Mode)
		return nil

	case CmdSetServo:
		if ap.State.Mode() != ModeManual {
			log.Printf("control: ignoring SERVO %d %d in %s mode",
				cmd.Joint, cmd.Angle, ap.State.Mode())
			return nil
		}
		if err := ap.Arm.SetAngle(cmd.Joint, cmd.Angle); err != nil {
			return err
		}
		log.Printf("control: manual servo %d -> %d", cmd.Joint, cmd.Angle)
		return nil

	case CmdSetMotor:
		if ap.State.Mode() != ModeManual {
			log.Printf("control: ignoring MOTOR %d in %s mode",
				cmd.Speed, ap.State.Mode())
			return nil
		}
		if err := ap.Motor.SetSpeed(cmd.Speed); err != nil {
			return err
		}
		log.Printf("control: manual motor -> %d", cmd.Speed)
		return nil

	case CmdStop:
		// Raise the halt signal first so an in-flight grab sequence
		// aborts at its next interpolation step, then silence outputs.
		ap.State.RaiseHalt()
		err := ap.Motor.Stop()
		ap.Arm.EmergencyStop()
		log.Println("control: emergency stop")
		return err

	case CmdHome:
		log.Println("control: moving to home position")
		return ap.Arm.Home()
	}

	return fmt.Errorf("unhandled command kind %d: %w", cmd.Kind, ErrBadCommand)
}
