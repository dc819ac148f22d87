package app

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ficrammanifur/smart-robotic-arm/internal/arm"
	"github.com/ficrammanifur/smart-robotic-arm/internal/config"
	"github.com/ficrammanifur/smart-robotic-arm/internal/control"
	"github.com/ficrammanifur/smart-robotic-arm/internal/hal"
	"github.com/ficrammanifur/smart-robotic-arm/internal/motor"
	"github.com/ficrammanifur/smart-robotic-arm/internal/oplog"
	"github.com/ficrammanifur/smart-robotic-arm/internal/ultrasonic"
)

func msDur(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// RunController wires the hardware, the MQTT command intake, and the
// control loop, and blocks until shutdown. Hardware initialization
// failures are fatal: the error propagates up before the loop starts.
func RunController() error {
	log.Println("controller: starting smart robotic arm")

	cfg := config.Get()

	// --- Hardware ---
	be, err := hal.NewPeriph()
	if err != nil {
		return err
	}
	defer be.Close()

	robotArm, err := arm.New(be, cfg.ServoPins(), arm.Params{
		SettleDelay: msDur(cfg.ServoSettleMS),
		StepDelay:   msDur(cfg.SmoothStepMS),
	})
	if err != nil {
		return err
	}
	log.Printf("controller: %d servos initialized at home position", robotArm.JointCount())

	sensor, err := ultrasonic.New(be, ultrasonic.Params{
		TrigPin:       cfg.UltrasonicTrigPin,
		EchoPin:       cfg.UltrasonicEchoPin,
		MaxDistanceCM: float32(cfg.UltrasonicMaxDistance),
		EchoTimeout:   msDur(cfg.EchoTimeoutMS),
		SampleGap:     msDur(cfg.SampleGapMS),
	})
	if err != nil {
		return err
	}
	log.Println("controller: ultrasonic sensor initialized")

	driveMotor, err := motor.New(be, motor.Params{
		PWMPin:  cfg.MotorPWMPin,
		Dir1Pin: cfg.MotorDir1Pin,
		Dir2Pin: cfg.MotorDir2Pin,
	})
	if err != nil {
		return err
	}
	log.Println("controller: motor driver initialized")

	// Operation log is best-effort: a broken data directory should not
	// keep the arm from running.
	var logger *oplog.Logger
	if cfg.OplogPath != "" {
		logger, err = oplog.New(cfg.OplogPath)
		if err != nil {
			log.Printf("controller: operation log disabled: %v", err)
			logger = nil
		}
	}

	// --- Shared control context + command intake over MQTT ---
	st := control.NewState()
	applier := &control.Applier{State: st, Arm: robotArm, Motor: driveMotor}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDController)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("controller: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicControl, 0, func(_ mqtt.Client, msg mqtt.Message) {
		applier.HandleMessage(string(msg.Payload()))
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("controller: subscribed to %s", cfg.TopicControl)

	// --- Control loop ---
	loop := control.NewLoop(control.LoopConfig{
		State:  st,
		Arm:    robotArm,
		Motor:  driveMotor,
		Sensor: sensor,

		GrabThresholdCM: float32(cfg.GrabDistanceCM),
		Tick:            msDur(cfg.LoopTickMS),
		StatusInterval:  msDur(cfg.StatusIntervalMS),
		GrabPause:       msDur(cfg.GrabPauseMS),
		GrabCooldown:    msDur(cfg.GrabCooldownMS),

		Publish: func(s control.Status) {
			payload, err := json.Marshal(s)
			if err != nil {
				log.Printf("controller: status marshal error: %v", err)
				return
			}
			if tk := client.Publish(cfg.TopicStatus, 0, true, payload); tk.Wait() && tk.Error() != nil {
				log.Printf("controller: status publish error: %v", tk.Error())
			}
		},

		OnGrab: func(g control.Grab) {
			if logger != nil {
				err := logger.Append(oplog.Entry{
					Mode:         st.Mode().String(),
					GrabSuccess:  g.Success,
					DistanceCM:   float64(g.DistanceCM),
					Servos:       robotArm.Angles(),
					MotorSpeed:   driveMotor.Speed(),
					ExecutionMS:  g.DurationMS,
					ErrorMessage: g.Err,
				})
				if err != nil {
					log.Printf("controller: operation log error: %v", err)
				}
			}
			if cfg.TopicData != "" {
				event := struct {
					Type       string  `json:"type"`
					DistanceCM float32 `json:"distance_cm"`
					Success    bool    `json:"success"`
					DurationMS int64   `json:"duration_ms"`
					Error      string  `json:"error,omitempty"`
				}{"grab", g.DistanceCM, g.Success, g.DurationMS, g.Err}

				if payload, err := json.Marshal(event); err != nil {
					log.Printf("controller: grab event marshal error: %v", err)
				} else {
					client.Publish(cfg.TopicData, 0, false, payload)
				}
			}
		},
	})

	// Signal-driven shutdown: flip the running flag and raise the halt
	// signal so any in-flight move stops at its next step.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("controller: received signal %v, shutting down", sig)
		st.Shutdown()
		st.RaiseHalt()
	}()

	log.Printf("controller: running in %s mode", st.Mode())
	loop.Run()

	log.Println("controller: shutdown complete")
	return nil
}
