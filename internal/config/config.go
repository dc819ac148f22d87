package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker             string
	MQTTClientIDController string
	MQTTClientIDConsole    string
	MQTTClientIDWeb        string

	// Topics
	TopicControl string
	TopicStatus  string
	TopicData    string

	// Servo pins (BCM numbering), one per joint:
	// base, shoulder, elbow, wrist, gripper.
	ServoBasePin     int
	ServoShoulderPin int
	ServoElbowPin    int
	ServoWristPin    int
	ServoGripperPin  int

	// Ultrasonic sensor pins
	UltrasonicTrigPin int
	UltrasonicEchoPin int

	// Motor driver pins
	MotorPWMPin  int
	MotorDir1Pin int
	MotorDir2Pin int

	// Ranging
	UltrasonicMaxDistance float64 // cm
	GrabDistanceCM        float64 // grab sequence trigger threshold
	EchoTimeoutMS         int
	SampleGapMS           int // delay between averaged samples

	// Actuation timing
	ServoSettleMS  int // pause after each servo write
	SmoothStepMS   int // per-step delay during interpolated moves
	GrabPauseMS    int // pause around gripper open/close
	GrabCooldownMS int // re-arm delay after a completed grab

	// Control loop
	LoopTickMS       int
	StatusIntervalMS int

	// Web Server
	WebServerPort int

	// Operation log
	OplogPath string

	// Vision tracking (reserved for the camera backend; the controller
	// itself never consumes these).
	CameraWidth         int
	CameraHeight        int
	DetectionConfidence float64
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported (lowercase) so other packages cannot access it directly.
//     This enforces encapsulation and prevents external code from modifying config without proper locking.
//     Has package-level scope (visible to all functions in this package, persists for program lifetime).
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock (Lock) for initialization,
//     read lock (RLock) for Get() allows multiple concurrent readers without blocking each other.
//
// External code must use InitGlobal() to set and Get() to read, ensuring thread safety.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{}
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func intValue(key, value string, dst *int) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

func floatValue(key, value string, dst *float64) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CONTROLLER":
		c.MQTTClientIDController = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_CONTROL":
		c.TopicControl = value
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "TOPIC_DATA":
		c.TopicData = value

	// Servo pins
	case "SERVO_BASE_PIN":
		return intValue(key, value, &c.ServoBasePin)
	case "SERVO_SHOULDER_PIN":
		return intValue(key, value, &c.ServoShoulderPin)
	case "SERVO_ELBOW_PIN":
		return intValue(key, value, &c.ServoElbowPin)
	case "SERVO_WRIST_PIN":
		return intValue(key, value, &c.ServoWristPin)
	case "SERVO_GRIPPER_PIN":
		return intValue(key, value, &c.ServoGripperPin)

	// Ultrasonic sensor
	case "ULTRASONIC_TRIG_PIN":
		return intValue(key, value, &c.UltrasonicTrigPin)
	case "ULTRASONIC_ECHO_PIN":
		return intValue(key, value, &c.UltrasonicEchoPin)
	case "ULTRASONIC_MAX_DISTANCE":
		return floatValue(key, value, &c.UltrasonicMaxDistance)
	case "GRAB_DISTANCE_CM":
		return floatValue(key, value, &c.GrabDistanceCM)
	case "ECHO_TIMEOUT_MS":
		return intValue(key, value, &c.EchoTimeoutMS)
	case "SAMPLE_GAP_MS":
		return intValue(key, value, &c.SampleGapMS)

	// Motor driver
	case "MOTOR_PWM_PIN":
		return intValue(key, value, &c.MotorPWMPin)
	case "MOTOR_DIR1_PIN":
		return intValue(key, value, &c.MotorDir1Pin)
	case "MOTOR_DIR2_PIN":
		return intValue(key, value, &c.MotorDir2Pin)

	// Actuation timing
	case "SERVO_SETTLE_MS":
		return intValue(key, value, &c.ServoSettleMS)
	case "SMOOTH_STEP_MS":
		return intValue(key, value, &c.SmoothStepMS)
	case "GRAB_PAUSE_MS":
		return intValue(key, value, &c.GrabPauseMS)
	case "GRAB_COOLDOWN_MS":
		return intValue(key, value, &c.GrabCooldownMS)

	// Control loop
	case "LOOP_TICK_MS":
		return intValue(key, value, &c.LoopTickMS)
	case "STATUS_INTERVAL_MS":
		return intValue(key, value, &c.StatusIntervalMS)

	// Web server
	case "WEB_SERVER_PORT":
		return intValue(key, value, &c.WebServerPort)

	// Operation log
	case "OPLOG_PATH":
		c.OplogPath = value

	// Vision tracking
	case "CAMERA_WIDTH":
		return intValue(key, value, &c.CameraWidth)
	case "CAMERA_HEIGHT":
		return intValue(key, value, &c.CameraHeight)
	case "DETECTION_CONFIDENCE":
		return floatValue(key, value, &c.DetectionConfidence)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicControl == "" {
		return fmt.Errorf("TOPIC_CONTROL is required")
	}
	if c.TopicStatus == "" {
		return fmt.Errorf("TOPIC_STATUS is required")
	}
	for _, p := range []struct {
		key string
		val int
	}{
		{"SERVO_BASE_PIN", c.ServoBasePin},
		{"SERVO_SHOULDER_PIN", c.ServoShoulderPin},
		{"SERVO_ELBOW_PIN", c.ServoElbowPin},
		{"SERVO_WRIST_PIN", c.ServoWristPin},
		{"SERVO_GRIPPER_PIN", c.ServoGripperPin},
		{"ULTRASONIC_TRIG_PIN", c.UltrasonicTrigPin},
		{"ULTRASONIC_ECHO_PIN", c.UltrasonicEchoPin},
		{"MOTOR_PWM_PIN", c.MotorPWMPin},
		{"MOTOR_DIR1_PIN", c.MotorDir1Pin},
		{"MOTOR_DIR2_PIN", c.MotorDir2Pin},
	} {
		if p.val == 0 {
			return fmt.Errorf("%s is required", p.key)
		}
	}
	if c.UltrasonicMaxDistance <= 0 {
		return fmt.Errorf("ULTRASONIC_MAX_DISTANCE must be positive")
	}
	if c.GrabDistanceCM <= 0 {
		return fmt.Errorf("GRAB_DISTANCE_CM must be positive")
	}
	if c.StatusIntervalMS == 0 {
		return fmt.Errorf("STATUS_INTERVAL_MS is required")
	}
	if c.LoopTickMS == 0 {
		return fmt.Errorf("LOOP_TICK_MS is required")
	}
	return nil
}

// ServoPins returns the servo GPIO pins in joint order:
// base, shoulder, elbow, wrist, gripper.
func (c *Config) ServoPins() []int {
	return []int{
		c.ServoBasePin,
		c.ServoShoulderPin,
		c.ServoElbowPin,
		c.ServoWristPin,
		c.ServoGripperPin,
	}
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// Acquires write lock (configMu.Lock) during initialization to prevent concurrent access.
// This is the only function that can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
// Uses read lock (configMu.RLock) to allow multiple concurrent readers without blocking.
// This is thread-safe and efficient for concurrent access across goroutines.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
