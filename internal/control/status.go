package control

// Status is the periodic snapshot published on the status topic and
// consumed by the console and web subscribers.
type Status struct {
	Mode string `json:"mode"`
	// Distance is the latest valid averaged reading in cm, or -1 when
	// there was no valid reading this cycle.
	Distance   float32 `json:"distance"`
	Servos     []int   `json:"servos"`
	MotorSpeed int     `json:"motor_speed"`
}

// Grab summarizes one autonomous grab attempt for the operation log.
type Grab struct {
	DistanceCM float32
	Success    bool
	DurationMS int64
	Err        string
}
