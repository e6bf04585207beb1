package types

// ------------------------
// Servo calibration
// ------------------------

// CalibrationMode selects the startup sweep.
type CalibrationMode uint8

const (
	CalibrationLong  CalibrationMode = iota // extremes, then both insets, each ending at zero
	CalibrationShort                        // single move to the zero-degree duty
	CalibrationNone
)

func (m CalibrationMode) String() string {
	switch m {
	case CalibrationShort:
		return "short"
	case CalibrationNone:
		return "none"
	default:
		return "long"
	}
}

func (m CalibrationMode) MarshalJSON() ([]byte, error) { return []byte(`"` + m.String() + `"`), nil }

// Calibration holds the empirically measured duty constants for one servo.
// Duty values are microseconds of on-time within the PWM period.
type Calibration struct {
	ZeroDegreeDuty uint16          `json:"zero_degree_duty"` // duty at 0 deg
	DegreeStep     uint16          `json:"degree_step"`      // duty per degree
	MinDuty        uint16          `json:"min_duty"`         // lower mechanical extreme
	MaxDuty        uint16          `json:"max_duty"`         // upper mechanical extreme
	FirstOffset    uint16          `json:"first_offset"`     // inset of the second sweep cycle
	SecondOffset   uint16          `json:"second_offset"`    // inset of the third sweep cycle
	SettleMs       uint32          `json:"settle_ms"`        // pause after each sweep step
	Mode           CalibrationMode `json:"mode"`
}

// ------------------------
// Servo service
// ------------------------

type ServoConfig struct {
	Calibration Calibration `json:"calibration"`

	PWMPeriodUs    uint32 `json:"pwm_period_us"`    // actuation period (20 ms for hobby servos)
	TickIntervalMs uint32 `json:"tick_interval_ms"` // periodic dispatcher interval
	TickSettleMs   uint32 `json:"tick_settle_ms"`   // pause at the end of every tick
	LoopIntervalMs uint32 `json:"loop_interval_ms"` // main loop pacing; 0 yields only
	MaxMessage     int    `json:"max_message"`      // mailbox allocation budget in bytes

	WatchdogTimeoutMs uint32 `json:"watchdog_timeout_ms"` // 0 disables the watchdog
}

// DefaultServoConfig returns the constants measured on the SG90 bench rig.
func DefaultServoConfig() ServoConfig {
	return ServoConfig{
		Calibration: Calibration{
			ZeroDegreeDuty: 1750,
			DegreeStep:     11,
			MinDuty:        730,
			MaxDuty:        2750,
			FirstOffset:    500,
			SecondOffset:   200,
			SettleMs:       250,
			Mode:           CalibrationLong,
		},
		PWMPeriodUs:       20_000,
		TickIntervalMs:    250,
		TickSettleMs:      10,
		LoopIntervalMs:    20,
		MaxMessage:        100,
		WatchdogTimeoutMs: 2_000,
	}
}

// Status is one snapshot reported on the serial link.
type Status struct {
	Ticks   uint32 `json:"ticks"`
	Size    int    `json:"size"`    // current mailbox buffer size, 0 when empty
	Angle   uint8  `json:"angle"`   // committed angle
	Pending uint8  `json:"pending"` // in-progress accumulator
	Duty    uint16 `json:"duty"`    // current PWM duty
}
