package servo

import (
	"time"

	"servocontrol-go/errcode"
	"servocontrol-go/services/servo/internal/halcore"
	"servocontrol-go/types"
	"servocontrol-go/x/mathx"
	"servocontrol-go/x/timex"
)

// MaxAngle is the largest commandable angle in degrees.
const MaxAngle = 180

// midAngle is where the mapping folds back. It belongs to the ascending branch.
const midAngle = 90

// Mapper converts validated angles to duty values using calibrated constants.
type Mapper struct {
	cal types.Calibration
}

// NewMapper validates the calibration. Both branches must stay inside
// [MinDuty, MaxDuty] over their whole range.
func NewMapper(cal types.Calibration) (*Mapper, error) {
	const op = "servo.NewMapper"
	switch {
	case cal.DegreeStep == 0:
		return nil, errcode.Invalid(op, "degree_step")
	case cal.MinDuty == 0 || cal.MinDuty >= cal.MaxDuty:
		return nil, errcode.Invalid(op, "min_duty")
	case !mathx.Between(cal.ZeroDegreeDuty, cal.MinDuty, cal.MaxDuty):
		return nil, errcode.Invalid(op, "zero_degree_duty")
	case uint32(cal.ZeroDegreeDuty)+midAngle*uint32(cal.DegreeStep) > uint32(cal.MaxDuty):
		return nil, errcode.Invalid(op, "max_duty")
	case uint32(cal.ZeroDegreeDuty) < (MaxAngle-midAngle)*uint32(cal.DegreeStep)+uint32(cal.MinDuty):
		return nil, errcode.Invalid(op, "min_duty")
	case cal.FirstOffset >= cal.MaxDuty-cal.MinDuty || cal.SecondOffset >= cal.MaxDuty-cal.MinDuty:
		return nil, errcode.Invalid(op, "offset")
	}
	return &Mapper{cal: cal}, nil
}

// Calibration returns the constants in use.
func (m *Mapper) Calibration() types.Calibration { return m.cal }

// Duty maps angle (clamped to [0,180]) to a duty value.
//
//	[0,90]   ZeroDegreeDuty + angle*DegreeStep
//	[91,180] ZeroDegreeDuty - (angle-90)*DegreeStep
func (m *Mapper) Duty(angle uint8) uint16 {
	a := uint16(mathx.Min[uint8](angle, MaxAngle))
	if a <= midAngle {
		return m.cal.ZeroDegreeDuty + a*m.cal.DegreeStep
	}
	return mathx.SubSat(m.cal.ZeroDegreeDuty, (a-midAngle)*m.cal.DegreeStep)
}

// Sequence returns the duty values visited by the startup sweep.
func (m *Mapper) Sequence() []uint16 {
	c := m.cal
	switch c.Mode {
	case types.CalibrationNone:
		return nil
	case types.CalibrationShort:
		return []uint16{c.ZeroDegreeDuty}
	}
	return []uint16{
		c.MaxDuty, c.MinDuty, c.ZeroDegreeDuty,
		c.MaxDuty - c.FirstOffset, c.MinDuty + c.FirstOffset, c.ZeroDegreeDuty,
		c.MaxDuty - c.SecondOffset, c.MinDuty + c.SecondOffset, c.ZeroDegreeDuty,
	}
}

// Calibrate walks the sweep on out, pausing SettleMs after every step.
// It blocks the caller for the whole sweep.
func (m *Mapper) Calibrate(out halcore.PWMOut, sleep func(time.Duration)) {
	if sleep == nil {
		sleep = time.Sleep
	}
	settle := timex.Ms(m.cal.SettleMs)
	for _, d := range m.Sequence() {
		out.SetDuty(d)
		sleep(settle)
	}
}
