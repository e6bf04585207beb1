package servo

import (
	"servocontrol-go/types"
	"servocontrol-go/x/conv"
)

// StatusTrailer ends every status line.
const StatusTrailer = "\n\r\r"

// AppendStatus appends the human-readable status line for s to dst:
//
//	Program counter [TICK]: <n> ticks size: <n> [Servo rotation: <n> deg. [temp val: <n>]| PWM: <n> ms]
//
// followed by StatusTrailer.
func AppendStatus(dst []byte, s types.Status) []byte {
	dst = append(dst, "Program counter [TICK]: "...)
	dst = conv.AppendUint(dst, uint64(s.Ticks))
	dst = append(dst, " ticks size: "...)
	dst = conv.AppendInt(dst, int64(s.Size))
	dst = append(dst, " [Servo rotation: "...)
	dst = conv.AppendUint(dst, uint64(s.Angle))
	dst = append(dst, " deg. [temp val: "...)
	dst = conv.AppendUint(dst, uint64(s.Pending))
	dst = append(dst, "]| PWM: "...)
	dst = conv.AppendUint(dst, uint64(s.Duty))
	dst = append(dst, " ms]"...)
	return append(dst, StatusTrailer...)
}
