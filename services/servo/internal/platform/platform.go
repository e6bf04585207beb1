package platform

import (
	"servocontrol-go/services/servo/internal/halcore"
)

// Board bundles the collaborators the servo core drives. Platform code owns
// their configuration (clocks, pin muxing, PWM period, baud); the core only
// uses the halcore contracts.
type Board struct {
	Serial halcore.UARTPort
	PWM    halcore.PWMOut

	TickLine  halcore.SignalLine
	TxLine    halcore.SignalLine
	AllocLine halcore.SignalLine

	Watchdog halcore.Watchdog

	// UseArena asks the core to serve messages from a static arena instead
	// of the heap.
	UseArena bool

	closers []func()
}

// Close releases platform resources (stdin pumps, monitors).
func (b *Board) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

func (b *Board) onClose(f func()) { b.closers = append(b.closers, f) }

// fill replaces unassigned collaborators with no-ops.
func (b *Board) fill() {
	if b.TickLine == nil {
		b.TickLine = halcore.NopLine{}
	}
	if b.TxLine == nil {
		b.TxLine = halcore.NopLine{}
	}
	if b.AllocLine == nil {
		b.AllocLine = halcore.NopLine{}
	}
	if b.Watchdog == nil {
		b.Watchdog = halcore.NopWatchdog{}
	}
}
