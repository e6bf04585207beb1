// services/servo/internal/halcore/types.go
package halcore

import "context"

// ---------------- UART abstractions ----------------

// UARTPort is the serial collaborator. RX is interrupt-driven on the
// platform side; the core only sees the readable edge and buffered bytes.
type UARTPort interface {
	// TX. WriteByte blocks until the byte has been accepted by the transmitter.
	WriteByte(b byte) error
	Write(p []byte) (int, error)

	// RX
	Buffered() int
	Read(p []byte) (int, error)
	Readable() <-chan struct{}
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
}

// ---------------- PWM abstractions ----------------

// PWMOut is the actuation collaborator. The platform owns the period and
// pin configuration; the core only writes the duty register.
type PWMOut interface {
	SetDuty(duty uint16)
	Duty() uint16
}

// ---------------- GPIO abstractions ----------------

// SignalLine is an observability output (LED or scope probe).
type SignalLine interface {
	Set(level bool)
	Get() bool
	Toggle()
}

// ---------------- Watchdog ----------------

// Watchdog is armed once and must be refreshed before its timeout.
type Watchdog interface {
	Start() error
	Update()
}

// NopLine is used when a board leaves a signal unassigned.
type NopLine struct{}

func (NopLine) Set(bool)  {}
func (NopLine) Get() bool { return false }
func (NopLine) Toggle()   {}

// NopWatchdog is used when the watchdog is disabled.
type NopWatchdog struct{}

func (NopWatchdog) Start() error { return nil }
func (NopWatchdog) Update()      {}
