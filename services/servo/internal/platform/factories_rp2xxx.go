// services/servo/internal/platform/factories_rp2xxx.go
//go:build rp2040 || rp2350

package platform

import (
	"context"
	"machine"
	"sync/atomic"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers/servo"

	"servocontrol-go/errcode"
	"servocontrol-go/services/servo/internal/halcore"
	"servocontrol-go/services/servo/internal/platform/setups"
	"servocontrol-go/types"
	"servocontrol-go/x/timex"
)

// servoHz is the fixed frame rate drivers/servo programs.
const servoHz = 50

// DefaultBoard configures the UART, servo PWM, signal pins and watchdog
// named by plan on a Raspberry Pi Pico / Pico 2.
func DefaultBoard(ctx context.Context, plan setups.ResourcePlan, cfg types.ServoConfig) (*Board, error) {
	u, err := openUART(plan.UART)
	if err != nil {
		return nil, err
	}
	pwm, err := openServo(plan.PWMPin, cfg)
	if err != nil {
		return nil, err
	}
	b := &Board{
		Serial:    &rp2SerialPort{u: u},
		PWM:       pwm,
		TickLine:  outputLine(plan.TickLine),
		TxLine:    outputLine(plan.TxLine),
		AllocLine: outputLine(plan.AllocLine),
		UseArena:  true,
	}
	if cfg.WatchdogTimeoutMs > 0 {
		wd := &rp2Watchdog{timeoutMs: cfg.WatchdogTimeoutMs}
		b.Watchdog = wd
	}
	b.fill()
	println("[platform] rp2 board,", plan.UART.ID, "baud", plan.UART.Baud, "servo pin", plan.PWMPin)
	return b, nil
}

// -----------------------------------------------------------------------------
// UART
// -----------------------------------------------------------------------------

func openUART(p setups.UARTPlan) (*uartx.UART, error) {
	id := p.ID
	if id == "" {
		id = "uart0"
	}
	var hw *uartx.UART
	switch id {
	case "uart0":
		hw = uartx.UART0
	case "uart1":
		hw = uartx.UART1
	default:
		return nil, &errcode.E{C: errcode.UnknownBus, Op: "platform.openUART", Msg: id}
	}
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: p.Baud,
		TX:       machine.Pin(p.TX),
		RX:       machine.Pin(p.RX),
	}); err != nil {
		return nil, &errcode.E{C: errcode.MapDriverErr(err), Op: "platform.openUART", Msg: id, Err: err}
	}
	return hw, nil
}

// rp2SerialPort adapts uartx to halcore.UARTPort.
type rp2SerialPort struct{ u *uartx.UART }

func (p *rp2SerialPort) WriteByte(b byte) error      { return p.u.WriteByte(b) }
func (p *rp2SerialPort) Write(b []byte) (int, error) { return p.u.Write(b) }
func (p *rp2SerialPort) Buffered() int               { return p.u.Buffered() }
func (p *rp2SerialPort) Read(b []byte) (int, error)  { return p.u.Read(b) }
func (p *rp2SerialPort) Readable() <-chan struct{}   { return p.u.Readable() }
func (p *rp2SerialPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	return p.u.RecvSomeContext(ctx, buf)
}

// -----------------------------------------------------------------------------
// Servo PWM
// -----------------------------------------------------------------------------

// Select controller handle for a given slice number (0..7).
func pwmGroupBySlice(slice uint8) servo.PWM {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

// rp2Servo writes duty values as pulse widths in microseconds.
type rp2Servo struct {
	s    servo.Servo
	duty atomic.Uint32
}

func openServo(pin int, cfg types.ServoConfig) (*rp2Servo, error) {
	const op = "platform.openServo"
	if timex.Us(cfg.PWMPeriodUs) != time.Duration(timex.PeriodFromHz(servoHz)) {
		return nil, &errcode.E{C: errcode.Unsupported, Op: op, Msg: "pwm_period_us must be 20000"}
	}
	p := machine.Pin(pin)
	slice, err := machine.PWMPeripheral(p)
	if err != nil {
		return nil, &errcode.E{C: errcode.UnknownPin, Op: op, Err: err}
	}
	s, err := servo.New(pwmGroupBySlice(slice), p)
	if err != nil {
		return nil, &errcode.E{C: errcode.MapDriverErr(err), Op: op, Err: err}
	}
	return &rp2Servo{s: s}, nil
}

func (r *rp2Servo) SetDuty(d uint16) {
	r.s.SetMicroseconds(int16(d))
	r.duty.Store(uint32(d))
}

func (r *rp2Servo) Duty() uint16 { return uint16(r.duty.Load()) }

// -----------------------------------------------------------------------------
// Signal lines
// -----------------------------------------------------------------------------

type rp2Line struct{ p machine.Pin }

func outputLine(n int) halcore.SignalLine {
	if n < 0 {
		return halcore.NopLine{}
	}
	p := machine.Pin(n)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Low()
	return &rp2Line{p: p}
}

func (l *rp2Line) Set(v bool) { l.p.Set(v) }
func (l *rp2Line) Get() bool  { return l.p.Get() }
func (l *rp2Line) Toggle() {
	if l.p.Get() {
		l.p.Low()
	} else {
		l.p.High()
	}
}

// -----------------------------------------------------------------------------
// Watchdog
// -----------------------------------------------------------------------------

type rp2Watchdog struct{ timeoutMs uint32 }

func (w *rp2Watchdog) Start() error {
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: w.timeoutMs}); err != nil {
		return err
	}
	return machine.Watchdog.Start()
}

func (w *rp2Watchdog) Update() { machine.Watchdog.Update() }
