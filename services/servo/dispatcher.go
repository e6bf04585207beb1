package servo

import (
	"context"
	"sync/atomic"
	"time"

	"servocontrol-go/errcode"
	"servocontrol-go/services/servo/internal/halcore"
)

// TickCounter counts periodic ticks for the process lifetime.
// Written only by the dispatcher.
type TickCounter struct {
	n atomic.Uint32
}

func (c *TickCounter) add() uint32  { return c.n.Add(1) }
func (c *TickCounter) Load() uint32 { return c.n.Load() }

// Transmitter is the blocking byte transmit path.
type Transmitter interface {
	WriteByte(b byte) error
}

type DispatcherConfig struct {
	Mailbox  *Mailbox
	Tx       Transmitter
	Counter  *TickCounter
	TickLine halcore.SignalLine // toggled at the start of every tick
	Watchdog halcore.Watchdog   // refreshed after every completed tick
	Interval time.Duration
	Settle   time.Duration
	Sleep    func(time.Duration) // settle delay; defaults to time.Sleep
}

// Dispatcher drains the mailbox onto the serial link once per tick.
//
// Transmission busy-waits on the port: if the transmitter never accepts a
// byte, Tick never returns and the watchdog stops being refreshed. That is
// the intended recovery path for a stalled transmitter.
type Dispatcher struct {
	cfg     DispatcherConfig
	txBytes atomic.Uint32
	txErrs  atomic.Uint32
	lastErr atomic.Pointer[errcode.E]
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Counter == nil {
		cfg.Counter = &TickCounter{}
	}
	if cfg.TickLine == nil {
		cfg.TickLine = halcore.NopLine{}
	}
	if cfg.Watchdog == nil {
		cfg.Watchdog = halcore.NopWatchdog{}
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Dispatcher{cfg: cfg}
}

// Counter returns the tick counter the dispatcher advances.
func (d *Dispatcher) Counter() *TickCounter { return d.cfg.Counter }

// Tick runs one periodic event.
func (d *Dispatcher) Tick() {
	d.cfg.Counter.add()
	d.cfg.TickLine.Toggle()

	d.cfg.Mailbox.Drain(d.transmit)

	d.cfg.Watchdog.Update()
	if d.cfg.Settle > 0 {
		d.cfg.Sleep(d.cfg.Settle)
	}
}

// transmit writes p up to its NUL terminator, one byte at a time.
func (d *Dispatcher) transmit(p []byte) {
	for _, b := range p {
		if b == 0 {
			return
		}
		if err := d.cfg.Tx.WriteByte(b); err != nil {
			// Rest of the message is dropped; the slot is still released.
			e := &errcode.E{C: errcode.TransmitError, Op: "servo.transmit", Msg: err.Error(), Err: err}
			d.lastErr.Store(e)
			if d.txErrs.Add(1) == 1 {
				println("[dispatch]", e.Error())
			}
			return
		}
		d.txBytes.Add(1)
	}
}

// Run ticks every Interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	iv := d.cfg.Interval
	if iv <= 0 {
		iv = 250 * time.Millisecond
	}
	tick := time.NewTicker(iv)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("[dispatch] stopping")
			return
		case <-tick.C:
			d.Tick()
		}
	}
}

// TxBytes returns the number of bytes handed to the transmitter.
func (d *Dispatcher) TxBytes() uint32 { return d.txBytes.Load() }

// TxErrors returns the number of transmit errors seen.
func (d *Dispatcher) TxErrors() uint32 { return d.txErrs.Load() }

// Err returns the last transmit error, coded errcode.TransmitError, or nil.
func (d *Dispatcher) Err() error {
	if e := d.lastErr.Load(); e != nil {
		return e
	}
	return nil
}
