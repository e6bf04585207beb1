// services/servo/internal/platform/factories_host.go
//go:build !(rp2040 || rp2350)

package platform

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"servocontrol-go/errcode"
	"servocontrol-go/services/servo/internal/platform/setups"
	"servocontrol-go/types"
	"servocontrol-go/x/shmring"
	"servocontrol-go/x/timex"
)

// -----------------------------------------------------------------------------
// Host board: the simulator used by tests, the demo and host builds of main.
// -----------------------------------------------------------------------------

// HostBoard is a Board whose collaborators are in-memory and inspectable.
type HostBoard struct {
	Board
	UART      *LoopbackUART
	Servo     *MemPWM
	Tick      *MemLine
	Tx        *MemLine
	Alloc     *MemLine
	SoftWatch *SoftWatchdog
}

// NewHostBoard builds a simulator board whose TX bytes go to tx (may be nil).
func NewHostBoard(cfg types.ServoConfig, tx io.Writer) *HostBoard {
	hb := &HostBoard{
		UART:      NewLoopbackUART(256, tx),
		Servo:     &MemPWM{},
		Tick:      &MemLine{},
		Tx:        &MemLine{},
		Alloc:     &MemLine{},
		SoftWatch: NewSoftWatchdog(timex.Ms(cfg.WatchdogTimeoutMs)),
	}
	hb.Board = Board{
		Serial:    hb.UART,
		PWM:       hb.Servo,
		TickLine:  hb.Tick,
		TxLine:    hb.Tx,
		AllocLine: hb.Alloc,
		Watchdog:  hb.SoftWatch,
	}
	hb.fill()
	return hb
}

// DefaultBoard wires the simulator to stdin/stdout.
func DefaultBoard(ctx context.Context, plan setups.ResourcePlan, cfg types.ServoConfig) (*Board, error) {
	if cfg.PWMPeriodUs == 0 {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "platform.DefaultBoard", Msg: "pwm_period_us"}
	}
	hb := NewHostBoard(cfg, os.Stdout)
	println("[platform] host simulator,", plan.UART.ID, "->", "stdin/stdout")

	cctx, cancel := context.WithCancel(ctx)
	go pumpReader(cctx, os.Stdin, hb.UART)
	if cfg.WatchdogTimeoutMs > 0 {
		go hb.SoftWatch.Monitor(cctx, func() {
			println("[platform] watchdog expired:", string(errcode.TransmitStall))
		})
	}
	hb.onClose(cancel)

	b := hb.Board
	return &b, nil
}

func pumpReader(ctx context.Context, r io.Reader, u *LoopbackUART) {
	buf := make([]byte, 64)
	for ctx.Err() == nil {
		n, err := r.Read(buf)
		if n > 0 {
			u.Inject(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// -----------------------------------------------------------------------------
// LoopbackUART: RX fed by Inject through an SPSC ring, TX into a writer.
// -----------------------------------------------------------------------------

type LoopbackUART struct {
	rx *shmring.Ring

	mu   sync.Mutex
	tx   io.Writer
	gate chan struct{} // non-nil while the transmitter is stalled
}

func NewLoopbackUART(rxSize int, tx io.Writer) *LoopbackUART {
	if tx == nil {
		tx = io.Discard
	}
	return &LoopbackUART{
		rx: shmring.New(rxSize),
		tx: tx,
	}
}

// Inject plays the receive ISR: bytes that do not fit are dropped.
func (u *LoopbackUART) Inject(p []byte) int { return u.rx.TryWriteFrom(p) }

// Stall makes every following WriteByte block until Resume, modelling a
// transmitter that never signals ready.
func (u *LoopbackUART) Stall() {
	u.mu.Lock()
	if u.gate == nil {
		u.gate = make(chan struct{})
	}
	u.mu.Unlock()
}

// Resume releases a stalled transmitter.
func (u *LoopbackUART) Resume() {
	u.mu.Lock()
	if u.gate != nil {
		close(u.gate)
		u.gate = nil
	}
	u.mu.Unlock()
}

func (u *LoopbackUART) WriteByte(b byte) error {
	u.mu.Lock()
	g := u.gate
	u.mu.Unlock()
	if g != nil {
		<-g
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	_, err := u.tx.Write([]byte{b})
	return err
}

func (u *LoopbackUART) Write(p []byte) (int, error) {
	for i, b := range p {
		if err := u.WriteByte(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

func (u *LoopbackUART) Buffered() int              { return u.rx.Available() }
func (u *LoopbackUART) Read(p []byte) (int, error) { return u.rx.TryReadInto(p), nil }
func (u *LoopbackUART) Readable() <-chan struct{}  { return u.rx.Readable() }

func (u *LoopbackUART) RecvSomeContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if n := u.rx.TryReadInto(p); n > 0 {
			return n, nil
		}
		select {
		case <-u.rx.Readable():
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// -----------------------------------------------------------------------------
// MemPWM: duty register with history.
// -----------------------------------------------------------------------------

type MemPWM struct {
	duty atomic.Uint32

	mu      sync.Mutex
	history []uint16
}

func (p *MemPWM) SetDuty(d uint16) {
	p.duty.Store(uint32(d))
	p.mu.Lock()
	p.history = append(p.history, d)
	p.mu.Unlock()
}

func (p *MemPWM) Duty() uint16 { return uint16(p.duty.Load()) }

// History returns every duty written so far.
func (p *MemPWM) History() []uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint16(nil), p.history...)
}

// -----------------------------------------------------------------------------
// MemLine: signal line with transition count.
// -----------------------------------------------------------------------------

type MemLine struct {
	level atomic.Bool
	edges atomic.Uint32
}

func (l *MemLine) Set(v bool) {
	if l.level.Swap(v) != v {
		l.edges.Add(1)
	}
}

func (l *MemLine) Get() bool { return l.level.Load() }

func (l *MemLine) Toggle() {
	for {
		old := l.level.Load()
		if l.level.CompareAndSwap(old, !old) {
			l.edges.Add(1)
			return
		}
	}
}

// Edges returns the number of level changes.
func (l *MemLine) Edges() uint32 { return l.edges.Load() }

// -----------------------------------------------------------------------------
// SoftWatchdog: reports when Update stops arriving.
// -----------------------------------------------------------------------------

type SoftWatchdog struct {
	timeout time.Duration
	started atomic.Bool
	last    atomic.Int64 // unix nanos of last Update
	updates atomic.Uint32
}

func NewSoftWatchdog(timeout time.Duration) *SoftWatchdog {
	return &SoftWatchdog{timeout: timeout}
}

func (w *SoftWatchdog) Start() error {
	w.last.Store(time.Now().UnixNano())
	w.started.Store(true)
	return nil
}

func (w *SoftWatchdog) Update() {
	w.last.Store(time.Now().UnixNano())
	w.updates.Add(1)
}

func (w *SoftWatchdog) Updates() uint32 { return w.updates.Load() }

// Expired reports whether a started watchdog has gone a full timeout
// without an Update.
func (w *SoftWatchdog) Expired(now time.Time) bool {
	if !w.started.Load() || w.timeout <= 0 {
		return false
	}
	return now.Sub(time.Unix(0, w.last.Load())) > w.timeout
}

// Monitor calls onExpire once per expiry until ctx is done.
func (w *SoftWatchdog) Monitor(ctx context.Context, onExpire func()) {
	if w.timeout <= 0 {
		return
	}
	tick := time.NewTicker(w.timeout / 4)
	defer tick.Stop()
	fired := false
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			exp := w.Expired(now)
			if exp && !fired {
				onExpire()
			}
			fired = exp
		}
	}
}
