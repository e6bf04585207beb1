// Package servo drives a hobby servo from angles received on a serial link
// and reports status back on the same link once per tick.
package servo

import (
	"context"
	"runtime"
	"sync"
	"time"

	"servocontrol-go/errcode"
	"servocontrol-go/services/servo/internal/platform"
	"servocontrol-go/services/servo/internal/platform/setups"
	"servocontrol-go/services/servo/internal/rxworker"
	"servocontrol-go/types"
	"servocontrol-go/x/timex"
)

// statusCap covers the longest status line with all counters at their maximum.
const statusCap = 128

// Service wires the parser, mapper, mailbox and dispatcher to a board.
type Service struct {
	cfg   types.ServoConfig
	board *platform.Board

	mapper *Mapper
	parser *Parser
	mbox   *Mailbox
	disp   *Dispatcher
	rx     *rxworker.Worker

	sleep   func(time.Duration)
	scratch []byte

	mu        sync.Mutex
	stops     []func()
	allocDown bool
}

// Option adjusts a Service before it starts.
type Option func(*Service)

// WithSleep replaces time.Sleep for the calibration sweep and tick settle.
func WithSleep(f func(time.Duration)) Option {
	return func(s *Service) { s.sleep = f }
}

func validate(cfg types.ServoConfig) error {
	const op = "servo.New"
	switch {
	case cfg.PWMPeriodUs == 0:
		return errcode.Invalid(op, "pwm_period_us")
	case cfg.TickIntervalMs == 0:
		return errcode.Invalid(op, "tick_interval_ms")
	case cfg.MaxMessage < 2:
		return errcode.Invalid(op, "max_message")
	case uint32(cfg.Calibration.MaxDuty) > cfg.PWMPeriodUs:
		return errcode.Invalid(op, "max_duty")
	}
	return nil
}

// New validates cfg and builds a Service on b. Nothing runs until Start.
func New(cfg types.ServoConfig, b *platform.Board, opts ...Option) (*Service, error) {
	if b == nil || b.Serial == nil || b.PWM == nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "servo.New", Msg: "board"}
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	m, err := NewMapper(cfg.Calibration)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:     cfg,
		board:   b,
		mapper:  m,
		parser:  NewParser(),
		rx:      rxworker.New(),
		sleep:   time.Sleep,
		scratch: make([]byte, 0, statusCap),
	}
	for _, o := range opts {
		o(s)
	}

	var alloc Allocator = HeapAllocator{Limit: cfg.MaxMessage}
	if b.UseArena {
		alloc = NewArena(cfg.MaxMessage)
	}
	s.mbox = NewMailbox(alloc, MailboxSignals{TxWindow: b.TxLine, AllocFail: b.AllocLine})
	s.disp = NewDispatcher(DispatcherConfig{
		Mailbox:  s.mbox,
		Tx:       b.Serial,
		TickLine: b.TickLine,
		Watchdog: b.Watchdog,
		Interval: timex.Ms(cfg.TickIntervalMs),
		Settle:   timex.Ms(cfg.TickSettleMs),
		Sleep:    s.sleep,
	})
	return s, nil
}

// Start arms the watchdog, centres the servo, starts the dispatcher and the
// receive worker, then runs the calibration sweep. It returns after the sweep.
func (s *Service) Start(ctx context.Context) error {
	if err := s.board.Watchdog.Start(); err != nil {
		return &errcode.E{C: errcode.MapDriverErr(err), Op: "servo.Start", Msg: "watchdog", Err: err}
	}
	s.board.PWM.SetDuty(s.mapper.Calibration().ZeroDegreeDuty)

	cctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.disp.Run(cctx)
	}()
	stopRX := s.rx.Start(cctx, rxworker.Config{Port: s.board.Serial, Sink: s.parser.Feed})

	s.mu.Lock()
	s.stops = append(s.stops, stopRX, func() { cancel(); <-done })
	s.mu.Unlock()

	println("[servo] calibrating,", s.cfg.Calibration.Mode.String())
	s.mapper.Calibrate(s.board.PWM, s.sleep)
	println("[servo] ready")
	return nil
}

// Step runs one main loop iteration: publish the status line, then move the
// servo to the committed angle. Lines longer than MaxMessage-1 bytes are cut
// short, so the mailbox budget is only exceeded by genuine exhaustion.
func (s *Service) Step() {
	st := s.Status()
	s.scratch = AppendStatus(s.scratch[:0], st)

	// Truncate to the message budget, leaving room for the terminator.
	line := s.scratch
	if n := s.cfg.MaxMessage - 1; len(line) > n {
		line = line[:n]
	}
	err := s.mbox.Publish(line)
	switch {
	case err != nil && !s.allocDown:
		s.allocDown = true
		println("[servo] publish failed:", err.Error())
	case err == nil && s.allocDown:
		s.allocDown = false
		println("[servo] publish recovered")
	}

	s.board.PWM.SetDuty(s.mapper.Duty(st.Angle))
}

// Status snapshots the values reported on the link. Duty is the value in
// force before the committed angle is applied.
func (s *Service) Status() types.Status {
	return types.Status{
		Ticks:   s.disp.Counter().Load(),
		Size:    s.mbox.Len(),
		Angle:   s.parser.Committed(),
		Pending: s.parser.Pending(),
		Duty:    s.board.PWM.Duty(),
	}
}

// Run calls Step until ctx is cancelled, pacing by LoopIntervalMs.
func (s *Service) Run(ctx context.Context) error {
	iv := timex.Ms(s.cfg.LoopIntervalMs)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Step()
		if iv > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(iv):
			}
		} else {
			runtime.Gosched()
		}
	}
}

// Close stops the background workers. Safe to call more than once.
func (s *Service) Close() {
	s.mu.Lock()
	stops := s.stops
	s.stops = nil
	s.mu.Unlock()
	for _, f := range stops {
		f()
	}
}

func (s *Service) Parser() *Parser         { return s.parser }
func (s *Service) Mailbox() *Mailbox       { return s.mbox }
func (s *Service) Dispatcher() *Dispatcher { return s.disp }

// Run builds the board for the selected setup and runs the service until
// ctx is cancelled.
func Run(ctx context.Context, cfg types.ServoConfig) error {
	b, err := platform.DefaultBoard(ctx, setups.SelectedPlan, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	s, err := New(cfg, b)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Start(ctx); err != nil {
		return err
	}
	return s.Run(ctx)
}
