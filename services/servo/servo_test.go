package servo

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"servocontrol-go/errcode"
	"servocontrol-go/services/servo/internal/platform"
	"servocontrol-go/types"
)

type lockedBuf struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuf) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func fastConfig() types.ServoConfig {
	cfg := types.DefaultServoConfig()
	cfg.TickIntervalMs = 5
	cfg.TickSettleMs = 0
	cfg.LoopIntervalMs = 1
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func startService(t *testing.T, cfg types.ServoConfig) (*Service, *platform.HostBoard, *lockedBuf) {
	t.Helper()
	out := &lockedBuf{}
	hb := platform.NewHostBoard(cfg, out)
	s, err := New(cfg, &hb.Board, WithSleep(func(time.Duration) {}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Close)
	return s, hb, out
}

func TestNew_RejectsBadConfig(t *testing.T) {
	hb := platform.NewHostBoard(types.DefaultServoConfig(), nil)
	cases := map[string]func(c *types.ServoConfig){
		"period":        func(c *types.ServoConfig) { c.PWMPeriodUs = 0 },
		"tick":          func(c *types.ServoConfig) { c.TickIntervalMs = 0 },
		"max message":   func(c *types.ServoConfig) { c.MaxMessage = 1 },
		"duty > period": func(c *types.ServoConfig) { c.PWMPeriodUs = 2000 },
		"calibration":   func(c *types.ServoConfig) { c.Calibration.DegreeStep = 0 },
	}
	for name, mutate := range cases {
		cfg := types.DefaultServoConfig()
		mutate(&cfg)
		if _, err := New(cfg, &hb.Board); errcode.Of(err) != errcode.InvalidParams {
			t.Fatalf("%s: err=%v", name, err)
		}
	}
	if _, err := New(types.DefaultServoConfig(), nil); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("nil board: err=%v", err)
	}
}

func TestService_StartCentresThenSweeps(t *testing.T) {
	_, hb, _ := startService(t, fastConfig())

	hist := hb.Servo.History()
	want := []uint16{1750, 2750, 730, 1750, 2250, 1230, 1750, 2550, 930, 1750}
	if len(hist) != len(want) {
		t.Fatalf("history=%v", hist)
	}
	for i := range want {
		if hist[i] != want[i] {
			t.Fatalf("history[%d]=%d want %d", i, hist[i], want[i])
		}
	}
}

func TestService_CommandMovesServoAndIsReported(t *testing.T) {
	s, hb, out := startService(t, fastConfig())

	hb.UART.Inject([]byte("45\n"))
	waitFor(t, "commit", func() bool { return s.Parser().Committed() == 45 })

	s.Step()
	if got := hb.Servo.Duty(); got != 2245 {
		t.Fatalf("duty=%d want 2245", got)
	}
	waitFor(t, "status line", func() bool {
		return strings.Contains(out.String(), "[Servo rotation: 45 deg. [temp val: 0]| PWM: 1750 ms]\n\r\r")
	})

	s.Step()
	waitFor(t, "second status line", func() bool {
		return strings.Contains(out.String(), "| PWM: 2245 ms]")
	})
	if strings.ContainsRune(out.String(), 0) {
		t.Fatalf("terminator leaked onto the link")
	}
}

func TestService_TicksFeedWatchdogAndToggleLine(t *testing.T) {
	s, hb, _ := startService(t, fastConfig())

	waitFor(t, "watchdog updates", func() bool { return hb.SoftWatch.Updates() >= 3 })
	if got := s.Dispatcher().Counter().Load(); got < 3 {
		t.Fatalf("ticks=%d", got)
	}
	if hb.Tick.Edges() < 3 {
		t.Fatalf("tick line edges=%d", hb.Tick.Edges())
	}
}

func TestService_StatusSizeTracksMailbox(t *testing.T) {
	cfg := fastConfig()
	cfg.TickIntervalMs = 60_000 // no drain during the test
	s, _, _ := startService(t, cfg)

	if got := s.Status().Size; got != 0 {
		t.Fatalf("size before publish=%d", got)
	}
	s.Step()
	size := s.Status().Size
	line := AppendStatus(nil, types.Status{Duty: 1750})
	if size != len(line)+1 {
		t.Fatalf("size=%d want %d", size, len(line)+1)
	}
}

func TestService_RunStopsOnCancel(t *testing.T) {
	s, _, _ := startService(t, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	waitFor(t, "publishes", func() bool { return s.Mailbox().Stats().Published >= 3 })
	cancel()
	select {
	case err := <-errc:
		if err != context.Canceled {
			t.Fatalf("Run err=%v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return")
	}
}

func TestService_LongStatusLinesFitTheBudget(t *testing.T) {
	for _, arena := range []bool{false, true} {
		cfg := fastConfig()
		cfg.TickIntervalMs = 60_000 // ticks are driven by hand below
		out := &lockedBuf{}
		hb := platform.NewHostBoard(cfg, out)
		hb.UseArena = arena
		s, err := New(cfg, &hb.Board, WithSleep(func(time.Duration) {}))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}

		hb.UART.Inject([]byte("180\n"))
		waitFor(t, "commit", func() bool { return s.Parser().Committed() == 180 })
		for i := 0; i < 1000; i++ {
			s.Dispatcher().Tick()
		}

		// Nothing drains between steps, so every line also reports size 100.
		for i := 0; i < 6; i++ {
			s.Step()
			if got := s.Mailbox().Len(); got != cfg.MaxMessage {
				t.Fatalf("arena=%v step %d: len=%d want %d", arena, i, got, cfg.MaxMessage)
			}
		}
		if got := s.Mailbox().Stats().AllocFailed; got != 0 {
			t.Fatalf("arena=%v: %d status lines dropped as allocation failures", arena, got)
		}
		if hb.Alloc.Edges() != 0 {
			t.Fatalf("arena=%v: alloc fail line toggled %d times", arena, hb.Alloc.Edges())
		}

		s.Dispatcher().Tick()
		if got := out.String(); !strings.HasPrefix(got, "Program counter [TICK]: 1000 ticks size: 100 [Servo rotation: 180") || len(got) != cfg.MaxMessage-1 {
			t.Fatalf("arena=%v: transmitted %q", arena, got)
		}
		s.Close()
	}
}
