//go:build !(rp2040 || rp2350)

package platform

import (
	"bytes"
	"context"
	"testing"
	"time"

	"servocontrol-go/types"
)

func TestLoopbackUART_InjectAndReceive(t *testing.T) {
	u := NewLoopbackUART(8, nil)
	if n := u.Inject([]byte("0123456789")); n != 8 {
		t.Fatalf("inject accepted %d, want ring size 8", n)
	}
	if u.Buffered() != 8 {
		t.Fatalf("buffered=%d", u.Buffered())
	}
	buf := make([]byte, 16)
	n, err := u.RecvSomeContext(context.Background(), buf)
	if err != nil || string(buf[:n]) != "01234567" {
		t.Fatalf("recv %q err=%v", buf[:n], err)
	}
}

func TestLoopbackUART_RecvHonoursContext(t *testing.T) {
	u := NewLoopbackUART(8, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := u.RecvSomeContext(ctx, make([]byte, 4)); err != context.DeadlineExceeded {
		t.Fatalf("err=%v want deadline exceeded", err)
	}
}

func TestLoopbackUART_StallBlocksWrites(t *testing.T) {
	var out bytes.Buffer
	u := NewLoopbackUART(8, &out)
	u.Stall()

	done := make(chan struct{})
	go func() { _ = u.WriteByte('a'); close(done) }()
	select {
	case <-done:
		t.Fatalf("write completed while stalled")
	case <-time.After(20 * time.Millisecond):
	}
	u.Resume()
	<-done
	if out.String() != "a" {
		t.Fatalf("tx=%q", out.String())
	}
}

func TestMemLine_CountsEdges(t *testing.T) {
	var l MemLine
	l.Set(false)
	l.Toggle()
	l.Set(true)
	l.Toggle()
	if l.Get() || l.Edges() != 2 {
		t.Fatalf("level=%v edges=%d", l.Get(), l.Edges())
	}
}

func TestSoftWatchdog_Expiry(t *testing.T) {
	w := NewSoftWatchdog(50 * time.Millisecond)
	now := time.Now()
	if w.Expired(now.Add(time.Hour)) {
		t.Fatalf("unstarted watchdog expired")
	}
	_ = w.Start()
	if w.Expired(time.Now()) {
		t.Fatalf("expired immediately after start")
	}
	if !w.Expired(time.Now().Add(time.Second)) {
		t.Fatalf("not expired after a full timeout")
	}
	w.Update()
	if w.Expired(time.Now()) || w.Updates() != 1 {
		t.Fatalf("update did not refresh")
	}
}

func TestSoftWatchdog_MonitorFiresOnce(t *testing.T) {
	w := NewSoftWatchdog(20 * time.Millisecond)
	_ = w.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	fired := 0
	w.Monitor(ctx, func() { fired++ })
	if fired != 1 {
		t.Fatalf("fired=%d want 1", fired)
	}
}

func TestNewHostBoard_FillsCollaborators(t *testing.T) {
	hb := NewHostBoard(types.DefaultServoConfig(), nil)
	if hb.Serial == nil || hb.PWM == nil || hb.Watchdog == nil || hb.TickLine == nil {
		t.Fatalf("board has nil collaborators: %+v", hb.Board)
	}
	if hb.UseArena {
		t.Fatalf("host board should use the heap allocator")
	}
	hb.Servo.SetDuty(1750)
	hb.Servo.SetDuty(2245)
	if h := hb.Servo.History(); len(h) != 2 || hb.PWM.Duty() != 2245 {
		t.Fatalf("history=%v duty=%d", h, hb.PWM.Duty())
	}
}
