// services/servo/internal/rxworker/rx_worker.go
package rxworker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"servocontrol-go/services/servo/internal/halcore"
)

// Sink receives one byte at a time. It runs on the worker goroutine and must
// return quickly (no blocking calls).
type Sink func(b byte)

type Config struct {
	Port     halcore.UARTPort
	Sink     Sink
	MaxChunk int           // clamp 1..64
	WaitCap  time.Duration // bound on one blocking receive; clamp 10ms..1s
}

// Worker pumps received bytes from a UART into a Sink. It stands in for the
// receive interrupt: the platform ISR fills the port's ring, the worker
// delivers each byte in arrival order.
type Worker struct {
	bytes atomic.Uint32
	errs  atomic.Uint32
}

func New() *Worker { return &Worker{} }

// Bytes returns the number of bytes delivered so far.
func (w *Worker) Bytes() uint32 { return w.bytes.Load() }

// Errors returns the number of receive errors other than the bounded wait
// expiring or shutdown.
func (w *Worker) Errors() uint32 { return w.errs.Load() }

func benign(err error) bool {
	return err == nil ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// Start launches the pump goroutine. Returns cancel.
func (w *Worker) Start(ctx context.Context, cfg Config) func() {
	chunk := cfg.MaxChunk
	if chunk < 1 {
		chunk = 16
	}
	if chunk > 64 {
		chunk = 64
	}
	wait := cfg.WaitCap
	if wait < 10*time.Millisecond {
		wait = 250 * time.Millisecond
	}
	if wait > time.Second {
		wait = time.Second
	}
	cctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		buf := make([]byte, chunk)
		for {
			// Drain whatever is already buffered before parking on the edge.
			if cfg.Port.Buffered() == 0 {
				select {
				case <-cctx.Done():
					return
				case <-cfg.Port.Readable():
				}
			}
			// Bound the blocking wait to assist shutdown.
			rctx, rcancel := context.WithTimeout(cctx, wait)
			n, err := cfg.Port.RecvSomeContext(rctx, buf)
			rcancel()
			if !benign(err) && w.errs.Add(1) == 1 {
				println("[rx] receive error:", err.Error())
			}
			for i := 0; i < n; i++ {
				cfg.Sink(buf[i])
			}
			if n > 0 {
				w.bytes.Add(uint32(n))
			}
			if cctx.Err() != nil {
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
