package servo

import (
	"sync/atomic"

	"servocontrol-go/x/mathx"
)

// TokenCap is the number of digit bytes captured per token.
const TokenCap = 3

// ParserStats are diagnostic counters, safe to read from any goroutine.
type ParserStats struct {
	Commits   uint32
	Overflows uint32 // tokens that restarted capture after TokenCap digits
	Ignored   uint32 // non-digit, non-terminator bytes
}

// Parser accumulates a target angle from a byte stream.
//
// Feed is called only from the receive context. Committed and Pending are
// single-word atomics and may be read from the main loop at any time.
// A partially accumulated value never reaches Committed.
type Parser struct {
	acc       atomic.Uint32
	committed atomic.Uint32

	raw [TokenCap]byte
	idx uint8

	commits   atomic.Uint32
	overflows atomic.Uint32
	ignored   atomic.Uint32
}

func NewParser() *Parser { return &Parser{} }

func isTerminator(c byte) bool { return c == '\n' || c == '\r' || c == 0 }

// Feed consumes one received byte.
func (p *Parser) Feed(c byte) {
	switch {
	case isTerminator(c):
		p.committed.Store(p.acc.Load())
		p.acc.Store(0)
		p.raw = [TokenCap]byte{}
		p.idx = 0
		p.commits.Add(1)

	case c >= '0' && c <= '9':
		// The clamp runs on every digit, so "1999" saturates at 180.
		next := p.acc.Load()*10 + uint32(c-'0')
		p.acc.Store(mathx.Min[uint32](next, MaxAngle))

		if p.idx >= TokenCap {
			// Overflow restarts capture silently; the accumulator is kept.
			p.raw = [TokenCap]byte{}
			p.idx = 0
			p.overflows.Add(1)
		}
		p.raw[p.idx] = c
		p.idx++

	default:
		p.ignored.Add(1)
	}
}

// FeedBytes feeds every byte of b in order.
func (p *Parser) FeedBytes(b []byte) {
	for _, c := range b {
		p.Feed(c)
	}
}

// Committed returns the last angle closed by a terminator.
func (p *Parser) Committed() uint8 { return uint8(p.committed.Load()) }

// Pending returns the in-progress accumulator.
func (p *Parser) Pending() uint8 { return uint8(p.acc.Load()) }

// Token returns a copy of the captured digits of the current token.
// Receive context only.
func (p *Parser) Token() []byte {
	return append([]byte(nil), p.raw[:p.idx]...)
}

func (p *Parser) Stats() ParserStats {
	return ParserStats{
		Commits:   p.commits.Load(),
		Overflows: p.overflows.Load(),
		Ignored:   p.ignored.Load(),
	}
}
