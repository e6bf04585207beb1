package servo

import (
	"sync"
	"sync/atomic"

	"servocontrol-go/errcode"
	"servocontrol-go/services/servo/internal/halcore"
)

// -----------------------------------------------------------------------------
// Allocators
// -----------------------------------------------------------------------------

// Allocator hands out message buffers. Alloc reports false when no buffer of
// n bytes can be provided.
type Allocator interface {
	Alloc(n int) ([]byte, bool)
	Free(p []byte)
}

// HeapAllocator allocates from the Go heap, refusing requests above Limit.
// Limit <= 0 means unlimited.
type HeapAllocator struct {
	Limit int
}

func (h HeapAllocator) Alloc(n int) ([]byte, bool) {
	if n <= 0 || (h.Limit > 0 && n > h.Limit) {
		return nil, false
	}
	return make([]byte, n), true
}

// Free drops the reference; the collector reclaims it.
func (HeapAllocator) Free([]byte) {}

// Arena serves one buffer at a time out of a fixed backing array, so steady
// state message traffic produces no garbage.
type Arena struct {
	buf   []byte
	inUse bool
}

func NewArena(size int) *Arena { return &Arena{buf: make([]byte, size)} }

func (a *Arena) Alloc(n int) ([]byte, bool) {
	if a.inUse || n <= 0 || n > len(a.buf) {
		return nil, false
	}
	a.inUse = true
	p := a.buf[:n]
	clear(p)
	return p, true
}

func (a *Arena) Free([]byte) { a.inUse = false }

// -----------------------------------------------------------------------------
// Mailbox
// -----------------------------------------------------------------------------

// MailboxSignals are the observability outputs driven by the mailbox.
type MailboxSignals struct {
	TxWindow  halcore.SignalLine // high while a message is being drained
	AllocFail halcore.SignalLine // toggled per failed allocation, low after a success
}

// MailboxStats are diagnostic counters.
type MailboxStats struct {
	Published   uint32
	AllocFailed uint32
	Drained     uint32
}

// Mailbox is a single-slot handoff of one formatted message from the main
// loop (producer) to the periodic dispatcher (consumer).
//
// ready is the ownership flag: true means the consumer may transmit content,
// false means the slot is free. content and length are only touched inside
// mu, which plays the role of masking the tick interrupt. Publish completes
// the copy before setting ready; Drain completes the transmission before
// clearing it. Drain is the only place a published buffer is released.
type Mailbox struct {
	mu      sync.Mutex
	ready   atomic.Bool
	content []byte
	length  int

	alloc Allocator
	sig   MailboxSignals

	published   atomic.Uint32
	allocFailed atomic.Uint32
	drained     atomic.Uint32
}

func NewMailbox(alloc Allocator, sig MailboxSignals) *Mailbox {
	if alloc == nil {
		alloc = HeapAllocator{}
	}
	if sig.TxWindow == nil {
		sig.TxWindow = halcore.NopLine{}
	}
	if sig.AllocFail == nil {
		sig.AllocFail = halcore.NopLine{}
	}
	return &Mailbox{alloc: alloc, sig: sig}
}

// Publish replaces the slot content with a NUL-terminated copy of text.
// A fresh buffer of len(text)+1 bytes is allocated every time, releasing any
// buffer still pending. On allocation failure the slot is left empty and
// errcode.AllocFailure is returned.
func (m *Mailbox) Publish(text []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ready.Store(false)
	if m.content != nil {
		m.alloc.Free(m.content)
		m.content = nil
	}
	m.length = 0

	buf, ok := m.alloc.Alloc(len(text) + 1)
	if !ok {
		m.allocFailed.Add(1)
		m.sig.AllocFail.Toggle()
		return errcode.AllocFailure
	}
	m.sig.AllocFail.Set(false)

	n := copy(buf[:len(buf)-1], text)
	buf[n] = 0
	m.content = buf
	m.length = len(buf)
	m.published.Add(1)

	m.ready.Store(true)
	return nil
}

// Drain hands the pending message (terminator included) to send and then
// releases the slot. It returns false without touching anything when the
// slot is not ready. Consumer context only.
func (m *Mailbox) Drain(send func(p []byte)) bool {
	if !m.ready.Load() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready.Load() || m.content == nil {
		return false
	}

	m.sig.TxWindow.Set(true)
	send(m.content[:m.length])

	m.alloc.Free(m.content)
	m.content = nil
	m.length = 0
	m.ready.Store(false)
	m.drained.Add(1)
	m.sig.TxWindow.Set(false)
	return true
}

// Ready reports whether a message is waiting for the consumer.
func (m *Mailbox) Ready() bool { return m.ready.Load() }

// Len returns the current buffer size in bytes, 0 when the slot is empty.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.length
}

func (m *Mailbox) Stats() MailboxStats {
	return MailboxStats{
		Published:   m.published.Load(),
		AllocFailed: m.allocFailed.Load(),
		Drained:     m.drained.Load(),
	}
}
