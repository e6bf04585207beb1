package shmring

import "testing"

func TestOrderAcrossWrapWithPartialProgress(t *testing.T) {
	r := New(64)

	const N = 2000
	src := make([]byte, N)
	for i := range src {
		src[i] = byte(i)
	}

	// Producer offers at most 7 bytes per step and the consumer drains 17,
	// forcing frequent wraps and split copies.
	p := src
	dst := make([]byte, N)
	off := 0
	for off < N {
		if len(p) > 0 {
			step := min(7, len(p))
			step = r.TryWriteFrom(p[:step])
			p = p[step:]
		}
		var tmp [17]byte
		if n := r.TryReadInto(tmp[:]); n > 0 {
			copy(dst[off:], tmp[:n])
			off += n
		}
	}

	for i := 0; i < N; i++ {
		if dst[i] != src[i] {
			t.Fatalf("mismatch at %d: got=%d want=%d", i, dst[i], src[i])
		}
	}
}

func TestReadableEdgeIsCoalesced(t *testing.T) {
	r := New(8)
	select {
	case <-r.Readable():
		t.Fatal("unexpected Readable on empty ring")
	default:
	}
	if n := r.TryWriteFrom([]byte{1, 2, 3}); n != 3 {
		t.Fatalf("write 3 -> %d", n)
	}
	r.TryWriteFrom([]byte{4})
	select {
	case <-r.Readable():
	default:
		t.Fatal("expected Readable")
	}
	select {
	case <-r.Readable():
		t.Fatal("unexpected extra Readable")
	default:
	}
}

func TestWritableFiresWhenLeavingFull(t *testing.T) {
	r := New(4)
	if n := r.TryWriteFrom([]byte("abcdef")); n != 4 {
		t.Fatalf("write into 4-byte ring accepted %d", n)
	}
	if r.Space() != 0 || r.Available() != 4 {
		t.Fatalf("space=%d avail=%d", r.Space(), r.Available())
	}
	var one [1]byte
	r.TryReadInto(one[:])
	select {
	case <-r.Writable():
	default:
		t.Fatal("expected Writable after draining a full ring")
	}
	if one[0] != 'a' {
		t.Fatalf("read %q, want 'a'", one[0])
	}
}

func TestNewRejectsBadSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("New(3) should panic")
		}
	}()
	New(3)
}
