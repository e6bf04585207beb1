package conv

import (
	"math"
	"testing"
)

func TestUtoa(t *testing.T) {
	var buf [20]byte
	for _, c := range []struct {
		n    uint64
		want string
	}{
		{0, "0"},
		{7, "7"},
		{1750, "1750"},
		{math.MaxUint64, "18446744073709551615"},
	} {
		if got := string(Utoa(buf[:], c.n)); got != c.want {
			t.Fatalf("Utoa(%d) = %q, want %q", c.n, got, c.want)
		}
	}
	if got := Utoa(nil, 5); len(got) != 0 {
		t.Fatalf("Utoa on empty buf should return empty slice")
	}
}

func TestItoa(t *testing.T) {
	var buf [21]byte
	for _, c := range []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{-1, "-1"},
		{180, "180"},
		{-99999, "-99999"},
	} {
		if got := string(Itoa(buf[:], c.n)); got != c.want {
			t.Fatalf("Itoa(%d) = %q, want %q", c.n, got, c.want)
		}
	}
}

func TestAppend(t *testing.T) {
	dst := []byte("ticks: ")
	dst = AppendUint(dst, 42)
	dst = append(dst, ' ')
	dst = AppendInt(dst, -3)
	if got, want := string(dst), "ticks: 42 -3"; got != want {
		t.Fatalf("append = %q, want %q", got, want)
	}
}
