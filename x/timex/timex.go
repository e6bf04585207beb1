package timex

import "time"

// PeriodFromHz returns a nanosecond period for a requested frequency.
// freqHz==0 is coerced to 1 to avoid division by zero.
func PeriodFromHz(freqHz uint32) uint64 {
	if freqHz == 0 {
		freqHz = 1
	}
	return uint64(1_000_000_000 / uint64(freqHz))
}

// Ms converts a millisecond config field to a Duration.
func Ms(ms uint32) time.Duration { return time.Duration(ms) * time.Millisecond }

// Us converts a microsecond config field to a Duration.
func Us(us uint32) time.Duration { return time.Duration(us) * time.Microsecond }
