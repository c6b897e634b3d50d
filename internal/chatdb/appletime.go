package chatdb

import "time"

// appleEpochOffset is the number of seconds between the Unix epoch and
// the store's epoch, 2001-01-01T00:00:00Z.
const appleEpochOffset = 978307200

// nanosecondThreshold separates second-resolution timestamps from
// nanosecond-resolution ones. Newer OS versions write nanoseconds; any
// magnitude beyond 1e12 cannot be a plausible second count.
const nanosecondThreshold = 1_000_000_000_000

// appleUnix converts a raw store timestamp to a Unix timestamp in
// seconds. Nanosecond inputs are divided with truncation toward zero.
// Every input maps to some timestamp; plausibility is the caller's
// concern.
func appleUnix(raw int64) int64 {
	if raw > nanosecondThreshold || raw < -nanosecondThreshold {
		raw /= 1_000_000_000
	}
	return raw + appleEpochOffset
}

// AppleTime converts a raw store timestamp to a UTC time.Time.
func AppleTime(raw int64) time.Time {
	return time.Unix(appleUnix(raw), 0).UTC()
}
