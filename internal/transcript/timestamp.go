package transcript

import (
	"fmt"
	"math"
)

// Dialect selects the subtitle timestamp convention.
type Dialect string

const (
	DialectSRT Dialect = "srt"
	DialectVTT Dialect = "vtt"
)

// FormatTimestamp renders seconds as HH:MM:SS.mmm (vtt) or HH:MM:SS,mmm (srt).
// The value is rounded to the nearest millisecond before it is split.
func FormatTimestamp(seconds float64, dialect Dialect) (string, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "", fmt.Errorf("%w: timestamp must be a non-negative number of seconds, got %v", ErrInvalidArgument, seconds)
	}

	var separator string
	switch dialect {
	case DialectVTT:
		separator = "."
	case DialectSRT:
		separator = ","
	default:
		return "", fmt.Errorf("%w: timestamp dialect should be either %q or %q, got %q", ErrInvalidArgument, DialectVTT, DialectSRT, dialect)
	}

	total := int64(math.Round(seconds * 1000))
	millis := total % 1000
	total /= 1000
	secs := total % 60
	total /= 60
	minutes := total % 60
	hours := total / 60

	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, secs, separator, millis), nil
}
