package query

import (
	"fmt"
	"strconv"
)

// Magnitude thresholds for install-count display.
const (
	trillion = 1_000_000_000_000
	billion  = 1_000_000_000
	million  = 1_000_000
	thousand = 1_000
)

// FormatInstalls renders an install total with a magnitude suffix:
// 1_500 -> "1.5K", 2_300_000 -> "2.3M", 1_200_000_000 -> "1.2B".
// Values under a thousand render raw with thousands separators.
func FormatInstalls(n int64) string {
	switch {
	case n >= trillion:
		return fmt.Sprintf("%.1fT", float64(n)/trillion)
	case n >= billion:
		return fmt.Sprintf("%.1fB", float64(n)/billion)
	case n >= million:
		return fmt.Sprintf("%.1fM", float64(n)/million)
	case n >= thousand:
		return fmt.Sprintf("%.1fK", float64(n)/thousand)
	default:
		return groupDigits(n)
	}
}

// groupDigits inserts comma separators ("1234" -> "1,234").
func groupDigits(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)

	var out []byte
	for i, d := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, d)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
