package store

import (
	"fmt"
	"time"
)

// FormatOrderNumber renders prefix + yyyymmdd + the last six digits of the unix millisecond clock.
func FormatOrderNumber(prefix string, at time.Time) string {
	return fmt.Sprintf("%s%s%06d", prefix, at.Format("20060102"), at.UnixMilli()%1_000_000)
}
