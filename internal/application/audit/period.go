package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/jamshiddins/vendbot-unified/internal/domain/shared"
)

const periodDateLayout = "2006-01-02"

// ParsePeriod parses an audit period given as "YYYY-MM-DD:YYYY-MM-DD". The
// returned bounds cover the start day from midnight through the last
// microsecond of the end day.
func ParsePeriod(raw string) (time.Time, time.Time, error) {
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf(
			"%w: period must be YYYY-MM-DD:YYYY-MM-DD, got %q", shared.ErrInvalidPeriod, raw)
	}

	start, err := time.Parse(periodDateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf(
			"%w: invalid start date %q", shared.ErrInvalidPeriod, startStr)
	}
	end, err := time.Parse(periodDateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf(
			"%w: invalid end date %q", shared.ErrInvalidPeriod, endStr)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf(
			"%w: end date %s before start date %s", shared.ErrInvalidPeriod, endStr, startStr)
	}

	return start, end.Add(24*time.Hour - time.Microsecond), nil
}
