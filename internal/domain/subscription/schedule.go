// internal/domain/subscription/schedule.go
package subscription

import (
	"fmt"
	"time"

	xerrors "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/errors"
)

// NextBillingDate returns the date of the cycle that follows current.
//
// billingDay anchors monthly-and-longer frequencies to a fixed day of month
// when > 0; the day is clamped to the length of the target month, so an
// anchor of 31 lands on Feb 28 (29 in leap years). Weekly frequencies ignore
// the anchor. Time of day and location are preserved from current.
func NextBillingDate(current time.Time, freq Frequency, billingDay int) (time.Time, error) {
	switch freq {
	case FrequencyWeekly:
		return current.AddDate(0, 0, 7), nil
	case FrequencyBiweekly:
		return current.AddDate(0, 0, 14), nil
	case FrequencyMonthly:
		return addMonths(current, 1, billingDay), nil
	case FrequencyQuarterly:
		return addMonths(current, 3, billingDay), nil
	case FrequencyYearly:
		return addMonths(current, 12, billingDay), nil
	default:
		return time.Time{}, xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("unknown billing frequency %q", freq))
	}
}

// addMonths advances t by n calendar months without the day-overflow
// normalization of time.AddDate: Jan 31 + 1 month is Feb 28/29, never Mar 3.
func addMonths(t time.Time, n, billingDay int) time.Time {
	year := t.Year()
	month := int(t.Month()) - 1 + n
	year += month / 12
	month = month % 12

	day := t.Day()
	if billingDay > 0 {
		day = billingDay
	}
	if max := daysIn(year, time.Month(month+1)); day > max {
		day = max
	}

	return time.Date(year, time.Month(month+1), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
