package progress

import (
	"time"

	"github.com/starford/verbo/internal/models"
)

// DateLayout is the ISO calendar date used for LastActivityDate.
const DateLayout = "2006-01-02"

// CheckIn applies the daily streak rule for a check-in on today (UTC date).
// A second check-in on the same day changes nothing and reports false.
// Otherwise the streak grows by one when the last activity was yesterday and
// restarts at 1 in every other case.
func CheckIn(stats models.Stats, today time.Time) (models.Stats, bool) {
	day := today.UTC().Format(DateLayout)
	if stats.LastActivityDate == day {
		return stats, false
	}
	yesterday := today.UTC().AddDate(0, 0, -1).Format(DateLayout)
	if stats.LastActivityDate == yesterday {
		stats.StreakDays++
	} else {
		stats.StreakDays = 1
	}
	stats.LastActivityDate = day
	return stats, true
}
