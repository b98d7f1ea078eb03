package ledger

import "github.com/ledgerline/installment-service/internal/models"

// RemainingBalance recomputes the outstanding balance from the schedule.
// The schedule is the source of truth: the cached balance on the plan is
// rewritten from this figure after every mutation, and repair jobs use it
// to detect drift.
func RemainingBalance(schedule []models.ScheduleEntry) float64 {
	var sum float64
	for i := range schedule {
		outstanding := schedule[i].Amount - schedule[i].PaidAmount
		if outstanding > Epsilon {
			sum += outstanding
		}
	}
	return round2(sum)
}

// Drifted reports whether the cached balance disagrees with the schedule
// by more than the rounding epsilon.
func Drifted(cached float64, schedule []models.ScheduleEntry) bool {
	diff := cached - RemainingBalance(schedule)
	if diff < 0 {
		diff = -diff
	}
	return diff > Epsilon
}
