package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/ledgerline/installment-service/internal/models"
)

// Allocation is the result of spreading a payment across a schedule: the
// per-month applied amounts plus the aggregate accounting breakdown. The
// caller writes the applied amounts back with ApplyAllocation.
type Allocation struct {
	Applied   []models.AppliedAmount `json:"applied_to_months"`
	Breakdown models.Breakdown       `json:"breakdown"`
}

// Allocate runs the waterfall: the amount covers outstanding entries
// strictly in month order until it is exhausted. Whatever exceeds the whole
// schedule lands in the synthetic month -1 bucket, classified entirely as
// principal; new schedule periods are never created here. The running
// remainder is never rounded, so the applied amounts always sum to the
// payment even when it carries sub-cent precision.
func Allocate(schedule []models.ScheduleEntry, model models.InterestModel, amount float64, rounding models.RoundingPolicy) Allocation {
	var result Allocation
	remaining := amount

	for i := range schedule {
		if remaining <= Epsilon {
			remaining = 0
			break
		}
		entry := &schedule[i]
		outstanding := round2(entry.Amount - entry.PaidAmount)
		if outstanding <= Epsilon {
			continue
		}

		applied := math.Min(outstanding, remaining)
		principal, interest := splitApplied(entry, model, applied, outstanding, rounding)

		result.Applied = append(result.Applied, models.AppliedAmount{Month: entry.Month, Applied: applied})
		result.Breakdown.Principal = round2(result.Breakdown.Principal + principal)
		result.Breakdown.Interest = round2(result.Breakdown.Interest + interest)
		remaining -= applied
	}

	if remaining > Epsilon {
		result.Applied = append(result.Applied, models.AppliedAmount{Month: models.OverpaymentMonth, Applied: remaining})
		result.Breakdown.Principal = round2(result.Breakdown.Principal + remaining)
	}
	return result
}

// AllocateToMonth applies a payment directly to a single entry, bypassing
// the waterfall. The entry absorbs up to its outstanding amount; any excess
// goes to the month -1 bucket so paid amounts never exceed the amount due.
func AllocateToMonth(schedule []models.ScheduleEntry, model models.InterestModel, amount float64, rounding models.RoundingPolicy, month int) (Allocation, error) {
	var entry *models.ScheduleEntry
	for i := range schedule {
		if schedule[i].Month == month {
			entry = &schedule[i]
			break
		}
	}
	if entry == nil {
		return Allocation{}, fmt.Errorf("unknown target month %d", month)
	}

	var result Allocation
	remaining := amount
	outstanding := round2(entry.Amount - entry.PaidAmount)
	if outstanding > Epsilon {
		applied := math.Min(outstanding, remaining)
		principal, interest := splitApplied(entry, model, applied, outstanding, rounding)
		result.Applied = append(result.Applied, models.AppliedAmount{Month: entry.Month, Applied: applied})
		result.Breakdown.Principal = round2(result.Breakdown.Principal + principal)
		result.Breakdown.Interest = round2(result.Breakdown.Interest + interest)
		remaining -= applied
	}
	if remaining > Epsilon {
		result.Applied = append(result.Applied, models.AppliedAmount{Month: models.OverpaymentMonth, Applied: remaining})
		result.Breakdown.Principal = round2(result.Breakdown.Principal + remaining)
	}
	return result, nil
}

// splitApplied divides an applied amount into principal and interest. The
// equal model is zero-cost credit, so everything is principal; otherwise
// the split follows the entry's stored interest-to-outstanding ratio.
func splitApplied(entry *models.ScheduleEntry, model models.InterestModel, applied, outstanding float64, rounding models.RoundingPolicy) (principal, interest float64) {
	if model == models.ModelEqual || entry.Interest == 0 {
		return applied, 0
	}
	interest = Round(entry.Interest*applied/outstanding, rounding)
	if interest > applied {
		interest = applied
	}
	return round2(applied - interest), interest
}

// ApplyAllocation writes applied amounts back into the schedule, mutating
// entries in place by index. Paid status and paid date are rederived from
// the new paid amount.
func ApplyAllocation(schedule []models.ScheduleEntry, applied []models.AppliedAmount, paidAt time.Time) {
	for _, a := range applied {
		if a.Month < 1 || a.Month > len(schedule) {
			continue
		}
		entry := &schedule[a.Month-1]
		entry.PaidAmount = round2(entry.PaidAmount + a.Applied)
		if entry.PaidAmount >= entry.Amount-Epsilon {
			entry.Status = models.EntryPaid
			when := paidAt
			entry.PaidDate = &when
		}
	}
}

// ReverseAllocation exactly undoes a prior ApplyAllocation. Paid amounts
// are clamped at zero and status/paid date rederived, so reversing a
// payment restores the schedule to its pre-payment state.
func ReverseAllocation(schedule []models.ScheduleEntry, applied []models.AppliedAmount) {
	for _, a := range applied {
		if a.Month < 1 || a.Month > len(schedule) {
			continue
		}
		entry := &schedule[a.Month-1]
		entry.PaidAmount = round2(entry.PaidAmount - a.Applied)
		if entry.PaidAmount < 0 {
			entry.PaidAmount = 0
		}
		if entry.PaidAmount < entry.Amount-Epsilon {
			entry.Status = models.EntryPending
			entry.PaidDate = nil
		}
	}
}
