package ledger

import (
	"math"
	"time"

	"github.com/ledgerline/installment-service/internal/models"
)

// Epsilon is the tolerance for comparing currency amounts. An entry counts
// as paid once its paid amount is within Epsilon of its due amount.
const Epsilon = 0.001

// Round rounds v to 2 decimal places according to the plan's policy.
func Round(v float64, policy models.RoundingPolicy) float64 {
	switch policy {
	case models.RoundUp:
		return math.Ceil(v*100) / 100
	case models.RoundDown:
		return math.Floor(v*100) / 100
	default:
		return math.Round(v*100) / 100
	}
}

// round2 is plain half-up rounding, used for derived differences so stored
// figures stay at 2 decimals regardless of float noise.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// GenerateSchedule builds the ordered repayment schedule for a plan.
// Degenerate inputs (non-positive principal or term) yield an empty
// schedule, which callers must treat as "nothing to collect".
func GenerateSchedule(principal, annualRatePercent float64, months int, startDate time.Time, rounding models.RoundingPolicy, model models.InterestModel) []models.ScheduleEntry {
	if principal <= 0 || months <= 0 {
		return []models.ScheduleEntry{}
	}

	switch model {
	case models.ModelFlat:
		return flatSchedule(principal, annualRatePercent, months, startDate, rounding)
	case models.ModelAmortized:
		return amortizedSchedule(principal, annualRatePercent, months, startDate, rounding)
	default:
		return equalSchedule(principal, months, startDate, rounding)
	}
}

// equalSchedule splits the principal evenly with zero interest.
func equalSchedule(principal float64, months int, startDate time.Time, rounding models.RoundingPolicy) []models.ScheduleEntry {
	per := Round(principal/float64(months), rounding)
	entries := make([]models.ScheduleEntry, 0, months)
	for i := 1; i <= months; i++ {
		entries = append(entries, models.ScheduleEntry{
			Month:     i,
			DueDate:   startDate.AddDate(0, i, 0),
			Amount:    per,
			Principal: per,
			Interest:  0,
			Status:    models.EntryPending,
		})
	}
	return entries
}

// flatSchedule charges simple interest on the full principal for the whole
// term and spreads the total evenly. There is no reducing-balance
// computation: every entry carries the same amount and the same split.
func flatSchedule(principal, annualRatePercent float64, months int, startDate time.Time, rounding models.RoundingPolicy) []models.ScheduleEntry {
	total := principal * (1 + (annualRatePercent/100)*(float64(months)/12))
	amount := Round(total/float64(months), rounding)
	principalPer := Round(principal/float64(months), rounding)
	interestPer := round2(amount - principalPer)

	entries := make([]models.ScheduleEntry, 0, months)
	for i := 1; i <= months; i++ {
		entries = append(entries, models.ScheduleEntry{
			Month:     i,
			DueDate:   startDate.AddDate(0, i, 0),
			Amount:    amount,
			Principal: principalPer,
			Interest:  interestPer,
			Status:    models.EntryPending,
		})
	}
	return entries
}

// amortizedSchedule is a standard reducing-balance annuity. The last entry
// is a true-up: its amount is forced to the actual remaining balance plus
// that period's interest, computed after rounding of the prior entries, so
// the schedule retires the principal exactly.
func amortizedSchedule(principal, annualRatePercent float64, months int, startDate time.Time, rounding models.RoundingPolicy) []models.ScheduleEntry {
	monthlyRate := annualRatePercent / 100 / 12

	var nominal float64
	if monthlyRate == 0 {
		nominal = principal / float64(months)
	} else {
		factor := math.Pow(1+monthlyRate, float64(months))
		nominal = principal * monthlyRate * factor / (factor - 1)
	}

	entries := make([]models.ScheduleEntry, 0, months)
	balance := principal
	for i := 1; i <= months; i++ {
		interest := Round(balance*monthlyRate, rounding)

		var amount, principalPart float64
		if i == months {
			amount = round2(balance + interest)
			principalPart = round2(balance)
			balance = 0
		} else {
			amount = Round(nominal, rounding)
			principalPart = round2(amount - interest)
			balance = round2(balance - principalPart)
		}

		entries = append(entries, models.ScheduleEntry{
			Month:     i,
			DueDate:   startDate.AddDate(0, i, 0),
			Amount:    amount,
			Principal: principalPart,
			Interest:  interest,
			Status:    models.EntryPending,
		})
	}
	return entries
}
