package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/installment-service/internal/models"
)

func equalSchedule500(n int) []models.ScheduleEntry {
	return GenerateSchedule(500*float64(n), 0, n, start, models.RoundNearest, models.ModelEqual)
}

func appliedSum(alloc Allocation) float64 {
	var sum float64
	for _, a := range alloc.Applied {
		sum += a.Applied
	}
	return sum
}

func TestAllocateWaterfall(t *testing.T) {
	schedule := equalSchedule500(3)

	alloc := Allocate(schedule, models.ModelEqual, 700, models.RoundNearest)

	require.Len(t, alloc.Applied, 2)
	assert.Equal(t, models.AppliedAmount{Month: 1, Applied: 500}, alloc.Applied[0])
	assert.Equal(t, models.AppliedAmount{Month: 2, Applied: 200}, alloc.Applied[1])
	assert.InDelta(t, 700.0, alloc.Breakdown.Principal, Epsilon)
	assert.Zero(t, alloc.Breakdown.Interest)
	assert.Zero(t, alloc.Breakdown.Fees)
}

func TestAllocateSkipsPaidEntries(t *testing.T) {
	schedule := equalSchedule500(3)
	schedule[0].PaidAmount = 500
	schedule[0].Status = models.EntryPaid
	schedule[1].PaidAmount = 499.9995 // within epsilon of paid

	alloc := Allocate(schedule, models.ModelEqual, 100, models.RoundNearest)

	require.Len(t, alloc.Applied, 1)
	assert.Equal(t, 3, alloc.Applied[0].Month)
	assert.InDelta(t, 100.0, alloc.Applied[0].Applied, Epsilon)
}

func TestAllocateOverpayment(t *testing.T) {
	schedule := equalSchedule500(2)

	alloc := Allocate(schedule, models.ModelEqual, 1300, models.RoundNearest)

	require.Len(t, alloc.Applied, 3)
	assert.Equal(t, models.AppliedAmount{Month: 1, Applied: 500}, alloc.Applied[0])
	assert.Equal(t, models.AppliedAmount{Month: 2, Applied: 500}, alloc.Applied[1])
	assert.Equal(t, models.AppliedAmount{Month: models.OverpaymentMonth, Applied: 300}, alloc.Applied[2])
	// excess is classified entirely as principal
	assert.InDelta(t, 1300.0, alloc.Breakdown.Principal, Epsilon)
}

func TestAllocateConservation(t *testing.T) {
	schedule := GenerateSchedule(10000, 12, 10, start, models.RoundNearest, models.ModelAmortized)
	schedule[0].PaidAmount = 400

	for _, amount := range []float64{0.01, 137.42, 1055.82, 5000, 20000} {
		alloc := Allocate(schedule, models.ModelAmortized, amount, models.RoundNearest)
		assert.InDeltaf(t, amount, appliedSum(alloc), Epsilon, "amount %.2f not conserved", amount)
		assert.InDeltaf(t, amount, alloc.Breakdown.Principal+alloc.Breakdown.Interest, 0.01,
			"breakdown for %.2f does not add up", amount)
	}
}

func TestAllocateConservesSubCentAmounts(t *testing.T) {
	amount := 10000.0 / 3 // 3333.3333..., finer than 2 decimals

	for _, policy := range []models.RoundingPolicy{models.RoundNearest, models.RoundUp, models.RoundDown} {
		schedule := GenerateSchedule(10000, 12, 10, start, policy, models.ModelAmortized)

		alloc := Allocate(schedule, models.ModelAmortized, amount, policy)
		assert.InDeltaf(t, amount, appliedSum(alloc), Epsilon, "policy %s not conserved", policy)
	}

	// the residue of a sub-cent overpayment stays in the -1 bucket
	schedule := equalSchedule500(1)
	alloc := Allocate(schedule, models.ModelEqual, 500+1.0/3, models.RoundNearest)
	require.Len(t, alloc.Applied, 2)
	assert.Equal(t, models.OverpaymentMonth, alloc.Applied[1].Month)
	assert.InDelta(t, 500+1.0/3, appliedSum(alloc), Epsilon)
}

func TestAllocateProportionalSplit(t *testing.T) {
	schedule := GenerateSchedule(10000, 12, 10, start, models.RoundNearest, models.ModelFlat)
	// entries are 1100 = 1000 principal + 100 interest

	alloc := Allocate(schedule, models.ModelFlat, 550, models.RoundNearest)

	require.Len(t, alloc.Applied, 1)
	assert.InDelta(t, 50.0, alloc.Breakdown.Interest, Epsilon)
	assert.InDelta(t, 500.0, alloc.Breakdown.Principal, Epsilon)
}

func TestAllocateToMonth(t *testing.T) {
	schedule := equalSchedule500(3)

	alloc, err := AllocateToMonth(schedule, models.ModelEqual, 300, models.RoundNearest, 2)
	require.NoError(t, err)
	require.Len(t, alloc.Applied, 1)
	assert.Equal(t, models.AppliedAmount{Month: 2, Applied: 300}, alloc.Applied[0])

	// month 1 stays untouched by a direct payment
	assert.Zero(t, schedule[0].PaidAmount)
}

func TestAllocateToMonthUnknown(t *testing.T) {
	schedule := equalSchedule500(3)

	_, err := AllocateToMonth(schedule, models.ModelEqual, 300, models.RoundNearest, 7)
	assert.Error(t, err)
}

func TestAllocateToMonthOverflow(t *testing.T) {
	schedule := equalSchedule500(3)

	alloc, err := AllocateToMonth(schedule, models.ModelEqual, 800, models.RoundNearest, 1)
	require.NoError(t, err)
	require.Len(t, alloc.Applied, 2)
	assert.Equal(t, models.AppliedAmount{Month: 1, Applied: 500}, alloc.Applied[0])
	assert.Equal(t, models.AppliedAmount{Month: models.OverpaymentMonth, Applied: 300}, alloc.Applied[1])
}

func TestApplyAllocation(t *testing.T) {
	schedule := equalSchedule500(3)
	alloc := Allocate(schedule, models.ModelEqual, 700, models.RoundNearest)
	paidAt := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	ApplyAllocation(schedule, alloc.Applied, paidAt)

	assert.Equal(t, models.EntryPaid, schedule[0].Status)
	require.NotNil(t, schedule[0].PaidDate)
	assert.Equal(t, paidAt, *schedule[0].PaidDate)

	assert.Equal(t, models.EntryPending, schedule[1].Status)
	assert.InDelta(t, 200.0, schedule[1].PaidAmount, Epsilon)
	assert.Nil(t, schedule[1].PaidDate)
}

func TestReversalRestoresSchedule(t *testing.T) {
	schedule := GenerateSchedule(10000, 12, 10, start, models.RoundNearest, models.ModelAmortized)
	original := make([]models.ScheduleEntry, len(schedule))
	copy(original, schedule)

	alloc := Allocate(schedule, models.ModelAmortized, 2500, models.RoundNearest)
	ApplyAllocation(schedule, alloc.Applied, time.Now())
	ReverseAllocation(schedule, alloc.Applied)

	for i := range schedule {
		assert.InDelta(t, original[i].PaidAmount, schedule[i].PaidAmount, Epsilon)
		assert.Equal(t, original[i].Status, schedule[i].Status)
		assert.Nil(t, schedule[i].PaidDate)
	}
}

func TestReverseIgnoresOverpaymentBucket(t *testing.T) {
	schedule := equalSchedule500(2)
	alloc := Allocate(schedule, models.ModelEqual, 1300, models.RoundNearest)
	ApplyAllocation(schedule, alloc.Applied, time.Now())
	ReverseAllocation(schedule, alloc.Applied)

	for i := range schedule {
		assert.Zero(t, schedule[i].PaidAmount)
		assert.Equal(t, models.EntryPending, schedule[i].Status)
	}
}
