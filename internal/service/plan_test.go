package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/installment-service/internal/ledger"
	"github.com/ledgerline/installment-service/internal/models"
	"github.com/ledgerline/installment-service/internal/repository"
)

func TestCreatePlanDefaults(t *testing.T) {
	store := repository.NewMemory()
	svc := newTestService(store)

	plan, err := svc.CreatePlan(ctx, PlanInput{
		CustomerID:  7,
		TotalAmount: 13000,
		DownPayment: 1000,
		TermMonths:  12,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ModelEqual, plan.InterestModel)
	assert.Equal(t, models.RoundNearest, plan.Rounding)
	assert.InDelta(t, 12000.0, plan.Principal, ledger.Epsilon)
	require.Len(t, plan.Schedule, 12)
	assert.InDelta(t, 12000.0, plan.RemainingBalance, ledger.Epsilon)
}

func TestCreatePlanDegenerateTermsYieldEmptySchedule(t *testing.T) {
	store := repository.NewMemory()
	svc := newTestService(store)

	// fully paid up front: nothing to collect, not an error
	plan, err := svc.CreatePlan(ctx, PlanInput{
		CustomerID:  7,
		TotalAmount: 5000,
		DownPayment: 5000,
		TermMonths:  12,
	})
	require.NoError(t, err)
	assert.Empty(t, plan.Schedule)
	assert.Zero(t, plan.RemainingBalance)
}

func TestCreatePlanValidation(t *testing.T) {
	store := repository.NewMemory()
	svc := newTestService(store)

	_, err := svc.CreatePlan(ctx, PlanInput{TotalAmount: 100, DownPayment: 200, TermMonths: 6})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreatePlan(ctx, PlanInput{TotalAmount: 100, TermMonths: 6, InterestModel: "weekly"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreatePlan(ctx, PlanInput{TotalAmount: 100, TermMonths: 6, Rounding: "bankers"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRecalculatePlanRepairsDrift(t *testing.T) {
	store := repository.NewMemory()
	svc := newTestService(store)
	plan := seedPlan(t, svc, 12000, 12, models.ModelEqual)

	// simulate drift left behind by a racing writer
	require.NoError(t, store.UpdatePlanLedger(ctx, plan.ID, plan.Schedule, 4242))

	repairedPlan, repaired, err := svc.RecalculatePlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.True(t, repaired)
	assert.InDelta(t, 12000.0, repairedPlan.RemainingBalance, ledger.Epsilon)

	// a second pass finds nothing to repair
	_, repaired, err = svc.RecalculatePlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.False(t, repaired)
}

func TestRegisterAndLogin(t *testing.T) {
	store := repository.NewMemory()
	svc := newTestService(store)

	user, err := svc.Register(ctx, "cashier", "cashier@example.com", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Zero(t, user.CashBalance)

	token, err := svc.Login(ctx, "cashier@example.com", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = svc.Login(ctx, "cashier@example.com", "wrong")
	assert.Error(t, err)
}
