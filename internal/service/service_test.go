package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/installment-service/internal/cache"
	"github.com/ledgerline/installment-service/internal/config"
	"github.com/ledgerline/installment-service/internal/models"
	"github.com/ledgerline/installment-service/internal/repository"
)

var ctx = context.Background()

func newTestService(store *repository.Memory) *Service {
	logger, _ := test.NewNullLogger()
	return NewService(store, cache.NewMemoryCache(), nil, logger, &config.Config{JWTSecret: "secret"})
}

var seededUsers int

func seedUser(t *testing.T, store *repository.Memory, balance float64) int64 {
	t.Helper()
	seededUsers++
	user := &models.User{
		Username:    "staff",
		Email:       fmt.Sprintf("staff%d@example.com", seededUsers),
		CashBalance: balance,
	}
	require.NoError(t, store.CreateUser(ctx, user))
	return user.ID
}

func seedPlan(t *testing.T, svc *Service, principal float64, months int, model models.InterestModel) *models.Plan {
	t.Helper()
	rate := 0.0
	if model != models.ModelEqual {
		rate = 12
	}
	plan, err := svc.CreatePlan(ctx, PlanInput{
		CustomerID:    1,
		TotalAmount:   principal,
		DownPayment:   0,
		AnnualRate:    &rate,
		TermMonths:    months,
		InterestModel: model,
		Rounding:      models.RoundNearest,
	})
	require.NoError(t, err)
	return plan
}

func balanceOf(t *testing.T, store *repository.Memory, userID int64) float64 {
	t.Helper()
	user, err := store.GetUser(ctx, userID)
	require.NoError(t, err)
	return user.CashBalance
}
