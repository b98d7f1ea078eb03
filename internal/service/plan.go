package service

import (
	"context"
	"time"

	"github.com/ledgerline/installment-service/internal/ledger"
	"github.com/ledgerline/installment-service/internal/models"
)

// PlanInput carries the terms of a new installment plan. A nil AnnualRate
// falls back to the reference key rate.
type PlanInput struct {
	CustomerID    int64                 `json:"customer_id"`
	TotalAmount   float64               `json:"total_amount"`
	DownPayment   float64               `json:"down_payment"`
	AnnualRate    *float64              `json:"annual_rate"`
	TermMonths    int                   `json:"term_months"`
	InterestModel models.InterestModel  `json:"interest_model"`
	Rounding      models.RoundingPolicy `json:"rounding_policy"`
	StartDate     time.Time             `json:"start_date"`
}

// CreatePlan validates the terms, generates the repayment schedule and
// persists the plan with the schedule embedded. A non-positive principal or
// term yields a plan with an empty schedule: nothing to collect, not an
// error.
func (s *Service) CreatePlan(ctx context.Context, input PlanInput) (*models.Plan, error) {
	if input.TotalAmount < 0 {
		return nil, validationError("total amount must not be negative")
	}
	if input.DownPayment < 0 || input.DownPayment > input.TotalAmount {
		return nil, validationError("down payment must be between 0 and the total amount")
	}
	if input.InterestModel == "" {
		input.InterestModel = models.ModelEqual
	}
	if !input.InterestModel.Valid() {
		return nil, validationError("unknown interest model %q", input.InterestModel)
	}
	if input.Rounding == "" {
		input.Rounding = models.RoundNearest
	}
	if !input.Rounding.Valid() {
		return nil, validationError("unknown rounding policy %q", input.Rounding)
	}
	if input.StartDate.IsZero() {
		input.StartDate = time.Now()
	}

	rate := 0.0
	if input.AnnualRate != nil {
		if *input.AnnualRate < 0 {
			return nil, validationError("annual rate must not be negative")
		}
		rate = *input.AnnualRate
	} else if input.InterestModel != models.ModelEqual && s.rates != nil {
		keyRate, err := s.rates.KeyRate(ctx)
		if err != nil {
			s.log.Warnf("Failed to fetch reference rate, defaulting to 0: %v", err)
		} else {
			rate = keyRate
		}
	}

	principal := input.TotalAmount - input.DownPayment
	schedule := ledger.GenerateSchedule(principal, rate, input.TermMonths, input.StartDate, input.Rounding, input.InterestModel)

	plan := &models.Plan{
		CustomerID:       input.CustomerID,
		TotalAmount:      input.TotalAmount,
		DownPayment:      input.DownPayment,
		Principal:        principal,
		AnnualRate:       rate,
		TermMonths:       input.TermMonths,
		InterestModel:    input.InterestModel,
		Rounding:         input.Rounding,
		StartDate:        input.StartDate,
		Schedule:         schedule,
		RemainingBalance: ledger.RemainingBalance(schedule),
	}
	if err := s.store.CreatePlan(ctx, plan); err != nil {
		s.log.Errorf("Failed to create plan: %v", err)
		return nil, ErrOperationFailed
	}

	s.log.Infof("Plan %d created: principal %.2f over %d months (%s)",
		plan.ID, plan.Principal, plan.TermMonths, plan.InterestModel)
	return plan, nil
}

// GetPlan retrieves a plan with its schedule.
func (s *Service) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	return s.store.GetPlan(ctx, id)
}

// RecalculatePlan rederives the outstanding balance from the schedule and
// overwrites the cached figure when they disagree by more than the rounding
// epsilon. The returned bool reports whether a repair was written.
func (s *Service) RecalculatePlan(ctx context.Context, planID int64) (*models.Plan, bool, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, false, err
	}
	if !ledger.Drifted(plan.RemainingBalance, plan.Schedule) {
		return plan, false, nil
	}

	recomputed := ledger.RemainingBalance(plan.Schedule)
	if err := s.store.UpdatePlanLedger(ctx, plan.ID, plan.Schedule, recomputed); err != nil {
		s.log.Errorf("Failed to repair plan %d balance: %v", plan.ID, err)
		return nil, false, ErrOperationFailed
	}
	s.log.Warnf("Plan %d balance drift repaired: %.2f -> %.2f", plan.ID, plan.RemainingBalance, recomputed)
	plan.RemainingBalance = recomputed
	return plan, true, nil
}
