package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/installment-service/internal/ledger"
	"github.com/ledgerline/installment-service/internal/models"
	"github.com/ledgerline/installment-service/internal/mutation"
	"github.com/ledgerline/installment-service/internal/repository"
)

// IdempotencyWindow is how long an identical payment submission counts as a
// client double-submit rather than a new payment.
const IdempotencyWindow = 5 * time.Second

// PaymentInput carries a payment submission. TargetMonth 0 waterfalls the
// amount across the schedule; a positive value targets that single entry.
type PaymentInput struct {
	PlanID      int64   `json:"plan_id"`
	Amount      float64 `json:"amount"`
	TargetMonth int     `json:"target_month"`
	RecordedBy  int64   `json:"recorded_by"`
	ReceivedBy  int64   `json:"received_by"`
}

// CreatePayment records a payment against a plan. The returned bool is true
// when the submission was suppressed as a duplicate and the prior record is
// returned instead.
func (s *Service) CreatePayment(ctx context.Context, input PaymentInput) (*models.Payment, bool, error) {
	if input.Amount <= 0 {
		return nil, false, validationError("payment amount must be positive")
	}
	if input.TargetMonth < 0 {
		return nil, false, validationError("unknown target month %d", input.TargetMonth)
	}

	// Idempotency guard: the store is the authority, the cache reservation
	// closes the race between two in-flight submissions.
	since := time.Now().Add(-IdempotencyWindow)
	prior, err := s.store.FindRecentPayment(ctx, input.PlanID, input.Amount, input.RecordedBy, since)
	if err == nil {
		s.log.Infof("Duplicate payment suppressed for plan %d", input.PlanID)
		return prior, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.log.Errorf("Failed to check for duplicate payment on plan %d: %v", input.PlanID, err)
		return nil, false, ErrOperationFailed
	}
	plan, err := s.store.GetPlan(ctx, input.PlanID)
	if err != nil {
		return nil, false, err
	}
	if len(plan.Schedule) == 0 {
		return nil, false, validationError("plan %d has nothing to collect", plan.ID)
	}
	if _, err := s.store.GetUser(ctx, input.ReceivedBy); err != nil {
		return nil, false, validationError("unknown receiving user %d", input.ReceivedBy)
	}

	schedule := cloneSchedule(plan.Schedule)
	var alloc ledger.Allocation
	if input.TargetMonth > 0 {
		alloc, err = ledger.AllocateToMonth(schedule, plan.InterestModel, input.Amount, plan.Rounding, input.TargetMonth)
		if err != nil {
			return nil, false, validationError("%v", err)
		}
	} else {
		alloc = ledger.Allocate(schedule, plan.InterestModel, input.Amount, plan.Rounding)
	}

	now := time.Now()
	ledger.ApplyAllocation(schedule, alloc.Applied, now)
	remaining := ledger.RemainingBalance(schedule)

	payment := &models.Payment{
		ID:          uuid.NewString(),
		PlanID:      plan.ID,
		Amount:      input.Amount,
		TargetMonth: input.TargetMonth,
		Allocation:  alloc.Applied,
		Breakdown:   alloc.Breakdown,
		RecordedBy:  input.RecordedBy,
		ReceivedBy:  input.ReceivedBy,
		Status:      models.PaymentRecorded,
		CreatedAt:   now,
	}

	// Reserved only after validation so a rejected submission never blocks
	// a corrected retry within the window.
	key := fmt.Sprintf("payment:%d:%.2f:%d", input.PlanID, input.Amount, input.RecordedBy)
	reserved, err := s.cache.Reserve(ctx, key, IdempotencyWindow)
	if err != nil {
		s.log.Warnf("Idempotency cache unavailable: %v", err)
	} else if !reserved {
		return nil, false, ErrDuplicateSubmission
	}

	// Payments only add funds, so no guarded decrement leads the sequence:
	// the plan document moves first, then the ledger record, then the cash.
	err = s.runProtocol(ctx, "payment.create", func(st repository.Store) []mutation.Step {
		return []mutation.Step{
			{
				Name: "update plan ledger",
				Apply: func(ctx context.Context) error {
					return st.UpdatePlanLedger(ctx, plan.ID, schedule, remaining)
				},
				Compensate: func(ctx context.Context) error {
					return st.UpdatePlanLedger(ctx, plan.ID, plan.Schedule, plan.RemainingBalance)
				},
			},
			{
				Name: "insert payment record",
				Apply: func(ctx context.Context) error {
					return st.CreatePayment(ctx, payment)
				},
				Compensate: func(ctx context.Context) error {
					return st.DeletePayment(ctx, payment.ID)
				},
			},
			{
				Name: "credit receiver",
				Apply: func(ctx context.Context) error {
					return st.CreditBalance(ctx, input.ReceivedBy, input.Amount)
				},
				Compensate: func(ctx context.Context) error {
					return st.DebitBalanceGuarded(ctx, input.ReceivedBy, input.Amount)
				},
			},
		}
	})
	if err != nil {
		if releaseErr := s.cache.Release(ctx, key); releaseErr != nil {
			s.log.Warnf("Failed to release idempotency key %s: %v", key, releaseErr)
		}
		return nil, false, err
	}

	s.log.Infof("Payment %s recorded for plan %d: %.2f", payment.ID, plan.ID, payment.Amount)
	return payment, false, nil
}

// UpdatePayment replaces a payment's effect with new terms. The prior
// allocation is fully reversed and the new one applied as a fresh
// allocation within one protocol run; the record is never patched in place.
func (s *Service) UpdatePayment(ctx context.Context, paymentID string, input PaymentInput) (*models.Payment, error) {
	if input.Amount <= 0 {
		return nil, validationError("payment amount must be positive")
	}
	if input.TargetMonth < 0 {
		return nil, validationError("unknown target month %d", input.TargetMonth)
	}
	prior, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	plan, err := s.store.GetPlan(ctx, prior.PlanID)
	if err != nil {
		return nil, err
	}
	if input.ReceivedBy != 0 && input.ReceivedBy != prior.ReceivedBy {
		if _, err := s.store.GetUser(ctx, input.ReceivedBy); err != nil {
			return nil, validationError("unknown receiving user %d", input.ReceivedBy)
		}
	} else if input.ReceivedBy == 0 {
		input.ReceivedBy = prior.ReceivedBy
	}
	if input.RecordedBy == 0 {
		input.RecordedBy = prior.RecordedBy
	}

	schedule := cloneSchedule(plan.Schedule)
	ledger.ReverseAllocation(schedule, prior.Allocation)

	var alloc ledger.Allocation
	if input.TargetMonth > 0 {
		alloc, err = ledger.AllocateToMonth(schedule, plan.InterestModel, input.Amount, plan.Rounding, input.TargetMonth)
		if err != nil {
			return nil, validationError("%v", err)
		}
	} else {
		alloc = ledger.Allocate(schedule, plan.InterestModel, input.Amount, plan.Rounding)
	}

	now := time.Now()
	ledger.ApplyAllocation(schedule, alloc.Applied, now)
	remaining := ledger.RemainingBalance(schedule)

	updated := *prior
	updated.Amount = input.Amount
	updated.TargetMonth = input.TargetMonth
	updated.Allocation = alloc.Applied
	updated.Breakdown = alloc.Breakdown
	updated.RecordedBy = input.RecordedBy
	updated.ReceivedBy = input.ReceivedBy

	err = s.runProtocol(ctx, "payment.update", func(st repository.Store) []mutation.Step {
		return []mutation.Step{
			{
				Name: "replace plan ledger",
				Apply: func(ctx context.Context) error {
					return st.UpdatePlanLedger(ctx, plan.ID, schedule, remaining)
				},
				Compensate: func(ctx context.Context) error {
					return st.UpdatePlanLedger(ctx, plan.ID, plan.Schedule, plan.RemainingBalance)
				},
			},
			{
				Name: "debit prior receiver",
				Apply: func(ctx context.Context) error {
					return st.DebitBalanceGuarded(ctx, prior.ReceivedBy, prior.Amount)
				},
				Compensate: func(ctx context.Context) error {
					return st.CreditBalance(ctx, prior.ReceivedBy, prior.Amount)
				},
			},
			{
				Name: "credit new receiver",
				Apply: func(ctx context.Context) error {
					return st.CreditBalance(ctx, updated.ReceivedBy, updated.Amount)
				},
				Compensate: func(ctx context.Context) error {
					return st.DebitBalanceGuarded(ctx, updated.ReceivedBy, updated.Amount)
				},
			},
			{
				Name: "replace payment record",
				Apply: func(ctx context.Context) error {
					return st.UpdatePayment(ctx, &updated)
				},
				Compensate: func(ctx context.Context) error {
					return st.UpdatePayment(ctx, prior)
				},
			},
		}
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("Payment %s replaced on plan %d: %.2f", updated.ID, plan.ID, updated.Amount)
	return &updated, nil
}

// DeletePayment reverses a payment's full effect and removes its record, in
// the inverse of the creation order: schedule and balance revert first, then
// the receiver's cash, then the ledger record.
func (s *Service) DeletePayment(ctx context.Context, paymentID string) error {
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	plan, err := s.store.GetPlan(ctx, payment.PlanID)
	if err != nil {
		return err
	}

	schedule := cloneSchedule(plan.Schedule)
	ledger.ReverseAllocation(schedule, payment.Allocation)
	remaining := ledger.RemainingBalance(schedule)

	err = s.runProtocol(ctx, "payment.delete", func(st repository.Store) []mutation.Step {
		return []mutation.Step{
			{
				Name: "revert plan ledger",
				Apply: func(ctx context.Context) error {
					return st.UpdatePlanLedger(ctx, plan.ID, schedule, remaining)
				},
				Compensate: func(ctx context.Context) error {
					return st.UpdatePlanLedger(ctx, plan.ID, plan.Schedule, plan.RemainingBalance)
				},
			},
			{
				Name: "debit receiver",
				Apply: func(ctx context.Context) error {
					return st.DebitBalanceGuarded(ctx, payment.ReceivedBy, payment.Amount)
				},
				Compensate: func(ctx context.Context) error {
					return st.CreditBalance(ctx, payment.ReceivedBy, payment.Amount)
				},
			},
			{
				Name: "remove payment record",
				Apply: func(ctx context.Context) error {
					return st.DeletePayment(ctx, payment.ID)
				},
				Compensate: func(ctx context.Context) error {
					return st.CreatePayment(ctx, payment)
				},
			},
		}
	})
	if err != nil {
		return err
	}

	s.log.Infof("Payment %s deleted from plan %d", payment.ID, plan.ID)
	return nil
}

// GetPayment retrieves a payment by id.
func (s *Service) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return s.store.GetPayment(ctx, paymentID)
}
