package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/installment-service/internal/models"
	"github.com/ledgerline/installment-service/internal/mutation"
	"github.com/ledgerline/installment-service/internal/repository"
)

// ExpenseInput carries cash spent out of a staff balance.
type ExpenseInput struct {
	UserID      int64   `json:"user_id"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// CreateExpense debits the spender's balance, gated on sufficient funds,
// and persists the expense record.
func (s *Service) CreateExpense(ctx context.Context, input ExpenseInput) (*models.Expense, error) {
	if input.Amount <= 0 {
		return nil, validationError("expense amount must be positive")
	}
	if _, err := s.store.GetUser(ctx, input.UserID); err != nil {
		return nil, validationError("unknown user %d", input.UserID)
	}

	expense := &models.Expense{
		ID:          uuid.NewString(),
		UserID:      input.UserID,
		Amount:      input.Amount,
		Description: input.Description,
		CreatedAt:   time.Now(),
	}

	err := s.runProtocol(ctx, "expense.create", func(st repository.Store) []mutation.Step {
		return []mutation.Step{
			{
				Name: "debit spender",
				Apply: func(ctx context.Context) error {
					return st.DebitBalanceGuarded(ctx, input.UserID, input.Amount)
				},
				Compensate: func(ctx context.Context) error {
					return st.CreditBalance(ctx, input.UserID, input.Amount)
				},
			},
			{
				Name: "insert expense record",
				Apply: func(ctx context.Context) error {
					return st.CreateExpense(ctx, expense)
				},
				Compensate: func(ctx context.Context) error {
					return st.DeleteExpense(ctx, expense.ID)
				},
			},
		}
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("Expense %s recorded for user %d: %.2f", expense.ID, expense.UserID, expense.Amount)
	return expense, nil
}

// DeleteExpense refunds the spender's balance and removes the record.
func (s *Service) DeleteExpense(ctx context.Context, expenseID string) error {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}

	err = s.runProtocol(ctx, "expense.delete", func(st repository.Store) []mutation.Step {
		return []mutation.Step{
			{
				Name: "refund spender",
				Apply: func(ctx context.Context) error {
					return st.CreditBalance(ctx, expense.UserID, expense.Amount)
				},
				Compensate: func(ctx context.Context) error {
					return st.DebitBalanceGuarded(ctx, expense.UserID, expense.Amount)
				},
			},
			{
				Name: "remove expense record",
				Apply: func(ctx context.Context) error {
					return st.DeleteExpense(ctx, expense.ID)
				},
				Compensate: func(ctx context.Context) error {
					return st.CreateExpense(ctx, expense)
				},
			},
		}
	})
	if err != nil {
		return err
	}

	s.log.Infof("Expense %s deleted", expense.ID)
	return nil
}
