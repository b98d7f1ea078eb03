package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/installment-service/internal/models"
	"github.com/ledgerline/installment-service/internal/mutation"
	"github.com/ledgerline/installment-service/internal/repository"
)

// TransferInput carries a cash transfer between two staff balances.
type TransferInput struct {
	FromUser int64   `json:"from_user"`
	ToUser   int64   `json:"to_user"`
	Amount   float64 `json:"amount"`
}

// CreateTransfer moves cash from one user to another. The guarded debit of
// the sender leads the sequence: it is the only step allowed to fail the
// whole operation cleanly, since nothing has been written when its
// condition does not hold.
func (s *Service) CreateTransfer(ctx context.Context, input TransferInput) (*models.CashTransfer, error) {
	if input.Amount <= 0 {
		return nil, validationError("transfer amount must be positive")
	}
	if input.FromUser == input.ToUser {
		return nil, validationError("sender and recipient must differ")
	}
	if _, err := s.store.GetUser(ctx, input.FromUser); err != nil {
		return nil, validationError("unknown sender %d", input.FromUser)
	}
	if _, err := s.store.GetUser(ctx, input.ToUser); err != nil {
		return nil, validationError("unknown recipient %d", input.ToUser)
	}

	transfer := &models.CashTransfer{
		ID:        uuid.NewString(),
		FromUser:  input.FromUser,
		ToUser:    input.ToUser,
		Amount:    input.Amount,
		Status:    models.TransferCompleted,
		CreatedAt: time.Now(),
	}

	err := s.runProtocol(ctx, "transfer.create", func(st repository.Store) []mutation.Step {
		return []mutation.Step{
			{
				Name: "debit sender",
				Apply: func(ctx context.Context) error {
					return st.DebitBalanceGuarded(ctx, input.FromUser, input.Amount)
				},
				Compensate: func(ctx context.Context) error {
					return st.CreditBalance(ctx, input.FromUser, input.Amount)
				},
			},
			{
				Name: "credit recipient",
				Apply: func(ctx context.Context) error {
					return st.CreditBalance(ctx, input.ToUser, input.Amount)
				},
				Compensate: func(ctx context.Context) error {
					return st.DebitBalanceGuarded(ctx, input.ToUser, input.Amount)
				},
			},
			{
				Name: "insert transfer record",
				Apply: func(ctx context.Context) error {
					return st.CreateTransfer(ctx, transfer)
				},
				Compensate: func(ctx context.Context) error {
					return st.DeleteTransfer(ctx, transfer.ID)
				},
			},
		}
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("Transfer %s completed: %.2f from user %d to user %d",
		transfer.ID, transfer.Amount, transfer.FromUser, transfer.ToUser)
	return transfer, nil
}

// DeleteTransfer reverses a completed transfer: the recipient's balance
// must still cover the amount, then the sender is credited back and the
// record removed.
func (s *Service) DeleteTransfer(ctx context.Context, transferID string) error {
	transfer, err := s.store.GetTransfer(ctx, transferID)
	if err != nil {
		return err
	}

	err = s.runProtocol(ctx, "transfer.delete", func(st repository.Store) []mutation.Step {
		return []mutation.Step{
			{
				Name: "debit recipient",
				Apply: func(ctx context.Context) error {
					return st.DebitBalanceGuarded(ctx, transfer.ToUser, transfer.Amount)
				},
				Compensate: func(ctx context.Context) error {
					return st.CreditBalance(ctx, transfer.ToUser, transfer.Amount)
				},
			},
			{
				Name: "credit sender",
				Apply: func(ctx context.Context) error {
					return st.CreditBalance(ctx, transfer.FromUser, transfer.Amount)
				},
				Compensate: func(ctx context.Context) error {
					return st.DebitBalanceGuarded(ctx, transfer.FromUser, transfer.Amount)
				},
			},
			{
				Name: "remove transfer record",
				Apply: func(ctx context.Context) error {
					return st.DeleteTransfer(ctx, transfer.ID)
				},
				Compensate: func(ctx context.Context) error {
					return st.CreateTransfer(ctx, transfer)
				},
			},
		}
	})
	if err != nil {
		return err
	}

	s.log.Infof("Transfer %s deleted", transfer.ID)
	return nil
}
