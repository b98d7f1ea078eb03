package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/installment-service/internal/ledger"
	"github.com/ledgerline/installment-service/internal/repository"
)

func TestCreateTransfer(t *testing.T) {
	store := repository.NewMemory()
	svc := newTestService(store)
	sender := seedUser(t, store, 300)
	recipient := seedUser(t, store, 10)

	transfer, err := svc.CreateTransfer(ctx, TransferInput{FromUser: sender, ToUser: recipient, Amount: 120})
	require.NoError(t, err)
	assert.Equal(t, "completed", transfer.Status)

	assert.InDelta(t, 180.0, balanceOf(t, store, sender), ledger.Epsilon)
	assert.InDelta(t, 130.0, balanceOf(t, store, recipient), ledger.Epsilon)

	stored, err := store.GetTransfer(ctx, transfer.ID)
	require.NoError(t, err)
	assert.InDelta(t, 120.0, stored.Amount, ledger.Epsilon)
}

func TestCreateTransferInsufficientFunds(t *testing.T) {
	store := repository.NewMemory()
	svc := newTestService(store)
	sender := seedUser(t, store, 50)
	recipient := seedUser(t, store, 0)

	_, err := svc.CreateTransfer(ctx, TransferInput{FromUser: sender, ToUser: recipient, Amount: 100})
	require.ErrorIs(t, err, repository.ErrInsufficientFunds)

	// rejected cleanly: nothing was written
	assert.InDelta(t, 50.0, balanceOf(t, store, sender), ledger.Epsilon)
	assert.Zero(t, balanceOf(t, store, recipient))
}

func TestCreateTransferValidation(t *testing.T) {
	store := repository.NewMemory()
	svc := newTestService(store)
	sender := seedUser(t, store, 100)

	_, err := svc.CreateTransfer(ctx, TransferInput{FromUser: sender, ToUser: sender, Amount: 10})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateTransfer(ctx, TransferInput{FromUser: sender, ToUser: 404, Amount: 10})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateTransfer(ctx, TransferInput{FromUser: sender, ToUser: sender + 1, Amount: -5})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateTransferCompensatesOnFailure(t *testing.T) {
	store := repository.NewMemory()
	svc := newTestService(store)
	sender := seedUser(t, store, 100)
	recipient := seedUser(t, store, 0)
	store.FailOn["CreateTransfer"] = errors.New("connection reset")

	_, err := svc.CreateTransfer(ctx, TransferInput{FromUser: sender, ToUser: recipient, Amount: 60})
	require.ErrorIs(t, err, ErrOperationFailed)

	// sender restored to the pre-transfer value, no record persisted
	assert.InDelta(t, 100.0, balanceOf(t, store, sender), ledger.Epsilon)
	assert.Zero(t, balanceOf(t, store, recipient))
}

func TestCreateTransferTransactionalRollback(t *testing.T) {
	store := repository.NewMemory()
	store.Atomic = true
	svc := newTestService(store)
	sender := seedUser(t, store, 100)
	recipient := seedUser(t, store, 0)
	store.FailOn["CreateTransfer"] = errors.New("connection reset")

	_, err := svc.CreateTransfer(ctx, TransferInput{FromUser: sender, ToUser: recipient, Amount: 60})
	require.ErrorIs(t, err, ErrOperationFailed)

	assert.InDelta(t, 100.0, balanceOf(t, store, sender), ledger.Epsilon)
	assert.Zero(t, balanceOf(t, store, recipient))
}

func TestDeleteTransferRefunds(t *testing.T) {
	store := repository.NewMemory()
	svc := newTestService(store)
	sender := seedUser(t, store, 200)
	recipient := seedUser(t, store, 0)

	transfer, err := svc.CreateTransfer(ctx, TransferInput{FromUser: sender, ToUser: recipient, Amount: 75})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTransfer(ctx, transfer.ID))

	assert.InDelta(t, 200.0, balanceOf(t, store, sender), ledger.Epsilon)
	assert.Zero(t, balanceOf(t, store, recipient))
	_, err = store.GetTransfer(ctx, transfer.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteTransferBlockedWhenRecipientSpent(t *testing.T) {
	store := repository.NewMemory()
	svc := newTestService(store)
	sender := seedUser(t, store, 200)
	recipient := seedUser(t, store, 0)

	transfer, err := svc.CreateTransfer(ctx, TransferInput{FromUser: sender, ToUser: recipient, Amount: 75})
	require.NoError(t, err)
	_, err = svc.CreateExpense(ctx, ExpenseInput{UserID: recipient, Amount: 75, Description: "supplies"})
	require.NoError(t, err)

	err = svc.DeleteTransfer(ctx, transfer.ID)
	require.ErrorIs(t, err, repository.ErrInsufficientFunds)

	// no partial refund happened
	assert.InDelta(t, 125.0, balanceOf(t, store, sender), ledger.Epsilon)
	assert.Zero(t, balanceOf(t, store, recipient))
}

func TestExpenseLifecycle(t *testing.T) {
	store := repository.NewMemory()
	svc := newTestService(store)
	spender := seedUser(t, store, 200)

	expense, err := svc.CreateExpense(ctx, ExpenseInput{UserID: spender, Amount: 80, Description: "repairs"})
	require.NoError(t, err)
	assert.InDelta(t, 120.0, balanceOf(t, store, spender), ledger.Epsilon)

	require.NoError(t, svc.DeleteExpense(ctx, expense.ID))
	assert.InDelta(t, 200.0, balanceOf(t, store, spender), ledger.Epsilon)
	_, err = store.GetExpense(ctx, expense.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestExpenseInsufficientFunds(t *testing.T) {
	store := repository.NewMemory()
	svc := newTestService(store)
	spender := seedUser(t, store, 30)

	_, err := svc.CreateExpense(ctx, ExpenseInput{UserID: spender, Amount: 80, Description: "repairs"})
	require.ErrorIs(t, err, repository.ErrInsufficientFunds)
	assert.InDelta(t, 30.0, balanceOf(t, store, spender), ledger.Epsilon)
}
