package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerline/installment-service/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInsufficientFunds is returned when a guarded balance decrement fails
// its condition. Nothing has been written when this is returned.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Store is the persistence boundary of the ledger engine. A plan's schedule
// and a user's cash balance are the only shared mutable resources; only the
// balance mutation protocol may write them.
type Store interface {
	// SupportsAtomicMultiWrite reports whether the backend can currently
	// run all writes of one operation atomically. It is probed per
	// operation, never cached, since deployment topology can change.
	SupportsAtomicMultiWrite(ctx context.Context) bool
	// WithinTx runs fn against a transaction-bound store. Any error from
	// fn aborts the transaction with no partial state visible.
	WithinTx(ctx context.Context, fn func(Store) error) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	// CreditBalance unconditionally adds amount to a user's cash balance.
	CreditBalance(ctx context.Context, userID int64, amount float64) error
	// DebitBalanceGuarded subtracts amount only if the current balance
	// covers it, as a single conditional write. Returns
	// ErrInsufficientFunds when the condition does not hold.
	DebitBalanceGuarded(ctx context.Context, userID int64, amount float64) error

	CreatePlan(ctx context.Context, plan *models.Plan) error
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	ListPlans(ctx context.Context) ([]models.Plan, error)
	// UpdatePlanLedger persists a plan's schedule and cached remaining
	// balance as one write.
	UpdatePlanLedger(ctx context.Context, planID int64, schedule []models.ScheduleEntry, remainingBalance float64) error

	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	DeletePayment(ctx context.Context, id string) error
	// FindRecentPayment returns the most recent recorded payment matching
	// plan, amount and recorder created at or after since, or ErrNotFound.
	FindRecentPayment(ctx context.Context, planID int64, amount float64, recordedBy int64, since time.Time) (*models.Payment, error)

	CreateTransfer(ctx context.Context, transfer *models.CashTransfer) error
	GetTransfer(ctx context.Context, id string) (*models.CashTransfer, error)
	DeleteTransfer(ctx context.Context, id string) error

	CreateExpense(ctx context.Context, expense *models.Expense) error
	GetExpense(ctx context.Context, id string) (*models.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
}
