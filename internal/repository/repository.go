package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ledgerline/installment-service/internal/models"
)

// queryer is satisfied by both *sql.DB and *sql.Tx, so the same methods
// serve the plain and the transaction-bound repository.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository provides database operations backed by Postgres.
type Repository struct {
	db *sql.DB
	q  queryer
}

// NewRepository initializes a new repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, q: db}
}

// SupportsAtomicMultiWrite probes whether the backend currently accepts
// transactions by opening and immediately rolling one back. The probe runs
// per operation and is never cached process-wide.
func (r *Repository) SupportsAtomicMultiWrite(ctx context.Context) bool {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false
	}
	_ = tx.Rollback()
	return true
}

// WithinTx runs fn against a transaction-bound copy of the repository.
func (r *Repository) WithinTx(ctx context.Context, fn func(Store) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&Repository{db: r.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateUser creates a new user in the database.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO ledger.users (username, email, password_hash, cash_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.q.QueryRowContext(ctx, query, user.Username, user.Email, user.PasswordHash, user.CashBalance).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id.
func (r *Repository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, cash_balance, created_at
		FROM ledger.users
		WHERE id = $1`
	err := r.q.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CashBalance, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindUserByEmail retrieves a user by email.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, cash_balance, created_at
		FROM ledger.users
		WHERE email = $1`
	err := r.q.QueryRowContext(ctx, query, email).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CashBalance, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// CreditBalance adds amount to a user's cash balance.
func (r *Repository) CreditBalance(ctx context.Context, userID int64, amount float64) error {
	query := `
		UPDATE ledger.users
		SET cash_balance = cash_balance + $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`
	res, err := r.q.ExecContext(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DebitBalanceGuarded subtracts amount from a user's cash balance as a
// single conditional write. Either the whole decrement happens or nothing
// does, so a read-then-write race cannot drive the balance negative.
func (r *Repository) DebitBalanceGuarded(ctx context.Context, userID int64, amount float64) error {
	query := `
		UPDATE ledger.users
		SET cash_balance = cash_balance - $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND cash_balance >= $1`
	res, err := r.q.ExecContext(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	if rows == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// CreatePlan creates a plan together with its embedded schedule.
func (r *Repository) CreatePlan(ctx context.Context, plan *models.Plan) error {
	schedule, err := json.Marshal(plan.Schedule)
	if err != nil {
		return fmt.Errorf("failed to encode schedule: %w", err)
	}
	query := `
		INSERT INTO ledger.plans (customer_id, total_amount, down_payment, principal, annual_rate,
			term_months, interest_model, rounding_policy, start_date, schedule, remaining_balance,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err = r.q.QueryRowContext(ctx, query,
		plan.CustomerID, plan.TotalAmount, plan.DownPayment, plan.Principal, plan.AnnualRate,
		plan.TermMonths, plan.InterestModel, plan.Rounding, plan.StartDate, schedule, plan.RemainingBalance).
		Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

// GetPlan retrieves a plan with its schedule by id.
func (r *Repository) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	query := `
		SELECT id, customer_id, total_amount, down_payment, principal, annual_rate,
			term_months, interest_model, rounding_policy, start_date, schedule, remaining_balance,
			created_at, updated_at
		FROM ledger.plans
		WHERE id = $1`
	plan, err := scanPlan(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return plan, err
}

// ListPlans retrieves every plan, used by the audit sweep.
func (r *Repository) ListPlans(ctx context.Context) ([]models.Plan, error) {
	query := `
		SELECT id, customer_id, total_amount, down_payment, principal, annual_rate,
			term_months, interest_model, rounding_policy, start_date, schedule, remaining_balance,
			created_at, updated_at
		FROM ledger.plans
		ORDER BY id`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// UpdatePlanLedger persists the schedule and the cached remaining balance
// as a single row update, so both figures move together even without a
// surrounding transaction.
func (r *Repository) UpdatePlanLedger(ctx context.Context, planID int64, schedule []models.ScheduleEntry, remainingBalance float64) error {
	encoded, err := json.Marshal(schedule)
	if err != nil {
		return fmt.Errorf("failed to encode schedule: %w", err)
	}
	query := `
		UPDATE ledger.plans
		SET schedule = $1, remaining_balance = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3`
	res, err := r.q.ExecContext(ctx, query, encoded, remainingBalance, planID)
	if err != nil {
		return fmt.Errorf("failed to update plan ledger: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update plan ledger: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatePayment inserts a payment ledger record.
func (r *Repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	allocation, err := json.Marshal(payment.Allocation)
	if err != nil {
		return fmt.Errorf("failed to encode allocation: %w", err)
	}
	breakdown, err := json.Marshal(payment.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to encode breakdown: %w", err)
	}
	query := `
		INSERT INTO ledger.payments (id, plan_id, amount, target_month, allocation, breakdown,
			recorded_by, received_by, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.q.ExecContext(ctx, query,
		payment.ID, payment.PlanID, payment.Amount, payment.TargetMonth, allocation, breakdown,
		payment.RecordedBy, payment.ReceivedBy, payment.Status, payment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetPayment retrieves a payment by id.
func (r *Repository) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	query := `
		SELECT id, plan_id, amount, target_month, allocation, breakdown,
			recorded_by, received_by, status, created_at
		FROM ledger.payments
		WHERE id = $1`
	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return payment, err
}

// UpdatePayment replaces every mutable field of a payment record. Callers
// must have reversed the prior allocation's effects first; the record is
// never patched field by field.
func (r *Repository) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	allocation, err := json.Marshal(payment.Allocation)
	if err != nil {
		return fmt.Errorf("failed to encode allocation: %w", err)
	}
	breakdown, err := json.Marshal(payment.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to encode breakdown: %w", err)
	}
	query := `
		UPDATE ledger.payments
		SET amount = $1, target_month = $2, allocation = $3, breakdown = $4,
			recorded_by = $5, received_by = $6, status = $7
		WHERE id = $8`
	res, err := r.q.ExecContext(ctx, query,
		payment.Amount, payment.TargetMonth, allocation, breakdown,
		payment.RecordedBy, payment.ReceivedBy, payment.Status, payment.ID)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePayment removes a payment ledger record.
func (r *Repository) DeletePayment(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM ledger.payments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return nil
}

// FindRecentPayment returns the most recent recorded payment with the same
// plan, amount and recorder created at or after since.
func (r *Repository) FindRecentPayment(ctx context.Context, planID int64, amount float64, recordedBy int64, since time.Time) (*models.Payment, error) {
	query := `
		SELECT id, plan_id, amount, target_month, allocation, breakdown,
			recorded_by, received_by, status, created_at
		FROM ledger.payments
		WHERE plan_id = $1 AND amount = $2 AND recorded_by = $3 AND status = $4 AND created_at >= $5
		ORDER BY created_at DESC
		LIMIT 1`
	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, planID, amount, recordedBy, models.PaymentRecorded, since))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return payment, err
}

// CreateTransfer inserts a cash transfer record.
func (r *Repository) CreateTransfer(ctx context.Context, transfer *models.CashTransfer) error {
	query := `
		INSERT INTO ledger.transfers (id, from_user, to_user, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.ExecContext(ctx, query,
		transfer.ID, transfer.FromUser, transfer.ToUser, transfer.Amount, transfer.Status, transfer.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

// GetTransfer retrieves a transfer by id.
func (r *Repository) GetTransfer(ctx context.Context, id string) (*models.CashTransfer, error) {
	transfer := &models.CashTransfer{}
	query := `
		SELECT id, from_user, to_user, amount, status, created_at
		FROM ledger.transfers
		WHERE id = $1`
	err := r.q.QueryRowContext(ctx, query, id).
		Scan(&transfer.ID, &transfer.FromUser, &transfer.ToUser, &transfer.Amount, &transfer.Status, &transfer.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transfer: %w", err)
	}
	return transfer, nil
}

// DeleteTransfer removes a transfer record.
func (r *Repository) DeleteTransfer(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM ledger.transfers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete transfer: %w", err)
	}
	return nil
}

// CreateExpense inserts an expense record.
func (r *Repository) CreateExpense(ctx context.Context, expense *models.Expense) error {
	query := `
		INSERT INTO ledger.expenses (id, user_id, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.q.ExecContext(ctx, query,
		expense.ID, expense.UserID, expense.Amount, expense.Description, expense.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense by id.
func (r *Repository) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	expense := &models.Expense{}
	query := `
		SELECT id, user_id, amount, description, created_at
		FROM ledger.expenses
		WHERE id = $1`
	err := r.q.QueryRowContext(ctx, query, id).
		Scan(&expense.ID, &expense.UserID, &expense.Amount, &expense.Description, &expense.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find expense: %w", err)
	}
	return expense, nil
}

// DeleteExpense removes an expense record.
func (r *Repository) DeleteExpense(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM ledger.expenses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*models.Plan, error) {
	plan := &models.Plan{}
	var schedule []byte
	err := row.Scan(&plan.ID, &plan.CustomerID, &plan.TotalAmount, &plan.DownPayment, &plan.Principal,
		&plan.AnnualRate, &plan.TermMonths, &plan.InterestModel, &plan.Rounding, &plan.StartDate,
		&schedule, &plan.RemainingBalance, &plan.CreatedAt, &plan.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}
	if err := json.Unmarshal(schedule, &plan.Schedule); err != nil {
		return nil, fmt.Errorf("failed to decode schedule: %w", err)
	}
	return plan, nil
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	payment := &models.Payment{}
	var allocation, breakdown []byte
	err := row.Scan(&payment.ID, &payment.PlanID, &payment.Amount, &payment.TargetMonth,
		&allocation, &breakdown, &payment.RecordedBy, &payment.ReceivedBy, &payment.Status, &payment.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	if err := json.Unmarshal(allocation, &payment.Allocation); err != nil {
		return nil, fmt.Errorf("failed to decode allocation: %w", err)
	}
	if err := json.Unmarshal(breakdown, &payment.Breakdown); err != nil {
		return nil, fmt.Errorf("failed to decode breakdown: %w", err)
	}
	return payment, nil
}
