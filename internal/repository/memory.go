package repository

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerline/installment-service/internal/models"
)

// Memory is an in-process Store used by tests and local development. It
// emulates both deployment topologies: with Atomic set, WithinTx restores a
// snapshot on failure like a real transaction; otherwise callers get the
// compensation path. FailOn injects an error into a single named method.
type Memory struct {
	mu     sync.Mutex
	Atomic bool
	FailOn map[string]error

	users      map[int64]*models.User
	plans      map[int64]*models.Plan
	payments   map[string]*models.Payment
	transfers  map[string]*models.CashTransfer
	expenses   map[string]*models.Expense
	nextUserID int64
	nextPlanID int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		FailOn:    map[string]error{},
		users:     map[int64]*models.User{},
		plans:     map[int64]*models.Plan{},
		payments:  map[string]*models.Payment{},
		transfers: map[string]*models.CashTransfer{},
		expenses:  map[string]*models.Expense{},
	}
}

func (m *Memory) fail(method string) error {
	if err, ok := m.FailOn[method]; ok {
		return err
	}
	return nil
}

// SupportsAtomicMultiWrite reports the configured topology.
func (m *Memory) SupportsAtomicMultiWrite(ctx context.Context) bool {
	return m.Atomic
}

// WithinTx snapshots the store and restores it if fn fails, emulating a
// rolled-back transaction.
func (m *Memory) WithinTx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	snapshot := m.snapshot()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.restore(snapshot)
		m.mu.Unlock()
		return err
	}
	return nil
}

type memorySnapshot struct {
	users     map[int64]*models.User
	plans     map[int64]*models.Plan
	payments  map[string]*models.Payment
	transfers map[string]*models.CashTransfer
	expenses  map[string]*models.Expense
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		users:     map[int64]*models.User{},
		plans:     map[int64]*models.Plan{},
		payments:  map[string]*models.Payment{},
		transfers: map[string]*models.CashTransfer{},
		expenses:  map[string]*models.Expense{},
	}
	for id, u := range m.users {
		s.users[id] = copyUser(u)
	}
	for id, p := range m.plans {
		s.plans[id] = copyPlan(p)
	}
	for id, p := range m.payments {
		s.payments[id] = copyPayment(p)
	}
	for id, t := range m.transfers {
		c := *t
		s.transfers[id] = &c
	}
	for id, e := range m.expenses {
		c := *e
		s.expenses[id] = &c
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.users = s.users
	m.plans = s.plans
	m.payments = s.payments
	m.transfers = s.transfers
	m.expenses = s.expenses
}

// CreateUser stores a new user and assigns it an id.
func (m *Memory) CreateUser(ctx context.Context, user *models.User) error {
	if err := m.fail("CreateUser"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextUserID++
	user.ID = m.nextUserID
	user.CreatedAt = time.Now()
	m.users[user.ID] = copyUser(user)
	return nil
}

// GetUser retrieves a user by id.
func (m *Memory) GetUser(ctx context.Context, id int64) (*models.User, error) {
	if err := m.fail("GetUser"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(user), nil
}

// FindUserByEmail retrieves a user by email.
func (m *Memory) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := m.fail("FindUserByEmail"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return copyUser(user), nil
		}
	}
	return nil, ErrNotFound
}

// CreditBalance adds amount to a user's balance.
func (m *Memory) CreditBalance(ctx context.Context, userID int64, amount float64) error {
	if err := m.fail("CreditBalance"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.CashBalance += amount
	return nil
}

// DebitBalanceGuarded subtracts amount only when the balance covers it, as
// one atomic check-and-write under the store lock.
func (m *Memory) DebitBalanceGuarded(ctx context.Context, userID int64, amount float64) error {
	if err := m.fail("DebitBalanceGuarded"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok || user.CashBalance < amount {
		return ErrInsufficientFunds
	}
	user.CashBalance -= amount
	return nil
}

// CreatePlan stores a new plan and assigns it an id.
func (m *Memory) CreatePlan(ctx context.Context, plan *models.Plan) error {
	if err := m.fail("CreatePlan"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPlanID++
	plan.ID = m.nextPlanID
	plan.CreatedAt = time.Now()
	plan.UpdatedAt = plan.CreatedAt
	m.plans[plan.ID] = copyPlan(plan)
	return nil
}

// GetPlan retrieves a plan by id.
func (m *Memory) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	if err := m.fail("GetPlan"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPlan(plan), nil
}

// ListPlans retrieves every stored plan.
func (m *Memory) ListPlans(ctx context.Context) ([]models.Plan, error) {
	if err := m.fail("ListPlans"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	plans := make([]models.Plan, 0, len(m.plans))
	for id := int64(1); id <= m.nextPlanID; id++ {
		if plan, ok := m.plans[id]; ok {
			plans = append(plans, *copyPlan(plan))
		}
	}
	return plans, nil
}

// UpdatePlanLedger replaces a plan's schedule and cached balance together.
func (m *Memory) UpdatePlanLedger(ctx context.Context, planID int64, schedule []models.ScheduleEntry, remainingBalance float64) error {
	if err := m.fail("UpdatePlanLedger"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[planID]
	if !ok {
		return ErrNotFound
	}
	plan.Schedule = copySchedule(schedule)
	plan.RemainingBalance = remainingBalance
	plan.UpdatedAt = time.Now()
	return nil
}

// CreatePayment stores a payment record.
func (m *Memory) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if err := m.fail("CreatePayment"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[payment.ID] = copyPayment(payment)
	return nil
}

// GetPayment retrieves a payment by id.
func (m *Memory) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	if err := m.fail("GetPayment"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPayment(payment), nil
}

// UpdatePayment replaces a stored payment record.
func (m *Memory) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	if err := m.fail("UpdatePayment"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.ID]; !ok {
		return ErrNotFound
	}
	m.payments[payment.ID] = copyPayment(payment)
	return nil
}

// DeletePayment removes a payment record.
func (m *Memory) DeletePayment(ctx context.Context, id string) error {
	if err := m.fail("DeletePayment"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.payments, id)
	return nil
}

// FindRecentPayment returns the most recent recorded payment matching plan,
// amount and recorder created at or after since.
func (m *Memory) FindRecentPayment(ctx context.Context, planID int64, amount float64, recordedBy int64, since time.Time) (*models.Payment, error) {
	if err := m.fail("FindRecentPayment"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Payment
	for _, payment := range m.payments {
		if payment.PlanID != planID || payment.Amount != amount ||
			payment.RecordedBy != recordedBy || payment.Status != models.PaymentRecorded {
			continue
		}
		if payment.CreatedAt.Before(since) {
			continue
		}
		if latest == nil || payment.CreatedAt.After(latest.CreatedAt) {
			latest = payment
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return copyPayment(latest), nil
}

// CreateTransfer stores a transfer record.
func (m *Memory) CreateTransfer(ctx context.Context, transfer *models.CashTransfer) error {
	if err := m.fail("CreateTransfer"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *transfer
	m.transfers[transfer.ID] = &c
	return nil
}

// GetTransfer retrieves a transfer by id.
func (m *Memory) GetTransfer(ctx context.Context, id string) (*models.CashTransfer, error) {
	if err := m.fail("GetTransfer"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	transfer, ok := m.transfers[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *transfer
	return &c, nil
}

// DeleteTransfer removes a transfer record.
func (m *Memory) DeleteTransfer(ctx context.Context, id string) error {
	if err := m.fail("DeleteTransfer"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transfers, id)
	return nil
}

// CreateExpense stores an expense record.
func (m *Memory) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if err := m.fail("CreateExpense"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *expense
	m.expenses[expense.ID] = &c
	return nil
}

// GetExpense retrieves an expense by id.
func (m *Memory) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	if err := m.fail("GetExpense"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	expense, ok := m.expenses[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *expense
	return &c, nil
}

// DeleteExpense removes an expense record.
func (m *Memory) DeleteExpense(ctx context.Context, id string) error {
	if err := m.fail("DeleteExpense"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.expenses, id)
	return nil
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyPlan(p *models.Plan) *models.Plan {
	c := *p
	c.Schedule = copySchedule(p.Schedule)
	return &c
}

func copySchedule(schedule []models.ScheduleEntry) []models.ScheduleEntry {
	out := make([]models.ScheduleEntry, len(schedule))
	copy(out, schedule)
	for i := range out {
		if out[i].PaidDate != nil {
			when := *out[i].PaidDate
			out[i].PaidDate = &when
		}
	}
	return out
}

func copyPayment(p *models.Payment) *models.Payment {
	c := *p
	c.Allocation = append([]models.AppliedAmount(nil), p.Allocation...)
	return &c
}
