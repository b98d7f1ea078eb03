package models

import "time"

// Entry statuses. "overdue" is never persisted: it is a read-time
// classification derived from the due date, see Overdue.
const (
	EntryPending = "pending"
	EntryPaid    = "paid"
)

// ScheduleEntry is one periodic obligation within a plan. Month indexes are
// 1..N, strictly increasing, with no gaps.
type ScheduleEntry struct {
	Month      int        `json:"month"`
	DueDate    time.Time  `json:"due_date"`
	Amount     float64    `json:"amount"`
	Principal  float64    `json:"principal"`
	Interest   float64    `json:"interest"`
	PaidAmount float64    `json:"paid_amount"`
	Status     string     `json:"status"`
	PaidDate   *time.Time `json:"paid_date,omitempty"`
}

// Overdue reports whether the entry is past due and still pending.
func (e *ScheduleEntry) Overdue(now time.Time) bool {
	return e.Status == EntryPending && e.DueDate.Before(now)
}
