package models

import "time"

// PaymentRecorded is the status of a live payment record. Reversals remove
// the record entirely rather than flipping a status.
const PaymentRecorded = "recorded"

// OverpaymentMonth is the synthetic allocation bucket for the part of a
// payment that exceeds everything outstanding on the schedule.
const OverpaymentMonth = -1

// AppliedAmount is one slice of a payment applied to a schedule month.
type AppliedAmount struct {
	Month   int     `json:"month"`
	Applied float64 `json:"applied"`
}

// Breakdown is the accounting split of a payment. Fees is always zero for
// schedule payments and exists for bookkeeping symmetry.
type Breakdown struct {
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Fees      float64 `json:"fees"`
}

// Payment is a ledger record of money received against a plan.
// TargetMonth 0 means "unallocated": the amount waterfalls across the
// schedule in month order.
type Payment struct {
	ID          string          `json:"id"`
	PlanID      int64           `json:"plan_id"`
	Amount      float64         `json:"amount"`
	TargetMonth int             `json:"target_month"`
	Allocation  []AppliedAmount `json:"allocation"`
	Breakdown   Breakdown       `json:"breakdown"`
	RecordedBy  int64           `json:"recorded_by"`
	ReceivedBy  int64           `json:"received_by"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}
