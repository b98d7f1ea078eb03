package models

import "time"

// InterestModel selects how interest is computed for a plan.
type InterestModel string

const (
	ModelEqual     InterestModel = "equal"
	ModelFlat      InterestModel = "flat"
	ModelAmortized InterestModel = "amortized"
)

// Valid reports whether the model is one of the supported values.
func (m InterestModel) Valid() bool {
	return m == ModelEqual || m == ModelFlat || m == ModelAmortized
}

// RoundingPolicy selects how per-entry figures are rounded to 2 decimals.
type RoundingPolicy string

const (
	RoundNearest RoundingPolicy = "nearest"
	RoundUp      RoundingPolicy = "up"
	RoundDown    RoundingPolicy = "down"
)

// Valid reports whether the policy is one of the supported values.
func (p RoundingPolicy) Valid() bool {
	return p == RoundNearest || p == RoundUp || p == RoundDown
}

// Plan represents an installment plan with its embedded repayment schedule.
// The schedule is an owned, ordered array; entries are mutated in place and
// never reordered or removed after creation.
type Plan struct {
	ID               int64           `json:"id"`
	CustomerID       int64           `json:"customer_id"`
	TotalAmount      float64         `json:"total_amount"`
	DownPayment      float64         `json:"down_payment"`
	Principal        float64         `json:"principal"`
	AnnualRate       float64         `json:"annual_rate"`
	TermMonths       int             `json:"term_months"`
	InterestModel    InterestModel   `json:"interest_model"`
	Rounding         RoundingPolicy  `json:"rounding_policy"`
	StartDate        time.Time       `json:"start_date"`
	Schedule         []ScheduleEntry `json:"schedule"`
	RemainingBalance float64         `json:"remaining_balance"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
