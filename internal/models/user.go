package models

import "time"

// User represents a staff member. CashBalance is mutated only through the
// balance mutation protocol and is never negative after a successful
// operation.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CashBalance  float64   `json:"cash_balance"`
	CreatedAt    time.Time `json:"created_at"`
}
