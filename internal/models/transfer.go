package models

import "time"

// TransferCompleted is the status of a persisted transfer. A transfer that
// fails its guarded debit is never written at all.
const TransferCompleted = "completed"

// CashTransfer moves cash between two staff balances. The record is created
// only after both balance mutations have succeeded.
type CashTransfer struct {
	ID        string    `json:"id"`
	FromUser  int64     `json:"from_user"`
	ToUser    int64     `json:"to_user"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
