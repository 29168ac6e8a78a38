package model

import "time"

const (
	TableAccountBalance = "account_balances"
	TablePendingBalance = "pending_balances"
)

// AccountBalance is a customer's deposited funds held in custody.
type AccountBalance struct {
	// Account address, lowercase hex
	Address string `gorm:"primaryKey"`

	Available uint64

	// Blocked accounts reject incoming transfers;
	// payouts to them are deferred into pending balances
	Blocked bool

	UpdatedAt time.Time
}

func (AccountBalance) TableName() string {
	return TableAccountBalance
}

// PendingBalance is the pull-payment fallback: credit accumulated from failed
// direct transfers, claimable via an explicit withdrawal.
type PendingBalance struct {
	// Account address, lowercase hex
	Address string `gorm:"primaryKey"`

	Amount uint64

	UpdatedAt time.Time
}

func (PendingBalance) TableName() string {
	return TablePendingBalance
}
