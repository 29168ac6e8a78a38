package monitor

import (
	"time"

	"go.uber.org/atomic"
)

type Errors struct {
	AuthorizationFailures atomic.Uint64 `json:"authorization_failures"`
	ValidationFailures    atomic.Uint64 `json:"validation_failures"`
	ConfigurationFailures atomic.Uint64 `json:"configuration_failures"`
	DbErrors              atomic.Uint64 `json:"db"`
	EventPublishErrors    atomic.Uint64 `json:"event_publish"`
}

type Report struct {
	// State
	StartTimestamp atomic.Int64  `json:"start_timestamp"`
	UpForSeconds   atomic.Uint64 `json:"up_for_seconds"`

	// Auctions
	AuctionsOpened    atomic.Uint64 `json:"auctions_opened"`
	BidsRaised        atomic.Uint64 `json:"bids_raised"`
	AuctionsClosed    atomic.Uint64 `json:"auctions_closed"`
	AuctionsAbandoned atomic.Uint64 `json:"auctions_abandoned"`

	// Settlement
	SalesSettled     atomic.Uint64 `json:"sales_settled"`
	AssetsMinted     atomic.Uint64 `json:"assets_minted"`
	VolumeSettled    atomic.Uint64 `json:"volume_settled"`
	FeesAccrued      atomic.Uint64 `json:"fees_accrued"`
	TransferFailures atomic.Uint64 `json:"transfer_failures"`

	// Withdrawals
	PendingWithdrawals atomic.Uint64 `json:"pending_withdrawals"`
	FeeWithdrawals     atomic.Uint64 `json:"fee_withdrawals"`

	// Events
	EventsPublished atomic.Uint64 `json:"events_published"`

	AverageSalesSettledPerMinute atomic.Float64 `json:"average_sales_settled_per_minute"`

	Errors Errors `json:"errors"`
}

func (self *Report) Fill() {
	self.UpForSeconds.Store(uint64(time.Now().Unix() - self.StartTimestamp.Load()))
}
