package model

import (
	"encoding/json"
	"time"
)

const (
	TableEvent = "marketplace_events"
)

type EventKind string

const (
	EventBidOpened         EventKind = "bid-opened"
	EventBidRaised         EventKind = "bid-raised"
	EventAuctionClosed     EventKind = "auction-closed"
	EventTransferFailed    EventKind = "transfer-failed"
	EventAssetMinted       EventKind = "asset-minted"
	EventAssetSold         EventKind = "asset-sold"
	EventAssetGifted       EventKind = "asset-gifted"
	EventLocationUpdated   EventKind = "location-updated"
	EventDeposit           EventKind = "deposit"
	EventPendingWithdrawal EventKind = "pending-withdrawal"
	EventFeeWithdrawal     EventKind = "fee-withdrawal"
)

// MarketplaceEvent is the record of one observable state change.
// Events are observability only, they are never replayed as state mutations.
type MarketplaceEvent struct {
	ID uint `gorm:"primaryKey" json:"-"`

	// Correlation id of the operation that produced the event
	OperationId string `gorm:"index" json:"operation_id"`

	Kind EventKind `gorm:"index" json:"kind"`

	Collection string `json:"collection,omitempty"`
	AssetId    uint64 `json:"asset_id,omitempty"`

	// Who triggered the operation
	Initiator string `json:"initiator,omitempty"`

	// Who the value moved to, when the event carries value
	Recipient string `json:"recipient,omitempty"`
	Amount    uint64 `json:"amount,omitempty"`

	Detail string `json:"detail,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (MarketplaceEvent) TableName() string {
	return TableEvent
}

func (self *MarketplaceEvent) MarshalBinary() ([]byte, error) {
	return json.Marshal(self)
}
