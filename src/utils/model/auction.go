package model

import "time"

const (
	TableAuction = "auctions"
)

// Auction is the live bidding state of one asset.
// The unique index guarantees at most one live auction per asset;
// closing deletes the row.
type Auction struct {
	ID uint `gorm:"primaryKey"`

	Collection string `gorm:"uniqueIndex:idx_auction_key"`
	AssetId    uint64 `gorm:"uniqueIndex:idx_auction_key"`

	Seller        string
	HighestBidder string
	// Escrowed amount of the highest bid
	HighestBidPrice uint64

	EndTime     time.Time
	IsCountdown bool
	IsActive    bool

	Description          string
	RestrictedContentRef string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Auction) TableName() string {
	return TableAuction
}
