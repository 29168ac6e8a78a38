package model

import "gorm.io/gorm"

const (
	TableState = "salon_state"
)

// MarketplaceState is the single row of owner-settable marketplace parameters
// plus the platform's accrued fee balance.
type MarketplaceState struct {
	// Id always equals one
	Id int

	// Platform fee, percent of the gross sale price
	FeeRatePercent uint

	// Cap on the sum of royalty percentages registered for one asset
	RoyaltyCapPercent uint

	// Address of the off-chain authority whose signature approves sale/mint terms
	SignerAddress string

	// Address allowed to register royalties on behalf of creators
	AuthorizedCaller string

	// Fees accrued and not yet withdrawn by the owner
	FeeBalance uint64

	// Next asset id handed out when mint terms carry id 0
	NextAssetId uint64
}

func (MarketplaceState) TableName() string {
	return TableState
}

func LoadState(tx *gorm.DB) (state MarketplaceState, err error) {
	err = tx.First(&state, "id = ?", 1).Error
	return
}

func SaveState(tx *gorm.DB, state *MarketplaceState) error {
	state.Id = 1
	return tx.Save(state).Error
}
