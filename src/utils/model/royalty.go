package model

const (
	TableRoyaltyShare = "royalty_shares"
)

// RoyaltyShare is one recipient of an asset's royalty split.
// Rows of one asset form an ordered list, replaced as a whole on registration.
type RoyaltyShare struct {
	ID uint `gorm:"primaryKey"`

	Collection string `gorm:"index:idx_royalty_key"`
	AssetId    uint64 `gorm:"index:idx_royalty_key"`

	// Registration order, starting at 0
	Position int

	Recipient  string
	Percentage uint
}

func (RoyaltyShare) TableName() string {
	return TableRoyaltyShare
}
