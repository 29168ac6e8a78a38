package model

import "time"

const (
	TableAsset = "assets"
)

type Asset struct {
	ID uint `gorm:"primaryKey"`

	// Contract address, lowercase hex
	Collection string `gorm:"uniqueIndex:idx_asset_key"`
	AssetId    uint64 `gorm:"uniqueIndex:idx_asset_key"`

	Owner   string `gorm:"index"`
	Creator string

	// Batch the asset was minted in
	BatchId uint64

	MetadataRef          string
	RestrictedContentRef string

	// Human readable display location, updated opportunistically from bid requests
	Location string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Asset) TableName() string {
	return TableAsset
}
