package model

const (
	TableCollection = "collections"
)

// Collection is one asset contract known to the marketplace together with
// the transfer/royalty interfaces it supports.
type Collection struct {
	// Contract address, lowercase hex
	Address string `gorm:"primaryKey"`

	Name string

	// Capability flags resolved by the asset-type probe
	SupportsNativeMinting bool
	SupportsMultiRoyalty  bool
	SupportsSingleRoyalty bool
}

func (Collection) TableName() string {
	return TableCollection
}
