package assets

// MintingSupport says how an asset of a collection comes into existence
type MintingSupport int

const (
	// Assets exist beforehand and only change hands
	StandardTransferOnly MintingSupport = iota

	// The collection can mint new assets on sale
	NativeMintable
)

// RoyaltySupport says which royalty interface a collection implements
type RoyaltySupport int

const (
	NoRoyalty RoyaltySupport = iota

	// Only the first registered recipient receives royalties
	SingleRoyalty

	// The full ordered recipient list receives royalties
	MultiRoyalty
)

// Capabilities is the asset-type probe result.
// Resolved once per operation and threaded through explicitly.
type Capabilities struct {
	Minting MintingSupport
	Royalty RoyaltySupport
}
