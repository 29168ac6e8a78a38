package assets

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

var (
	ErrUnknownCollection = errors.New("collection is not known to the marketplace")
	ErrAssetNotFound     = errors.New("asset does not exist")
	ErrDuplicateAsset    = errors.New("asset id already exists in the collection")
	ErrNotAssetOwner     = errors.New("account does not own the asset")
)

// Metadata carried into a freshly minted asset's permanent record
type Metadata struct {
	Creator              common.Address
	BatchId              uint64
	MetadataRef          string
	RestrictedContentRef string
}

// Registry is the ownership bookkeeping collaborator.
// Methods that mutate run inside the caller's transaction so an aborted
// operation leaves no trace of the transfer.
type Registry interface {
	// Probe resolves which transfer/royalty interfaces the collection supports
	Probe(ctx context.Context, tx *gorm.DB, collection common.Address) (Capabilities, error)

	// Forget drops the cached probe result after the collection record changed
	Forget(collection common.Address)

	Exists(ctx context.Context, tx *gorm.DB, collection common.Address, assetId uint64) (bool, error)

	OwnerOf(ctx context.Context, tx *gorm.DB, collection common.Address, assetId uint64) (common.Address, error)

	// BalanceOf counts assets of the collection held by the account
	BalanceOf(ctx context.Context, tx *gorm.DB, collection common.Address, account common.Address) (int64, error)

	Transfer(ctx context.Context, tx *gorm.DB, collection common.Address, assetId uint64, from, to common.Address) error

	Mint(ctx context.Context, tx *gorm.DB, collection common.Address, assetId uint64, to common.Address, meta Metadata) error
}
