package assets

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/superworldapp/nftsalon-engine/src/utils/config"
	"github.com/superworldapp/nftsalon-engine/src/utils/logger"
	"github.com/superworldapp/nftsalon-engine/src/utils/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Catalog is the marketplace's own ownership bookkeeping, backed by the
// collections and assets tables. Implements Registry.
type Catalog struct {
	log *logrus.Entry

	// Probe results per collection address
	probeCache *cache.Cache
}

func NewCatalog(config *config.Config) (self *Catalog) {
	self = new(Catalog)
	self.log = logger.NewSublogger("catalog")

	expiration, err := time.ParseDuration(config.Marketplace.ProbeCacheExpiration)
	if err != nil {
		expiration = 5 * time.Minute
	}
	self.probeCache = cache.New(expiration, 2*expiration)

	return
}

func Addr(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// Probe reads through the caller's transaction so capability checks see the
// same snapshot as the rest of the operation.
func (self *Catalog) Probe(ctx context.Context, tx *gorm.DB, collection common.Address) (caps Capabilities, err error) {
	key := Addr(collection)

	if cached, ok := self.probeCache.Get(key); ok {
		return cached.(Capabilities), nil
	}

	var row model.Collection
	err = tx.WithContext(ctx).
		Where("address = ?", key).
		First(&row).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrUnknownCollection
		return
	}
	if err != nil {
		return
	}

	if row.SupportsNativeMinting {
		caps.Minting = NativeMintable
	}
	switch {
	case row.SupportsMultiRoyalty:
		caps.Royalty = MultiRoyalty
	case row.SupportsSingleRoyalty:
		caps.Royalty = SingleRoyalty
	}

	self.probeCache.SetDefault(key, caps)
	return
}

func (self *Catalog) Forget(collection common.Address) {
	self.probeCache.Delete(Addr(collection))
}

func (self *Catalog) Exists(ctx context.Context, tx *gorm.DB, collection common.Address, assetId uint64) (exists bool, err error) {
	var count int64
	err = tx.WithContext(ctx).
		Model(&model.Asset{}).
		Where("collection = ? AND asset_id = ?", Addr(collection), assetId).
		Count(&count).
		Error
	exists = count > 0
	return
}

func (self *Catalog) OwnerOf(ctx context.Context, tx *gorm.DB, collection common.Address, assetId uint64) (owner common.Address, err error) {
	var row model.Asset
	err = tx.WithContext(ctx).
		Where("collection = ? AND asset_id = ?", Addr(collection), assetId).
		First(&row).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrAssetNotFound
		return
	}
	if err != nil {
		return
	}
	owner = common.HexToAddress(row.Owner)
	return
}

func (self *Catalog) BalanceOf(ctx context.Context, tx *gorm.DB, collection common.Address, account common.Address) (count int64, err error) {
	err = tx.WithContext(ctx).
		Model(&model.Asset{}).
		Where("collection = ? AND owner = ?", Addr(collection), Addr(account)).
		Count(&count).
		Error
	return
}

func (self *Catalog) Transfer(ctx context.Context, tx *gorm.DB, collection common.Address, assetId uint64, from, to common.Address) (err error) {
	owner, err := self.OwnerOf(ctx, tx, collection, assetId)
	if err != nil {
		return
	}
	if owner != from {
		return ErrNotAssetOwner
	}

	return tx.WithContext(ctx).
		Model(&model.Asset{}).
		Where("collection = ? AND asset_id = ?", Addr(collection), assetId).
		Update("owner", Addr(to)).
		Error
}

func (self *Catalog) Mint(ctx context.Context, tx *gorm.DB, collection common.Address, assetId uint64, to common.Address, meta Metadata) (err error) {
	exists, err := self.Exists(ctx, tx, collection, assetId)
	if err != nil {
		return
	}
	if exists {
		return ErrDuplicateAsset
	}

	row := model.Asset{
		Collection:           Addr(collection),
		AssetId:              assetId,
		Owner:                Addr(to),
		Creator:              Addr(meta.Creator),
		BatchId:              meta.BatchId,
		MetadataRef:          meta.MetadataRef,
		RestrictedContentRef: meta.RestrictedContentRef,
	}
	return tx.WithContext(ctx).Create(&row).Error
}
