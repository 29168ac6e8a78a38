package royalty

import (
	"context"
	"errors"
	"strings"

	"github.com/superworldapp/nftsalon-engine/src/utils/logger"
	"github.com/superworldapp/nftsalon-engine/src/utils/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrLengthMismatch        = errors.New("recipient and percentage lists differ in length")
	ErrPercentageCapExceeded = errors.New("royalty percentages exceed the configured cap")
)

// Share is one computed royalty payout
type Share struct {
	Recipient common.Address
	Amount    uint64
}

// Registry keeps the per-asset ordered royalty recipient lists and computes
// payment splits from them.
type Registry struct {
	log *logrus.Entry
}

func NewRegistry() (self *Registry) {
	self = new(Registry)
	self.log = logger.NewSublogger("royalty")
	return
}

// Set replaces the asset's royalty list as a whole. The caller's transaction
// makes the replacement all-or-nothing: a rejected registration leaves the
// prior list untouched.
func (self *Registry) Set(ctx context.Context, tx *gorm.DB, capPercent uint, collection common.Address, assetId uint64, recipients []common.Address, percentages []uint) (err error) {
	if len(recipients) != len(percentages) {
		return ErrLengthMismatch
	}

	var sum uint
	for _, percentage := range percentages {
		sum += percentage
	}
	if sum > capPercent {
		return ErrPercentageCapExceeded
	}

	err = tx.WithContext(ctx).
		Where("collection = ? AND asset_id = ?", addr(collection), assetId).
		Delete(&model.RoyaltyShare{}).
		Error
	if err != nil {
		return
	}

	for i := range recipients {
		row := model.RoyaltyShare{
			Collection: addr(collection),
			AssetId:    assetId,
			Position:   i,
			Recipient:  addr(recipients[i]),
			Percentage: percentages[i],
		}
		err = tx.WithContext(ctx).Create(&row).Error
		if err != nil {
			return
		}
	}

	self.log.
		WithField("collection", addr(collection)).
		WithField("assetId", assetId).
		WithField("numRecipients", len(recipients)).
		Debug("Royalties registered")
	return
}

// Get returns the registered shares in registration order.
// Unregistered assets yield an empty list.
func (self *Registry) Get(ctx context.Context, tx *gorm.DB, collection common.Address, assetId uint64) (rows []model.RoyaltyShare, err error) {
	err = tx.WithContext(ctx).
		Where("collection = ? AND asset_id = ?", addr(collection), assetId).
		Order("position ASC").
		Find(&rows).
		Error
	return
}

// ComputeSplit floors gross*percentage/100 for every registered recipient,
// in registration order.
func (self *Registry) ComputeSplit(ctx context.Context, tx *gorm.DB, collection common.Address, assetId uint64, gross uint64) (split []Share, err error) {
	rows, err := self.Get(ctx, tx, collection, assetId)
	if err != nil {
		return
	}

	split = make([]Share, 0, len(rows))
	for _, row := range rows {
		split = append(split, Share{
			Recipient: common.HexToAddress(row.Recipient),
			Amount:    gross * uint64(row.Percentage) / 100,
		})
	}
	return
}

// ComputeSingleSplit returns at most the first entry's share, for asset types
// that support only one royalty receiver.
func (self *Registry) ComputeSingleSplit(ctx context.Context, tx *gorm.DB, collection common.Address, assetId uint64, gross uint64) (split []Share, err error) {
	split, err = self.ComputeSplit(ctx, tx, collection, assetId, gross)
	if err != nil {
		return
	}
	if len(split) > 1 {
		split = split[:1]
	}
	return
}

func addr(a common.Address) string {
	return strings.ToLower(a.Hex())
}
