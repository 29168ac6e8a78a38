package marketplace

import (
	"context"
	"errors"

	"github.com/superworldapp/nftsalon-engine/src/utils/model"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// Balances is an account's full money position
type Balances struct {
	Available uint64 `json:"available"`
	Pending   uint64 `json:"pending"`

	// Blocked accounts reject incoming transfers
	Blocked bool `json:"blocked"`
}

func (self *Facade) GetAuction(ctx context.Context, collection common.Address, assetId uint64) (auction *model.Auction, err error) {
	return self.auctions.Get(ctx, self.db, collection, assetId)
}

func (self *Facade) GetBalances(ctx context.Context, account common.Address) (balances *Balances, err error) {
	balances = new(Balances)

	var acct model.AccountBalance
	err = self.db.WithContext(ctx).
		Where("address = ?", lower(account)).
		First(&acct).
		Error
	switch {
	case err == nil:
		balances.Available = acct.Available
		balances.Blocked = acct.Blocked
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Unknown accounts read as zero
	default:
		return nil, err
	}

	balances.Pending, err = self.settler.PendingBalance(ctx, self.db, account)
	return
}

func (self *Facade) GetRoyalties(ctx context.Context, collection common.Address, assetId uint64) (shares []model.RoyaltyShare, err error) {
	return self.registry.Get(ctx, self.db, collection, assetId)
}

func (self *Facade) GetState(ctx context.Context) (state model.MarketplaceState, err error) {
	return model.LoadState(self.db.WithContext(ctx))
}
