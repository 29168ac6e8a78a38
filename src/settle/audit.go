package settle

import (
	"context"

	"github.com/superworldapp/nftsalon-engine/src/utils/model"

	"gorm.io/gorm"
)

// Audit cross-checks the pending ledger against the event history: the sum
// of pending balances must equal deferred credits minus completed
// withdrawals. A mismatch is logged, never repaired automatically.
func (self *Engine) Audit(ctx context.Context, db *gorm.DB) (ok bool, err error) {
	var pendingTotal uint64
	err = db.WithContext(ctx).
		Model(&model.PendingBalance{}).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&pendingTotal).
		Error
	if err != nil {
		return
	}

	// Failed withdrawal attempts also record transfer failures but move no
	// money, only settlement-side failures carry a collection
	var deferredTotal uint64
	err = db.WithContext(ctx).
		Model(&model.MarketplaceEvent{}).
		Where("kind = ? AND collection <> ''", model.EventTransferFailed).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&deferredTotal).
		Error
	if err != nil {
		return
	}

	var withdrawnTotal uint64
	err = db.WithContext(ctx).
		Model(&model.MarketplaceEvent{}).
		Where("kind = ?", model.EventPendingWithdrawal).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&withdrawnTotal).
		Error
	if err != nil {
		return
	}

	ok = pendingTotal+withdrawnTotal == deferredTotal
	if !ok {
		self.log.
			WithField("pendingTotal", pendingTotal).
			WithField("deferredTotal", deferredTotal).
			WithField("withdrawnTotal", withdrawnTotal).
			Error("Pending ledger does not reconcile with the event history")
	} else {
		self.log.
			WithField("pendingTotal", pendingTotal).
			Debug("Pending ledger reconciled")
	}
	return
}
