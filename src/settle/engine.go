package settle

import (
	"context"
	"errors"

	"github.com/superworldapp/nftsalon-engine/src/assets"
	"github.com/superworldapp/nftsalon-engine/src/events"
	"github.com/superworldapp/nftsalon-engine/src/royalty"
	"github.com/superworldapp/nftsalon-engine/src/utils/logger"
	"github.com/superworldapp/nftsalon-engine/src/utils/model"
	"github.com/superworldapp/nftsalon-engine/src/utils/monitor"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// A split summing over the settlement amount cannot happen while the
	// registry cap holds, hitting this is a configuration failure
	ErrNegativeRemainder = errors.New("royalty split exceeds the settlement amount")

	ErrNothingToWithdraw      = errors.New("no balance to withdraw")
	ErrInsufficientFeeBalance = errors.New("accrued fees are smaller than the requested amount")
)

// Payout is the outcome of delivering one amount to one recipient
type Payout struct {
	Recipient common.Address
	Amount    uint64

	// Credited to the recipient's pending balance instead of delivered directly
	Deferred bool
}

// Disposition describes how one gross payment was distributed
type Disposition struct {
	Gross     uint64
	Fee       uint64
	Royalties []Payout
	Seller    Payout
}

// Input of one settlement
type Input struct {
	Gross          uint64
	Seller         common.Address
	Collection     common.Address
	AssetId        uint64
	FeeRatePercent uint

	// Royalty interface of the asset type, resolved by the probe
	Royalty assets.RoyaltySupport
}

// Engine distributes a single gross payment across the platform fee, the
// royalty split and the seller remainder, deferring failed deliveries into
// the pending ledger.
type Engine struct {
	log *logrus.Entry

	registry *royalty.Registry
	rail     Rail
	monitor  *monitor.Monitor
}

func NewEngine() (self *Engine) {
	self = new(Engine)
	self.log = logger.NewSublogger("settle")
	return
}

func (self *Engine) WithRegistry(registry *royalty.Registry) *Engine {
	self.registry = registry
	return self
}

func (self *Engine) WithRail(rail Rail) *Engine {
	self.rail = rail
	return self
}

func (self *Engine) WithMonitor(monitor *monitor.Monitor) *Engine {
	self.monitor = monitor
	return self
}

// Settle distributes in.Gross in full: fee first, then the royalty split in
// registration order, then the remainder to the seller. Failed deliveries
// never abort, they become pending credits. Runs inside the operation's
// transaction.
func (self *Engine) Settle(ctx context.Context, tx *gorm.DB, batch *events.Batch, in Input) (out *Disposition, err error) {
	out = &Disposition{Gross: in.Gross}

	// Platform fee
	out.Fee = in.Gross * uint64(in.FeeRatePercent) / 100
	err = self.creditFee(ctx, tx, out.Fee)
	if err != nil {
		return
	}
	remaining := in.Gross - out.Fee

	// Royalty split per the asset type's royalty interface
	var split []royalty.Share
	switch in.Royalty {
	case assets.MultiRoyalty:
		split, err = self.registry.ComputeSplit(ctx, tx, in.Collection, in.AssetId, remaining)
	case assets.SingleRoyalty:
		split, err = self.registry.ComputeSingleSplit(ctx, tx, in.Collection, in.AssetId, remaining)
	}
	if err != nil {
		return
	}

	for _, share := range split {
		if share.Amount > remaining {
			if self.monitor != nil {
				self.monitor.Report.Errors.ConfigurationFailures.Inc()
			}
			err = ErrNegativeRemainder
			return
		}

		var payout Payout
		payout, err = self.PayOrDefer(ctx, tx, batch, share.Recipient, share.Amount, in.Collection, in.AssetId)
		if err != nil {
			return
		}
		out.Royalties = append(out.Royalties, payout)

		// Paid either directly or via the pending ledger,
		// only the delivery channel differs
		remaining -= share.Amount
	}

	// Seller remainder
	out.Seller, err = self.PayOrDefer(ctx, tx, batch, in.Seller, remaining, in.Collection, in.AssetId)
	if err != nil {
		return
	}

	if self.monitor != nil {
		self.monitor.Report.SalesSettled.Inc()
		self.monitor.Report.VolumeSettled.Add(in.Gross)
	}

	self.log.
		WithField("gross", in.Gross).
		WithField("fee", out.Fee).
		WithField("numRoyalties", len(out.Royalties)).
		Debug("Payment settled")
	return
}

// PayOrDefer attempts a direct transfer and converts a failure into a pending
// balance credit plus a transfer-failed event. The transfer is never retried
// inline, the credit is claimable via an explicit withdrawal.
func (self *Engine) PayOrDefer(ctx context.Context, tx *gorm.DB, batch *events.Batch, to common.Address, amount uint64, collection common.Address, assetId uint64) (payout Payout, err error) {
	payout = Payout{Recipient: to, Amount: amount}
	if amount == 0 {
		return
	}

	railErr := self.rail.Transfer(ctx, tx, to, amount)
	if railErr == nil {
		return
	}

	self.log.
		WithError(railErr).
		WithField("recipient", addr(to)).
		WithField("amount", amount).
		Warn("Direct transfer failed, crediting pending balance")

	err = self.creditPending(ctx, tx, to, amount)
	if err != nil {
		return
	}

	err = batch.Add(tx, &model.MarketplaceEvent{
		Kind:       model.EventTransferFailed,
		Collection: addr(collection),
		AssetId:    assetId,
		Recipient:  addr(to),
		Amount:     amount,
		Detail:     railErr.Error(),
	})
	if err != nil {
		return
	}

	if self.monitor != nil {
		self.monitor.Report.TransferFailures.Inc()
	}

	payout.Deferred = true
	return
}

// WithdrawPending pays out the account's accumulated pending balance.
// The balance is zeroed only after a successful transfer; a failed transfer
// keeps it claimable and is reported through deferred.
func (self *Engine) WithdrawPending(ctx context.Context, tx *gorm.DB, batch *events.Batch, account common.Address) (amount uint64, deferred bool, err error) {
	var row model.PendingBalance
	err = tx.WithContext(ctx).First(&row, "address = ?", addr(account)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && row.Amount == 0) {
		err = ErrNothingToWithdraw
		return
	}
	if err != nil {
		return
	}
	amount = row.Amount

	railErr := self.rail.Transfer(ctx, tx, account, amount)
	if railErr != nil {
		err = batch.Add(tx, &model.MarketplaceEvent{
			Kind:      model.EventTransferFailed,
			Recipient: addr(account),
			Amount:    amount,
			Detail:    railErr.Error(),
		})
		deferred = true
		return
	}

	row.Amount = 0
	err = tx.WithContext(ctx).Save(&row).Error
	if err != nil {
		return
	}

	err = batch.Add(tx, &model.MarketplaceEvent{
		Kind:      model.EventPendingWithdrawal,
		Initiator: addr(account),
		Recipient: addr(account),
		Amount:    amount,
	})
	if err != nil {
		return
	}

	if self.monitor != nil {
		self.monitor.Report.PendingWithdrawals.Inc()
	}
	return
}

// WithdrawFees pays the requested slice of the accrued platform fees to the
// owner. Zero amount means everything. The balance is reduced only after a
// successful transfer.
func (self *Engine) WithdrawFees(ctx context.Context, tx *gorm.DB, batch *events.Batch, to common.Address, amount uint64) (withdrawn uint64, deferred bool, err error) {
	state, err := model.LoadState(tx.WithContext(ctx))
	if err != nil {
		return
	}

	if state.FeeBalance == 0 {
		err = ErrNothingToWithdraw
		return
	}
	if amount == 0 {
		amount = state.FeeBalance
	}
	if amount > state.FeeBalance {
		err = ErrInsufficientFeeBalance
		return
	}
	withdrawn = amount

	railErr := self.rail.Transfer(ctx, tx, to, amount)
	if railErr != nil {
		err = batch.Add(tx, &model.MarketplaceEvent{
			Kind:      model.EventTransferFailed,
			Recipient: addr(to),
			Amount:    amount,
			Detail:    railErr.Error(),
		})
		deferred = true
		return
	}

	state.FeeBalance -= amount
	err = model.SaveState(tx.WithContext(ctx), &state)
	if err != nil {
		return
	}

	err = batch.Add(tx, &model.MarketplaceEvent{
		Kind:      model.EventFeeWithdrawal,
		Initiator: addr(to),
		Recipient: addr(to),
		Amount:    amount,
	})
	if err != nil {
		return
	}

	if self.monitor != nil {
		self.monitor.Report.FeeWithdrawals.Inc()
	}
	return
}

// PendingBalance returns the account's claimable pending credit
func (self *Engine) PendingBalance(ctx context.Context, tx *gorm.DB, account common.Address) (amount uint64, err error) {
	var row model.PendingBalance
	err = tx.WithContext(ctx).First(&row, "address = ?", addr(account)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return
	}
	amount = row.Amount
	return
}

func (self *Engine) creditFee(ctx context.Context, tx *gorm.DB, fee uint64) (err error) {
	if fee == 0 {
		return
	}

	state, err := model.LoadState(tx.WithContext(ctx))
	if err != nil {
		return
	}

	state.FeeBalance += fee
	err = model.SaveState(tx.WithContext(ctx), &state)
	if err != nil {
		return
	}

	if self.monitor != nil {
		self.monitor.Report.FeesAccrued.Add(fee)
	}
	return
}

func (self *Engine) creditPending(ctx context.Context, tx *gorm.DB, account common.Address, amount uint64) (err error) {
	var row model.PendingBalance
	err = tx.WithContext(ctx).First(&row, "address = ?", addr(account)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = model.PendingBalance{Address: addr(account), Amount: amount}
		return tx.WithContext(ctx).Create(&row).Error
	}
	if err != nil {
		return
	}

	row.Amount += amount
	return tx.WithContext(ctx).Save(&row).Error
}
