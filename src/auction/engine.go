package auction

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/superworldapp/nftsalon-engine/src/events"
	"github.com/superworldapp/nftsalon-engine/src/settle"
	"github.com/superworldapp/nftsalon-engine/src/utils/config"
	"github.com/superworldapp/nftsalon-engine/src/utils/logger"
	"github.com/superworldapp/nftsalon-engine/src/utils/model"
	"github.com/superworldapp/nftsalon-engine/src/utils/monitor"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrAuctionStillActive = errors.New("auction end time has not passed yet")
	ErrNotBidding         = errors.New("no live auction for the asset")
	ErrBidTooLow          = errors.New("bid must be strictly greater than the current highest bid")
	ErrAuctionLapsed      = errors.New("auction end time has passed, the auction awaits closing")
	ErrAuctionInactive    = errors.New("auction is not active")
	ErrEndTimeNotFuture   = errors.New("auction deadline must be strictly in the future")
	ErrDeadlineTooFar     = errors.New("auction deadline is too far in the future")
	ErrCountdownTooLong   = errors.New("countdown duration is too long")
)

// Refunder returns escrowed funds to an outbid bidder,
// falling back to the pending ledger when the transfer fails
type Refunder interface {
	PayOrDefer(ctx context.Context, tx *gorm.DB, batch *events.Batch, to common.Address, amount uint64, collection common.Address, assetId uint64) (settle.Payout, error)
}

// BidRequest is one validated, authorized bid
type BidRequest struct {
	Collection common.Address
	AssetId    uint64
	Bidder     common.Address
	Seller     common.Address

	// Proposed new highest bid, escrowed in full
	Price uint64

	// Absolute deadline; zero means Countdown is used instead
	EndTime time.Time

	// Countdown measured from the moment of the first bid
	Countdown time.Duration

	Description          string
	RestrictedContentRef string
}

// Engine drives the per-asset Idle/Bidding state machine: opening on the
// first bid, refund-on-outbid raises and close once the deadline passed.
type Engine struct {
	log *logrus.Entry

	auctionConfig config.Auction

	refunder Refunder
	monitor  *monitor.Monitor
}

func NewEngine(config *config.Config) (self *Engine) {
	self = new(Engine)
	self.log = logger.NewSublogger("auction")
	self.auctionConfig = config.Auction
	return
}

func (self *Engine) WithRefunder(refunder Refunder) *Engine {
	self.refunder = refunder
	return self
}

func (self *Engine) WithMonitor(monitor *monitor.Monitor) *Engine {
	self.monitor = monitor
	return self
}

// Get returns the live auction of the asset, nil when the asset is idle
func (self *Engine) Get(ctx context.Context, tx *gorm.DB, collection common.Address, assetId uint64) (auction *model.Auction, err error) {
	var row model.Auction
	err = tx.WithContext(ctx).
		Where("collection = ? AND asset_id = ?", addr(collection), assetId).
		First(&row).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return
	}
	auction = &row
	return
}

// PlaceBid opens the auction on the first bid and raises it afterwards.
// A raise refunds the previous highest bidder in full before the new bid is
// recorded; both happen in the caller's transaction.
func (self *Engine) PlaceBid(ctx context.Context, tx *gorm.DB, batch *events.Batch, req *BidRequest) (auction *model.Auction, opened bool, err error) {
	auction, err = self.Get(ctx, tx, req.Collection, req.AssetId)
	if err != nil {
		return
	}

	if auction == nil {
		return self.open(ctx, tx, batch, req)
	}

	return self.raise(ctx, tx, batch, auction, req)
}

func (self *Engine) open(ctx context.Context, tx *gorm.DB, batch *events.Batch, req *BidRequest) (auction *model.Auction, opened bool, err error) {
	now := time.Now()

	var endTime time.Time
	var isCountdown bool
	if req.EndTime.IsZero() {
		if req.Countdown <= 0 {
			err = ErrEndTimeNotFuture
			return
		}
		if req.Countdown > self.auctionConfig.MaxCountdownDuration {
			err = ErrCountdownTooLong
			return
		}
		endTime = now.Add(req.Countdown)
		isCountdown = true
	} else {
		if !req.EndTime.After(now) {
			err = ErrEndTimeNotFuture
			return
		}
		if req.EndTime.Sub(now) > self.auctionConfig.MaxDeadlineDistance {
			err = ErrDeadlineTooFar
			return
		}
		endTime = req.EndTime
	}

	auction = &model.Auction{
		Collection:           addr(req.Collection),
		AssetId:              req.AssetId,
		Seller:               addr(req.Seller),
		HighestBidder:        addr(req.Bidder),
		HighestBidPrice:      req.Price,
		EndTime:              endTime,
		IsCountdown:          isCountdown,
		IsActive:             true,
		Description:          req.Description,
		RestrictedContentRef: req.RestrictedContentRef,
	}
	err = tx.WithContext(ctx).Create(auction).Error
	if err != nil {
		return
	}

	err = batch.Add(tx, &model.MarketplaceEvent{
		Kind:       model.EventBidOpened,
		Collection: auction.Collection,
		AssetId:    auction.AssetId,
		Initiator:  auction.HighestBidder,
		Amount:     auction.HighestBidPrice,
	})
	if err != nil {
		return
	}

	if self.monitor != nil {
		self.monitor.Report.AuctionsOpened.Inc()
	}

	opened = true
	self.log.
		WithField("collection", auction.Collection).
		WithField("assetId", auction.AssetId).
		WithField("price", auction.HighestBidPrice).
		Debug("Auction opened")
	return
}

func (self *Engine) raise(ctx context.Context, tx *gorm.DB, batch *events.Batch, auction *model.Auction, req *BidRequest) (out *model.Auction, opened bool, err error) {
	if !auction.IsActive {
		err = ErrAuctionInactive
		return
	}
	if time.Now().After(auction.EndTime) {
		err = ErrAuctionLapsed
		return
	}
	if req.Price <= auction.HighestBidPrice {
		err = ErrBidTooLow
		return
	}

	// Refund the outbid bidder in full before the new bid is recorded.
	// Countdown auctions are not extended by a raise.
	_, err = self.refunder.PayOrDefer(ctx, tx, batch,
		common.HexToAddress(auction.HighestBidder), auction.HighestBidPrice,
		req.Collection, req.AssetId)
	if err != nil {
		return
	}

	auction.HighestBidder = addr(req.Bidder)
	auction.HighestBidPrice = req.Price
	err = tx.WithContext(ctx).Save(auction).Error
	if err != nil {
		return
	}

	err = batch.Add(tx, &model.MarketplaceEvent{
		Kind:       model.EventBidRaised,
		Collection: auction.Collection,
		AssetId:    auction.AssetId,
		Initiator:  auction.HighestBidder,
		Amount:     auction.HighestBidPrice,
	})
	if err != nil {
		return
	}

	if self.monitor != nil {
		self.monitor.Report.BidsRaised.Inc()
	}

	out = auction
	return
}

// Close clears the auction back to idle once the deadline passed and returns
// the final state for settlement. The caller already authorized the
// initiator; the event attributes the close to them.
func (self *Engine) Close(ctx context.Context, tx *gorm.DB, batch *events.Batch, collection common.Address, assetId uint64, initiator common.Address) (closed *model.Auction, err error) {
	closed, err = self.Get(ctx, tx, collection, assetId)
	if err != nil {
		return
	}
	if closed == nil {
		err = ErrNotBidding
		return
	}
	if !time.Now().After(closed.EndTime) {
		err = ErrAuctionStillActive
		return
	}

	err = tx.WithContext(ctx).Delete(&model.Auction{}, closed.ID).Error
	if err != nil {
		return
	}

	err = batch.Add(tx, &model.MarketplaceEvent{
		Kind:       model.EventAuctionClosed,
		Collection: closed.Collection,
		AssetId:    closed.AssetId,
		Initiator:  addr(initiator),
		Recipient:  closed.HighestBidder,
		Amount:     closed.HighestBidPrice,
	})
	if err != nil {
		return
	}

	if self.monitor != nil {
		self.monitor.Report.AuctionsClosed.Inc()
	}

	self.log.
		WithField("collection", closed.Collection).
		WithField("assetId", closed.AssetId).
		WithField("price", closed.HighestBidPrice).
		Debug("Auction closed")
	return
}

// FlagAbandoned counts auctions that lapsed longer than the retention ago
// without being closed. Escrow is never seized, this is observability only.
func (self *Engine) FlagAbandoned(ctx context.Context, db *gorm.DB) (err error) {
	cutoff := time.Now().Add(-self.auctionConfig.AbandonedRetention)

	var count int64
	err = db.WithContext(ctx).
		Model(&model.Auction{}).
		Where("end_time < ?", cutoff).
		Count(&count).
		Error
	if err != nil {
		return
	}

	if self.monitor != nil {
		self.monitor.Report.AuctionsAbandoned.Store(uint64(count))
	}
	if count > 0 {
		self.log.WithField("num", count).Warn("Auctions lapsed without being closed")
	}
	return
}

func addr(a common.Address) string {
	return strings.ToLower(a.Hex())
}
