package marketplace

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/superworldapp/nftsalon-engine/src/assets"
	"github.com/superworldapp/nftsalon-engine/src/auction"
	"github.com/superworldapp/nftsalon-engine/src/events"
	"github.com/superworldapp/nftsalon-engine/src/royalty"
	"github.com/superworldapp/nftsalon-engine/src/settle"
	"github.com/superworldapp/nftsalon-engine/src/utils/config"
	"github.com/superworldapp/nftsalon-engine/src/utils/eth"
	"github.com/superworldapp/nftsalon-engine/src/utils/logger"
	"github.com/superworldapp/nftsalon-engine/src/utils/model"
	"github.com/superworldapp/nftsalon-engine/src/utils/monitor"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrInsufficientAttachment = errors.New("attached amount is smaller than the price")
	ErrNotOwner               = errors.New("only the marketplace owner may do this")
	ErrWrongCloser            = errors.New("only the owner, the seller or the highest bidder may close the auction")
	ErrAuctionInProgress      = errors.New("a live auction blocks transferring the asset")
	ErrRoyaltyCallerForbidden = errors.New("only the asset creator or the authorized caller may register royalties")
	ErrSellerChanged          = errors.New("the approved seller no longer owns the asset")
)

// Facade orchestrates the marketplace operations: every externally triggered
// operation runs under one exclusive lock and inside one transaction, so a
// fatal failure leaves no partial effects.
type Facade struct {
	log *logrus.Entry

	marketplaceConfig config.Marketplace

	db       *gorm.DB
	verifier *Verifier
	registry *royalty.Registry
	settler  *settle.Engine
	auctions *auction.Engine
	catalog  assets.Registry
	rail     settle.Rail
	emitter  *events.Emitter
	monitor  *monitor.Monitor

	// Serializes externally triggered operations
	opMu sync.Mutex
}

func NewFacade(config *config.Config) (self *Facade) {
	self = new(Facade)
	self.log = logger.NewSublogger("facade")
	self.marketplaceConfig = config.Marketplace
	self.verifier = NewVerifier()
	return
}

func (self *Facade) WithDB(db *gorm.DB) *Facade {
	self.db = db
	return self
}

func (self *Facade) WithRegistry(registry *royalty.Registry) *Facade {
	self.registry = registry
	return self
}

func (self *Facade) WithSettler(settler *settle.Engine) *Facade {
	self.settler = settler
	return self
}

func (self *Facade) WithAuctions(auctions *auction.Engine) *Facade {
	self.auctions = auctions
	return self
}

func (self *Facade) WithCatalog(catalog assets.Registry) *Facade {
	self.catalog = catalog
	return self
}

func (self *Facade) WithRail(rail settle.Rail) *Facade {
	self.rail = rail
	return self
}

func (self *Facade) WithEmitter(emitter *events.Emitter) *Facade {
	self.emitter = emitter
	return self
}

func (self *Facade) WithMonitor(monitor *monitor.Monitor) *Facade {
	self.monitor = monitor
	return self
}

// EnsureState seeds the marketplace state row from the configuration on
// first run
func (self *Facade) EnsureState(ctx context.Context) (err error) {
	_, err = model.LoadState(self.db.WithContext(ctx))
	if err == nil {
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}

	state := model.MarketplaceState{
		Id:                1,
		FeeRatePercent:    self.marketplaceConfig.FeeRatePercent,
		RoyaltyCapPercent: self.marketplaceConfig.RoyaltyCapPercent,
		SignerAddress:     strings.ToLower(self.marketplaceConfig.SignerAddress),
		AuthorizedCaller:  strings.ToLower(self.marketplaceConfig.AuthorizedCaller),
		NextAssetId:       1,
	}
	self.log.Info("Seeding marketplace state")
	return self.db.WithContext(ctx).Create(&state).Error
}

// runOperation is the single entry point of every state-changing operation:
// exclusive lock, one transaction, events published only after commit.
func (self *Facade) runOperation(ctx context.Context, name string, f func(tx *gorm.DB, batch *events.Batch) error) (err error) {
	self.opMu.Lock()
	defer self.opMu.Unlock()

	operationId := xid.New().String()
	batch := self.emitter.Batch(operationId)

	err = self.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(tx, batch)
	})
	if err != nil {
		self.classify(err)
		self.log.
			WithError(err).
			WithField("operation", name).
			WithField("operationId", operationId).
			Debug("Operation rejected")
		return
	}

	batch.Publish()
	return
}

func (self *Facade) classify(err error) {
	if self.monitor == nil {
		return
	}
	switch {
	case errors.Is(err, ErrNotAuthorized),
		errors.Is(err, eth.ErrSignatureMismatch),
		errors.Is(err, eth.ErrInvalidSignatureLength):
		self.monitor.Report.Errors.AuthorizationFailures.Inc()
	case errors.Is(err, settle.ErrNegativeRemainder):
		self.monitor.Report.Errors.ConfigurationFailures.Inc()
	default:
		self.monitor.Report.Errors.ValidationFailures.Inc()
	}
}

// BidResult reports the auction state after a bid
type BidResult struct {
	Opened          bool      `json:"opened"`
	HighestBidder   string    `json:"highestBidder"`
	HighestBidPrice uint64    `json:"highestBidPrice"`
	EndTime         time.Time `json:"endTime"`
}

// PlaceBid verifies the bid terms, escrows the price and drives the auction
// state machine. The asset's display location piggybacks on the request.
func (self *Facade) PlaceBid(ctx context.Context, terms *BidTerms, signature []byte, attached uint64, location string) (result *BidResult, err error) {
	err = self.runOperation(ctx, "place-bid", func(tx *gorm.DB, batch *events.Batch) (err error) {
		state, err := model.LoadState(tx)
		if err != nil {
			return
		}

		err = self.verifier.VerifyBid(&state, terms, signature)
		if err != nil {
			return
		}

		if attached < terms.Price {
			return ErrInsufficientAttachment
		}

		// Escrow exactly the bid price
		err = self.rail.Collect(ctx, tx, terms.Bidder, terms.Price)
		if err != nil {
			return
		}

		req := &auction.BidRequest{
			Collection:           terms.Collection,
			AssetId:              terms.AssetId,
			Bidder:               terms.Bidder,
			Seller:               terms.Seller,
			Price:                terms.Price,
			Description:          terms.Description,
			RestrictedContentRef: terms.RestrictedContentRef,
		}
		if terms.EndTime != 0 {
			req.EndTime = time.Unix(terms.EndTime, 0)
		} else {
			req.Countdown = time.Duration(terms.CountdownSeconds) * time.Second
		}

		state2, opened, err := self.auctions.PlaceBid(ctx, tx, batch, req)
		if err != nil {
			return
		}

		err = self.recordLocation(ctx, tx, batch, terms.Collection, terms.AssetId, location)
		if err != nil {
			return
		}

		result = &BidResult{
			Opened:          opened,
			HighestBidder:   state2.HighestBidder,
			HighestBidPrice: state2.HighestBidPrice,
			EndTime:         state2.EndTime,
		}
		return
	})
	return
}

// CloseAuction ends a lapsed auction and settles the sale to the highest
// bidder. The owner, the seller and the highest bidder may close; the
// outcome is the same for all three, only the event attribution differs.
func (self *Facade) CloseAuction(ctx context.Context, collection common.Address, assetId uint64, initiator common.Address) (disposition *settle.Disposition, err error) {
	err = self.runOperation(ctx, "close-auction", func(tx *gorm.DB, batch *events.Batch) (err error) {
		state, err := model.LoadState(tx)
		if err != nil {
			return
		}

		live, err := self.auctions.Get(ctx, tx, collection, assetId)
		if err != nil {
			return
		}
		if live == nil {
			return auction.ErrNotBidding
		}

		if !self.isOwner(initiator) &&
			lower(initiator) != live.Seller &&
			lower(initiator) != live.HighestBidder {
			return ErrWrongCloser
		}

		closed, err := self.auctions.Close(ctx, tx, batch, collection, assetId, initiator)
		if err != nil {
			return
		}

		// Funds were escrowed at bid time, settle them to the seller now
		disposition, err = self.mintOrBuy(ctx, tx, batch, &state, &saleTerms{
			collection:           collection,
			assetId:              assetId,
			seller:               common.HexToAddress(closed.Seller),
			buyer:                common.HexToAddress(closed.HighestBidder),
			gross:                closed.HighestBidPrice,
			restrictedContentRef: closed.RestrictedContentRef,
		})
		return
	})
	return
}

// saleTerms is the settlement slice of an operation, shared by the direct
// buy and the auction close paths
type saleTerms struct {
	collection common.Address
	assetId    uint64
	seller     common.Address
	buyer      common.Address
	gross      uint64

	batchId              uint64
	metadataRef          string
	restrictedContentRef string
}

// mintOrBuy transfers an existing asset or mints a missing one when the
// collection supports native minting, then settles the payment.
func (self *Facade) mintOrBuy(ctx context.Context, tx *gorm.DB, batch *events.Batch, state *model.MarketplaceState, sale *saleTerms) (disposition *settle.Disposition, err error) {
	caps, err := self.catalog.Probe(ctx, tx, sale.collection)
	if err != nil {
		return
	}

	exists, err := self.catalog.Exists(ctx, tx, sale.collection, sale.assetId)
	if err != nil {
		return
	}

	if !exists {
		if caps.Minting != assets.NativeMintable {
			return nil, assets.ErrAssetNotFound
		}

		err = self.catalog.Mint(ctx, tx, sale.collection, sale.assetId, sale.buyer, assets.Metadata{
			Creator:              sale.seller,
			BatchId:              sale.batchId,
			MetadataRef:          sale.metadataRef,
			RestrictedContentRef: sale.restrictedContentRef,
		})
		if err != nil {
			return
		}

		err = batch.Add(tx, &model.MarketplaceEvent{
			Kind:       model.EventAssetMinted,
			Collection: lower(sale.collection),
			AssetId:    sale.assetId,
			Initiator:  lower(sale.seller),
			Recipient:  lower(sale.buyer),
		})
		if err != nil {
			return
		}
		if self.monitor != nil {
			self.monitor.Report.AssetsMinted.Inc()
		}
	} else {
		err = self.catalog.Transfer(ctx, tx, sale.collection, sale.assetId, sale.seller, sale.buyer)
		if err != nil {
			return
		}
	}

	disposition, err = self.settler.Settle(ctx, tx, batch, settle.Input{
		Gross:          sale.gross,
		Seller:         sale.seller,
		Collection:     sale.collection,
		AssetId:        sale.assetId,
		FeeRatePercent: state.FeeRatePercent,
		Royalty:        caps.Royalty,
	})
	if err != nil {
		return
	}

	err = batch.Add(tx, &model.MarketplaceEvent{
		Kind:       model.EventAssetSold,
		Collection: lower(sale.collection),
		AssetId:    sale.assetId,
		Initiator:  lower(sale.buyer),
		Recipient:  lower(sale.seller),
		Amount:     sale.gross,
	})
	return
}

// Buy executes a direct, authority-approved purchase. An asset missing from
// a native minting collection is minted with the terms' royalty split
// registered first; an existing asset changes hands from its current owner.
func (self *Facade) Buy(ctx context.Context, terms *MintTerms, signature []byte, attached uint64) (disposition *settle.Disposition, err error) {
	err = self.runOperation(ctx, "buy", func(tx *gorm.DB, batch *events.Batch) (err error) {
		state, err := model.LoadState(tx)
		if err != nil {
			return
		}

		err = self.verifier.VerifyMint(&state, terms, signature)
		if err != nil {
			return
		}

		if attached < terms.Price {
			return ErrInsufficientAttachment
		}

		assetId := terms.AssetId
		var exists bool
		if assetId == 0 {
			// Fresh sequential id, the asset cannot exist yet
			assetId = state.NextAssetId
			state.NextAssetId++
			err = model.SaveState(tx, &state)
			if err != nil {
				return
			}
		} else {
			exists, err = self.catalog.Exists(ctx, tx, terms.Collection, assetId)
			if err != nil {
				return
			}
		}

		seller := terms.Creator
		if exists {
			// Make sure the approved seller still owns the asset and no
			// winning bidder is left holding escrow
			var owner common.Address
			owner, err = self.catalog.OwnerOf(ctx, tx, terms.Collection, assetId)
			if err != nil {
				return
			}
			if owner != terms.Creator {
				return ErrSellerChanged
			}

			err = self.refundLiveBidder(ctx, tx, batch, terms.Collection, assetId)
			if err != nil {
				return
			}
		} else if len(terms.RoyaltyRecipients) > 0 {
			// The authority approved the royalty split as part of the terms
			err = self.registry.Set(ctx, tx, state.RoyaltyCapPercent, terms.Collection, assetId, terms.RoyaltyRecipients, terms.RoyaltyPercentages)
			if err != nil {
				return
			}
		}

		err = self.rail.Collect(ctx, tx, terms.Buyer, terms.Price)
		if err != nil {
			return
		}

		disposition, err = self.mintOrBuy(ctx, tx, batch, &state, &saleTerms{
			collection:           terms.Collection,
			assetId:              assetId,
			seller:               seller,
			buyer:                terms.Buyer,
			gross:                terms.Price,
			batchId:              terms.BatchId,
			metadataRef:          terms.MetadataRef,
			restrictedContentRef: terms.RestrictedContentRef,
		})
		return
	})
	return
}

// refundLiveBidder clears an unexpectedly live auction before a direct sale,
// returning the escrowed highest bid
func (self *Facade) refundLiveBidder(ctx context.Context, tx *gorm.DB, batch *events.Batch, collection common.Address, assetId uint64) (err error) {
	live, err := self.auctions.Get(ctx, tx, collection, assetId)
	if err != nil || live == nil {
		return
	}

	_, err = self.settler.PayOrDefer(ctx, tx, batch,
		common.HexToAddress(live.HighestBidder), live.HighestBidPrice,
		collection, assetId)
	if err != nil {
		return
	}

	return tx.WithContext(ctx).Delete(&model.Auction{}, live.ID).Error
}

// Gift transfers an asset without payment. Blocked while the asset has a
// live auction.
func (self *Facade) Gift(ctx context.Context, collection common.Address, assetId uint64, from, to common.Address) (err error) {
	return self.runOperation(ctx, "gift", func(tx *gorm.DB, batch *events.Batch) (err error) {
		live, err := self.auctions.Get(ctx, tx, collection, assetId)
		if err != nil {
			return
		}
		if live != nil {
			return ErrAuctionInProgress
		}

		err = self.catalog.Transfer(ctx, tx, collection, assetId, from, to)
		if err != nil {
			return
		}

		return batch.Add(tx, &model.MarketplaceEvent{
			Kind:       model.EventAssetGifted,
			Collection: lower(collection),
			AssetId:    assetId,
			Initiator:  lower(from),
			Recipient:  lower(to),
		})
	})
}

// Deposit credits funds into the account's custodial balance
func (self *Facade) Deposit(ctx context.Context, account common.Address, amount uint64) (err error) {
	return self.runOperation(ctx, "deposit", func(tx *gorm.DB, batch *events.Batch) (err error) {
		err = self.rail.Transfer(ctx, tx, account, amount)
		if err != nil {
			return
		}

		return batch.Add(tx, &model.MarketplaceEvent{
			Kind:      model.EventDeposit,
			Initiator: lower(account),
			Recipient: lower(account),
			Amount:    amount,
		})
	})
}

// WithdrawPending pays out the caller's accumulated pending balance
func (self *Facade) WithdrawPending(ctx context.Context, account common.Address) (amount uint64, deferred bool, err error) {
	err = self.runOperation(ctx, "withdraw-pending", func(tx *gorm.DB, batch *events.Batch) (err error) {
		amount, deferred, err = self.settler.WithdrawPending(ctx, tx, batch, account)
		return
	})
	return
}

// WithdrawFees pays accrued platform fees to the owner. Zero amount means
// everything.
func (self *Facade) WithdrawFees(ctx context.Context, initiator common.Address, amount uint64) (withdrawn uint64, deferred bool, err error) {
	err = self.runOperation(ctx, "withdraw-fees", func(tx *gorm.DB, batch *events.Batch) (err error) {
		if !self.isOwner(initiator) {
			return ErrNotOwner
		}

		withdrawn, deferred, err = self.settler.WithdrawFees(ctx, tx, batch, initiator, amount)
		return
	})
	return
}

// SetRoyalties replaces the asset's royalty list. Allowed for the asset
// creator and for the authorized caller.
func (self *Facade) SetRoyalties(ctx context.Context, caller, collection common.Address, assetId uint64, recipients []common.Address, percentages []uint) (err error) {
	return self.runOperation(ctx, "set-royalties", func(tx *gorm.DB, batch *events.Batch) (err error) {
		state, err := model.LoadState(tx)
		if err != nil {
			return
		}

		if lower(caller) != state.AuthorizedCaller && !self.isOwner(caller) {
			var asset model.Asset
			err = tx.WithContext(ctx).
				Where("collection = ? AND asset_id = ?", lower(collection), assetId).
				First(&asset).
				Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoyaltyCallerForbidden
			}
			if err != nil {
				return
			}
			if asset.Creator != lower(caller) {
				return ErrRoyaltyCallerForbidden
			}
		}

		return self.registry.Set(ctx, tx, state.RoyaltyCapPercent, collection, assetId, recipients, percentages)
	})
}

// SettingsUpdate carries the owner's changes, nil fields stay untouched
type SettingsUpdate struct {
	FeeRatePercent    *uint
	RoyaltyCapPercent *uint
	SignerAddress     *string
	AuthorizedCaller  *string
}

func (self *Facade) UpdateSettings(ctx context.Context, initiator common.Address, update *SettingsUpdate) (err error) {
	return self.runOperation(ctx, "update-settings", func(tx *gorm.DB, batch *events.Batch) (err error) {
		if !self.isOwner(initiator) {
			return ErrNotOwner
		}

		state, err := model.LoadState(tx)
		if err != nil {
			return
		}

		if update.FeeRatePercent != nil {
			state.FeeRatePercent = *update.FeeRatePercent
		}
		if update.RoyaltyCapPercent != nil {
			state.RoyaltyCapPercent = *update.RoyaltyCapPercent
		}
		if update.SignerAddress != nil {
			state.SignerAddress = strings.ToLower(*update.SignerAddress)
		}
		if update.AuthorizedCaller != nil {
			state.AuthorizedCaller = strings.ToLower(*update.AuthorizedCaller)
		}

		return model.SaveState(tx, &state)
	})
}

// RegisterCollection makes an asset contract known to the marketplace
// together with its probed capabilities
func (self *Facade) RegisterCollection(ctx context.Context, initiator common.Address, collection *model.Collection) (err error) {
	return self.runOperation(ctx, "register-collection", func(tx *gorm.DB, batch *events.Batch) (err error) {
		if !self.isOwner(initiator) {
			return ErrNotOwner
		}

		collection.Address = strings.ToLower(collection.Address)
		err = tx.WithContext(ctx).Save(collection).Error
		if err != nil {
			return
		}

		// A re-registration may change the capabilities, drop the cached probe
		self.catalog.Forget(common.HexToAddress(collection.Address))
		return
	})
}

// recordLocation updates the asset's human readable display location when it
// changed. A side channel with no effect on settlement.
func (self *Facade) recordLocation(ctx context.Context, tx *gorm.DB, batch *events.Batch, collection common.Address, assetId uint64, location string) (err error) {
	if location == "" {
		return
	}

	var asset model.Asset
	err = tx.WithContext(ctx).
		Where("collection = ? AND asset_id = ?", lower(collection), assetId).
		First(&asset).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Nothing to pin the location to yet
		return nil
	}
	if err != nil {
		return
	}
	if asset.Location == location {
		return
	}

	asset.Location = location
	err = tx.WithContext(ctx).Save(&asset).Error
	if err != nil {
		return
	}

	return batch.Add(tx, &model.MarketplaceEvent{
		Kind:       model.EventLocationUpdated,
		Collection: asset.Collection,
		AssetId:    asset.AssetId,
		Detail:     location,
	})
}

func (self *Facade) isOwner(account common.Address) bool {
	return self.marketplaceConfig.OwnerAddress != "" &&
		lower(account) == strings.ToLower(self.marketplaceConfig.OwnerAddress)
}

func lower(a common.Address) string {
	return strings.ToLower(a.Hex())
}
