package marketplace

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/superworldapp/nftsalon-engine/src/assets"
	"github.com/superworldapp/nftsalon-engine/src/auction"
	"github.com/superworldapp/nftsalon-engine/src/events"
	"github.com/superworldapp/nftsalon-engine/src/royalty"
	"github.com/superworldapp/nftsalon-engine/src/settle"
	"github.com/superworldapp/nftsalon-engine/src/utils/config"
	"github.com/superworldapp/nftsalon-engine/src/utils/eth"
	"github.com/superworldapp/nftsalon-engine/src/utils/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/xid"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestFacadeTestSuite(t *testing.T) {
	suite.Run(t, new(FacadeTestSuite))
}

type FacadeTestSuite struct {
	suite.Suite
	ctx     context.Context
	cancel  context.CancelFunc
	config  *config.Config
	db      *gorm.DB
	facade  *Facade
	signer  *eth.Signer
	emitter *events.Emitter
	sink    chan *model.MarketplaceEvent

	collection common.Address
	owner      common.Address
	seller     common.Address
	creator    common.Address
	bidder1    common.Address
	bidder2    common.Address
	buyer      common.Address
	authorized common.Address
}

func (s *FacadeTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	signer, err := eth.NewSigner(testSignerKey)
	s.NoError(err)
	s.signer = signer

	s.collection = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	s.owner = common.HexToAddress("0x0000000000000000000000000000000000000011")
	s.seller = common.HexToAddress("0x0000000000000000000000000000000000000051")
	s.creator = common.HexToAddress("0x0000000000000000000000000000000000000052")
	s.bidder1 = common.HexToAddress("0x0000000000000000000000000000000000000061")
	s.bidder2 = common.HexToAddress("0x0000000000000000000000000000000000000062")
	s.buyer = common.HexToAddress("0x0000000000000000000000000000000000000071")
	s.authorized = common.HexToAddress("0x0000000000000000000000000000000000000081")
}

func (s *FacadeTestSuite) TearDownSuite() {
	s.cancel()
}

func (s *FacadeTestSuite) SetupTest() {
	s.config = config.Default()
	s.config.Marketplace.OwnerAddress = s.owner.Hex()
	s.config.Marketplace.SignerAddress = s.signer.Address().Hex()
	s.config.Marketplace.AuthorizedCaller = s.authorized.Hex()

	// Unique shared-cache database, every pooled connection sees the same data
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", xid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	s.NoError(err)
	s.NoError(db.AutoMigrate(
		&model.MarketplaceState{},
		&model.Collection{},
		&model.Asset{},
		&model.RoyaltyShare{},
		&model.Auction{},
		&model.AccountBalance{},
		&model.PendingBalance{},
		&model.MarketplaceEvent{},
	))
	s.db = db

	rail := settle.NewLedgerRail()
	registry := royalty.NewRegistry()

	s.emitter = events.NewEmitter()
	s.sink = s.emitter.Subscribe(100)

	settler := settle.NewEngine().
		WithRegistry(registry).
		WithRail(rail)

	auctions := auction.NewEngine(s.config).
		WithRefunder(settler)

	catalog := assets.NewCatalog(s.config)

	s.facade = NewFacade(s.config).
		WithDB(db).
		WithRegistry(registry).
		WithSettler(settler).
		WithAuctions(auctions).
		WithCatalog(catalog).
		WithRail(rail).
		WithEmitter(s.emitter)

	s.NoError(s.facade.EnsureState(s.ctx))

	s.NoError(s.facade.RegisterCollection(s.ctx, s.owner, &model.Collection{
		Address:               s.collection.Hex(),
		Name:                  "test",
		SupportsNativeMinting: true,
		SupportsMultiRoyalty:  true,
	}))
}

func (s *FacadeTestSuite) deposit(account common.Address, amount uint64) {
	s.NoError(s.facade.Deposit(s.ctx, account, amount))
}

func (s *FacadeTestSuite) available(a common.Address) uint64 {
	balances, err := s.facade.GetBalances(s.ctx, a)
	s.NoError(err)
	return balances.Available
}

func (s *FacadeTestSuite) mintAsset(assetId uint64, owner common.Address) {
	s.NoError(s.db.Create(&model.Asset{
		Collection: lower(s.collection),
		AssetId:    assetId,
		Owner:      lower(owner),
		Creator:    lower(s.creator),
	}).Error)
}

func (s *FacadeTestSuite) signedBid(bidder common.Address, price uint64, deadline time.Time) (*BidTerms, []byte) {
	terms := &BidTerms{
		Collection: s.collection,
		AssetId:    1,
		Price:      price,
		Bidder:     bidder,
		Seller:     s.seller,
		EndTime:    deadline.Unix(),
	}
	signature, err := s.signer.Sign(terms.Digest())
	s.NoError(err)
	return terms, signature
}

func (s *FacadeTestSuite) signedMint(terms *MintTerms) []byte {
	signature, err := s.signer.Sign(terms.Digest())
	s.NoError(err)
	return signature
}

func (s *FacadeTestSuite) drainEvents() (kinds []model.EventKind) {
	for {
		select {
		case event := <-s.sink:
			kinds = append(kinds, event.Kind)
		default:
			return
		}
	}
}

func (s *FacadeTestSuite) TestAuctionLifecycle() {
	s.mintAsset(1, s.seller)
	s.deposit(s.bidder1, 1000)
	s.deposit(s.bidder2, 1000)
	s.drainEvents()

	// First bid opens the auction and escrows exactly the price
	terms, signature := s.signedBid(s.bidder1, 100, time.Now().Add(time.Second))
	result, err := s.facade.PlaceBid(s.ctx, terms, signature, 500, "")
	s.NoError(err)
	s.True(result.Opened)
	s.Equal(uint64(900), s.available(s.bidder1))

	// Outbid refunds the previous bidder
	terms, signature = s.signedBid(s.bidder2, 150, time.Now().Add(time.Second))
	result, err = s.facade.PlaceBid(s.ctx, terms, signature, 150, "")
	s.NoError(err)
	s.False(result.Opened)
	s.Equal(uint64(1000), s.available(s.bidder1))
	s.Equal(uint64(850), s.available(s.bidder2))

	// Close after the deadline settles to the winner
	time.Sleep(1100 * time.Millisecond)
	disposition, err := s.facade.CloseAuction(s.ctx, s.collection, 1, s.seller)
	s.NoError(err)
	s.Equal(uint64(150), disposition.Gross)
	s.Equal(uint64(15), disposition.Fee)
	s.Equal(uint64(135), disposition.Seller.Amount)

	owner, err := s.facade.catalog.OwnerOf(s.ctx, s.db, s.collection, 1)
	s.NoError(err)
	s.Equal(s.bidder2, owner)

	s.Equal(uint64(135), s.available(s.seller))

	kinds := s.drainEvents()
	s.Contains(kinds, model.EventBidOpened)
	s.Contains(kinds, model.EventBidRaised)
	s.Contains(kinds, model.EventAuctionClosed)
	s.Contains(kinds, model.EventAssetSold)
}

func (s *FacadeTestSuite) TestBidValidation() {
	s.mintAsset(1, s.seller)
	s.deposit(s.bidder1, 1000)

	// Attached below price
	terms, signature := s.signedBid(s.bidder1, 100, time.Now().Add(time.Hour))
	_, err := s.facade.PlaceBid(s.ctx, terms, signature, 99, "")
	s.ErrorIs(err, ErrInsufficientAttachment)

	// Tampered terms
	terms.Price = 1
	_, err = s.facade.PlaceBid(s.ctx, terms, signature, 1, "")
	s.ErrorIs(err, ErrNotAuthorized)

	// Nothing escrowed, no auction opened
	s.Equal(uint64(1000), s.available(s.bidder1))
	live, err := s.facade.GetAuction(s.ctx, s.collection, 1)
	s.NoError(err)
	s.Nil(live)
}

func (s *FacadeTestSuite) TestBidWithoutFundsRollsBack() {
	s.mintAsset(1, s.seller)

	terms, signature := s.signedBid(s.bidder1, 100, time.Now().Add(time.Hour))
	_, err := s.facade.PlaceBid(s.ctx, terms, signature, 100, "")
	s.ErrorIs(err, settle.ErrInsufficientFunds)

	live, err := s.facade.GetAuction(s.ctx, s.collection, 1)
	s.NoError(err)
	s.Nil(live)

	// The failed operation published nothing
	s.Empty(s.drainEvents())
}

func (s *FacadeTestSuite) TestCloseAuthorization() {
	s.mintAsset(1, s.seller)
	s.deposit(s.bidder1, 1000)

	terms, signature := s.signedBid(s.bidder1, 100, time.Now().Add(time.Second))
	_, err := s.facade.PlaceBid(s.ctx, terms, signature, 100, "")
	s.NoError(err)

	time.Sleep(1100 * time.Millisecond)

	// A stranger cannot close
	_, err = s.facade.CloseAuction(s.ctx, s.collection, 1, s.bidder2)
	s.ErrorIs(err, ErrWrongCloser)

	// The highest bidder can
	_, err = s.facade.CloseAuction(s.ctx, s.collection, 1, s.bidder1)
	s.NoError(err)
}

func (s *FacadeTestSuite) TestCloseByOwner() {
	s.mintAsset(1, s.seller)
	s.deposit(s.bidder1, 1000)

	terms, signature := s.signedBid(s.bidder1, 100, time.Now().Add(time.Second))
	_, err := s.facade.PlaceBid(s.ctx, terms, signature, 100, "")
	s.NoError(err)

	time.Sleep(1100 * time.Millisecond)

	_, err = s.facade.CloseAuction(s.ctx, s.collection, 1, s.owner)
	s.NoError(err)
}

func (s *FacadeTestSuite) TestBuyMintsWithRoyalties() {
	s.deposit(s.buyer, 2000)
	s.drainEvents()

	terms := &MintTerms{
		Collection:         s.collection,
		AssetId:            7,
		Price:              1000,
		Creator:            s.creator,
		Buyer:              s.buyer,
		MetadataRef:        "ipfs://meta",
		RoyaltyRecipients:  []common.Address{s.creator},
		RoyaltyPercentages: []uint{30},
	}

	disposition, err := s.facade.Buy(s.ctx, terms, s.signedMint(terms), 1000)
	s.NoError(err)

	// Fee 10% of 1000, royalty 30% of the remaining 900, rest to the creator
	// acting as the seller of the mint
	s.Equal(uint64(100), disposition.Fee)
	s.Len(disposition.Royalties, 1)
	s.Equal(uint64(270), disposition.Royalties[0].Amount)
	s.Equal(uint64(630), disposition.Seller.Amount)

	owner, err := s.facade.catalog.OwnerOf(s.ctx, s.db, s.collection, 7)
	s.NoError(err)
	s.Equal(s.buyer, owner)

	// The approved royalty list is registered for future resales
	rows, err := s.facade.GetRoyalties(s.ctx, s.collection, 7)
	s.NoError(err)
	s.Len(rows, 1)
	s.Equal(uint(30), rows[0].Percentage)

	kinds := s.drainEvents()
	s.Contains(kinds, model.EventAssetMinted)
	s.Contains(kinds, model.EventAssetSold)
}

func (s *FacadeTestSuite) TestBuySequentialAssetId() {
	s.deposit(s.buyer, 2000)

	terms := &MintTerms{
		Collection: s.collection,
		AssetId:    0,
		Price:      100,
		Creator:    s.creator,
		Buyer:      s.buyer,
	}

	_, err := s.facade.Buy(s.ctx, terms, s.signedMint(terms), 100)
	s.NoError(err)

	// First sequential id
	owner, err := s.facade.catalog.OwnerOf(s.ctx, s.db, s.collection, 1)
	s.NoError(err)
	s.Equal(s.buyer, owner)

	state, err := s.facade.GetState(s.ctx)
	s.NoError(err)
	s.Equal(uint64(2), state.NextAssetId)
}

func (s *FacadeTestSuite) TestBuyExistingAsset() {
	s.mintAsset(3, s.creator)
	s.deposit(s.buyer, 2000)

	terms := &MintTerms{
		Collection: s.collection,
		AssetId:    3,
		Price:      500,
		Creator:    s.creator,
		Buyer:      s.buyer,
	}

	disposition, err := s.facade.Buy(s.ctx, terms, s.signedMint(terms), 500)
	s.NoError(err)
	s.Equal(uint64(450), disposition.Seller.Amount)

	owner, err := s.facade.catalog.OwnerOf(s.ctx, s.db, s.collection, 3)
	s.NoError(err)
	s.Equal(s.buyer, owner)
}

func (s *FacadeTestSuite) TestBuyExistingAssetSellerChanged() {
	s.mintAsset(3, s.seller)
	s.deposit(s.buyer, 2000)

	// Approved seller is the creator but the seller owns the asset now
	terms := &MintTerms{
		Collection: s.collection,
		AssetId:    3,
		Price:      500,
		Creator:    s.creator,
		Buyer:      s.buyer,
	}

	_, err := s.facade.Buy(s.ctx, terms, s.signedMint(terms), 500)
	s.ErrorIs(err, ErrSellerChanged)
	s.Equal(uint64(2000), s.available(s.buyer))
}

func (s *FacadeTestSuite) TestBuyClearsLiveAuction() {
	s.mintAsset(1, s.creator)
	s.deposit(s.bidder1, 1000)
	s.deposit(s.buyer, 2000)

	bid, signature := s.signedBid(s.bidder1, 100, time.Now().Add(time.Hour))
	_, err := s.facade.PlaceBid(s.ctx, bid, signature, 100, "")
	s.NoError(err)
	s.Equal(uint64(900), s.available(s.bidder1))

	terms := &MintTerms{
		Collection: s.collection,
		AssetId:    1,
		Price:      500,
		Creator:    s.creator,
		Buyer:      s.buyer,
	}
	_, err = s.facade.Buy(s.ctx, terms, s.signedMint(terms), 500)
	s.NoError(err)

	// The winning bidder got the escrow back and the auction is gone
	s.Equal(uint64(1000), s.available(s.bidder1))
	live, err := s.facade.GetAuction(s.ctx, s.collection, 1)
	s.NoError(err)
	s.Nil(live)
}

func (s *FacadeTestSuite) TestGift() {
	s.mintAsset(1, s.seller)
	s.drainEvents()

	s.NoError(s.facade.Gift(s.ctx, s.collection, 1, s.seller, s.buyer))

	owner, err := s.facade.catalog.OwnerOf(s.ctx, s.db, s.collection, 1)
	s.NoError(err)
	s.Equal(s.buyer, owner)

	// A gift is not a sale
	kinds := s.drainEvents()
	s.Contains(kinds, model.EventAssetGifted)
	s.NotContains(kinds, model.EventAssetSold)
}

func (s *FacadeTestSuite) TestGiftBlockedByAuction() {
	s.mintAsset(1, s.seller)
	s.deposit(s.bidder1, 1000)

	terms, signature := s.signedBid(s.bidder1, 100, time.Now().Add(time.Hour))
	_, err := s.facade.PlaceBid(s.ctx, terms, signature, 100, "")
	s.NoError(err)

	err = s.facade.Gift(s.ctx, s.collection, 1, s.seller, s.buyer)
	s.ErrorIs(err, ErrAuctionInProgress)
}

func (s *FacadeTestSuite) TestGiftRequiresOwnership() {
	s.mintAsset(1, s.seller)

	err := s.facade.Gift(s.ctx, s.collection, 1, s.buyer, s.bidder1)
	s.ErrorIs(err, assets.ErrNotAssetOwner)
}

func (s *FacadeTestSuite) TestWithdrawFeesOwnerOnly() {
	_, _, err := s.facade.WithdrawFees(s.ctx, s.seller, 0)
	s.ErrorIs(err, ErrNotOwner)
}

func (s *FacadeTestSuite) TestWithdrawFeesAfterSale() {
	s.mintAsset(3, s.creator)
	s.deposit(s.buyer, 2000)

	terms := &MintTerms{
		Collection: s.collection,
		AssetId:    3,
		Price:      1000,
		Creator:    s.creator,
		Buyer:      s.buyer,
	}
	_, err := s.facade.Buy(s.ctx, terms, s.signedMint(terms), 1000)
	s.NoError(err)

	withdrawn, deferred, err := s.facade.WithdrawFees(s.ctx, s.owner, 0)
	s.NoError(err)
	s.False(deferred)
	s.Equal(uint64(100), withdrawn)
	s.Equal(uint64(100), s.available(s.owner))
}

func (s *FacadeTestSuite) TestUpdateSettings() {
	err := s.facade.UpdateSettings(s.ctx, s.seller, &SettingsUpdate{})
	s.ErrorIs(err, ErrNotOwner)

	fee := uint(5)
	err = s.facade.UpdateSettings(s.ctx, s.owner, &SettingsUpdate{FeeRatePercent: &fee})
	s.NoError(err)

	state, err := s.facade.GetState(s.ctx)
	s.NoError(err)
	s.Equal(uint(5), state.FeeRatePercent)
	// Untouched fields keep their values
	s.Equal(uint(50), state.RoyaltyCapPercent)
}

func (s *FacadeTestSuite) TestSetRoyaltiesAuthorization() {
	s.mintAsset(1, s.seller)

	recipients := []common.Address{s.creator}
	percentages := []uint{20}

	// A stranger cannot
	err := s.facade.SetRoyalties(s.ctx, s.buyer, s.collection, 1, recipients, percentages)
	s.ErrorIs(err, ErrRoyaltyCallerForbidden)

	// The creator can
	err = s.facade.SetRoyalties(s.ctx, s.creator, s.collection, 1, recipients, percentages)
	s.NoError(err)

	// The configured authorized caller can
	err = s.facade.SetRoyalties(s.ctx, s.authorized, s.collection, 1, recipients, []uint{25})
	s.NoError(err)

	rows, err := s.facade.GetRoyalties(s.ctx, s.collection, 1)
	s.NoError(err)
	s.Len(rows, 1)
	s.Equal(uint(25), rows[0].Percentage)
}

func (s *FacadeTestSuite) TestSetRoyaltiesOverCap() {
	s.mintAsset(1, s.seller)

	err := s.facade.SetRoyalties(s.ctx, s.creator, s.collection, 1,
		[]common.Address{s.creator, s.seller}, []uint{30, 25})
	s.ErrorIs(err, royalty.ErrPercentageCapExceeded)
}

func (s *FacadeTestSuite) TestLocationUpdate() {
	s.mintAsset(1, s.seller)
	s.deposit(s.bidder1, 1000)

	terms, signature := s.signedBid(s.bidder1, 100, time.Now().Add(time.Hour))
	_, err := s.facade.PlaceBid(s.ctx, terms, signature, 100, "40.7484,-73.9857")
	s.NoError(err)

	var asset model.Asset
	s.NoError(s.db.First(&asset, "collection = ? AND asset_id = ?", lower(s.collection), uint64(1)).Error)
	s.Equal("40.7484,-73.9857", asset.Location)
}

func (s *FacadeTestSuite) TestReregisterCollectionRefreshesCapabilities() {
	s.deposit(s.buyer, 2000)

	// Mint once so the capabilities get cached
	terms := &MintTerms{
		Collection: s.collection,
		AssetId:    1,
		Price:      100,
		Creator:    s.creator,
		Buyer:      s.buyer,
	}
	_, err := s.facade.Buy(s.ctx, terms, s.signedMint(terms), 100)
	s.NoError(err)

	// Re-register without native minting, the next missing asset cannot mint
	s.NoError(s.facade.RegisterCollection(s.ctx, s.owner, &model.Collection{
		Address:              s.collection.Hex(),
		Name:                 "test",
		SupportsMultiRoyalty: true,
	}))

	terms = &MintTerms{
		Collection: s.collection,
		AssetId:    5,
		Price:      100,
		Creator:    s.creator,
		Buyer:      s.buyer,
	}
	_, err = s.facade.Buy(s.ctx, terms, s.signedMint(terms), 100)
	s.ErrorIs(err, assets.ErrAssetNotFound)
}

func (s *FacadeTestSuite) TestUnknownCollectionRejected() {
	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	s.deposit(s.buyer, 2000)

	terms := &MintTerms{
		Collection: other,
		AssetId:    1,
		Price:      100,
		Creator:    s.creator,
		Buyer:      s.buyer,
	}

	_, err := s.facade.Buy(s.ctx, terms, s.signedMint(terms), 100)
	s.ErrorIs(err, assets.ErrUnknownCollection)
}
