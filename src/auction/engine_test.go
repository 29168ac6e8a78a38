package auction

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/superworldapp/nftsalon-engine/src/events"
	"github.com/superworldapp/nftsalon-engine/src/royalty"
	"github.com/superworldapp/nftsalon-engine/src/settle"
	"github.com/superworldapp/nftsalon-engine/src/utils/config"
	"github.com/superworldapp/nftsalon-engine/src/utils/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/xid"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestAuctionEngineTestSuite(t *testing.T) {
	suite.Run(t, new(AuctionEngineTestSuite))
}

type AuctionEngineTestSuite struct {
	suite.Suite
	ctx     context.Context
	cancel  context.CancelFunc
	config  *config.Config
	db      *gorm.DB
	engine  *Engine
	emitter *events.Emitter

	collection common.Address
	seller     common.Address
	bidder1    common.Address
	bidder2    common.Address
}

func (s *AuctionEngineTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.config = config.Default()
	s.collection = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	s.seller = common.HexToAddress("0x0000000000000000000000000000000000000051")
	s.bidder1 = common.HexToAddress("0x0000000000000000000000000000000000000061")
	s.bidder2 = common.HexToAddress("0x0000000000000000000000000000000000000062")
}

func (s *AuctionEngineTestSuite) TearDownSuite() {
	s.cancel()
}

func (s *AuctionEngineTestSuite) SetupTest() {
	// Unique shared-cache database, every pooled connection sees the same data
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", xid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	s.NoError(err)
	s.NoError(db.AutoMigrate(
		&model.MarketplaceState{},
		&model.Auction{},
		&model.AccountBalance{},
		&model.PendingBalance{},
		&model.RoyaltyShare{},
		&model.MarketplaceEvent{},
	))
	s.NoError(db.Create(&model.MarketplaceState{Id: 1, NextAssetId: 1}).Error)
	s.db = db

	refunder := settle.NewEngine().
		WithRegistry(royalty.NewRegistry()).
		WithRail(settle.NewLedgerRail())

	s.emitter = events.NewEmitter()
	s.engine = NewEngine(s.config).
		WithRefunder(refunder)
}

func (s *AuctionEngineTestSuite) bid(req *BidRequest) (auction *model.Auction, opened bool, err error) {
	batch := s.emitter.Batch("test")
	err = s.db.Transaction(func(tx *gorm.DB) (err error) {
		auction, opened, err = s.engine.PlaceBid(s.ctx, tx, batch, req)
		return
	})
	return
}

func (s *AuctionEngineTestSuite) close(initiator common.Address) (closed *model.Auction, err error) {
	batch := s.emitter.Batch("test")
	err = s.db.Transaction(func(tx *gorm.DB) (err error) {
		closed, err = s.engine.Close(s.ctx, tx, batch, s.collection, 1, initiator)
		return
	})
	return
}

func (s *AuctionEngineTestSuite) available(a common.Address) uint64 {
	var row model.AccountBalance
	err := s.db.First(&row, "address = ?", addr(a)).Error
	if err != nil {
		return 0
	}
	return row.Available
}

func (s *AuctionEngineTestSuite) request(bidder common.Address, price uint64) *BidRequest {
	return &BidRequest{
		Collection: s.collection,
		AssetId:    1,
		Bidder:     bidder,
		Seller:     s.seller,
		Price:      price,
		EndTime:    time.Now().Add(time.Hour),
	}
}

func (s *AuctionEngineTestSuite) TestFirstBidOpensAuction() {
	auction, opened, err := s.bid(s.request(s.bidder1, 100))
	s.NoError(err)
	s.True(opened)
	s.Equal(addr(s.bidder1), auction.HighestBidder)
	s.Equal(uint64(100), auction.HighestBidPrice)
	s.True(auction.IsActive)
}

func (s *AuctionEngineTestSuite) TestRaiseRefundsPreviousBidder() {
	_, _, err := s.bid(s.request(s.bidder1, 100))
	s.NoError(err)

	auction, opened, err := s.bid(s.request(s.bidder2, 150))
	s.NoError(err)
	s.False(opened)
	s.Equal(addr(s.bidder2), auction.HighestBidder)
	s.Equal(uint64(150), auction.HighestBidPrice)

	// The outbid bidder got the full escrow back
	s.Equal(uint64(100), s.available(s.bidder1))
	s.Equal(uint64(0), s.available(s.bidder2))
}

func (s *AuctionEngineTestSuite) TestEqualBidRejected() {
	_, _, err := s.bid(s.request(s.bidder1, 100))
	s.NoError(err)

	_, _, err = s.bid(s.request(s.bidder2, 100))
	s.ErrorIs(err, ErrBidTooLow)

	_, _, err = s.bid(s.request(s.bidder2, 99))
	s.ErrorIs(err, ErrBidTooLow)
}

func (s *AuctionEngineTestSuite) TestOpenValidatesDeadline() {
	req := s.request(s.bidder1, 100)
	req.EndTime = time.Now().Add(-time.Minute)
	_, _, err := s.bid(req)
	s.ErrorIs(err, ErrEndTimeNotFuture)

	req = s.request(s.bidder1, 100)
	req.EndTime = time.Now().Add(s.config.Auction.MaxDeadlineDistance + time.Hour)
	_, _, err = s.bid(req)
	s.ErrorIs(err, ErrDeadlineTooFar)
}

func (s *AuctionEngineTestSuite) TestCountdownAuction() {
	req := s.request(s.bidder1, 100)
	req.EndTime = time.Time{}
	req.Countdown = 30 * time.Minute

	auction, opened, err := s.bid(req)
	s.NoError(err)
	s.True(opened)
	s.True(auction.IsCountdown)
	s.WithinDuration(time.Now().Add(30*time.Minute), auction.EndTime, 10*time.Second)

	// A raise does not move the deadline
	req2 := s.request(s.bidder2, 150)
	req2.EndTime = time.Time{}
	req2.Countdown = 30 * time.Minute
	raised, _, err := s.bid(req2)
	s.NoError(err)
	s.Equal(auction.EndTime.Unix(), raised.EndTime.Unix())
}

func (s *AuctionEngineTestSuite) TestCountdownTooLong() {
	req := s.request(s.bidder1, 100)
	req.EndTime = time.Time{}
	req.Countdown = s.config.Auction.MaxCountdownDuration + time.Hour

	_, _, err := s.bid(req)
	s.ErrorIs(err, ErrCountdownTooLong)
}

func (s *AuctionEngineTestSuite) TestBidAfterDeadlineRejected() {
	req := s.request(s.bidder1, 100)
	req.EndTime = time.Now().Add(50 * time.Millisecond)
	_, _, err := s.bid(req)
	s.NoError(err)

	time.Sleep(100 * time.Millisecond)

	_, _, err = s.bid(s.request(s.bidder2, 150))
	s.ErrorIs(err, ErrAuctionLapsed)
}

func (s *AuctionEngineTestSuite) TestCloseBeforeDeadlineRejected() {
	_, _, err := s.bid(s.request(s.bidder1, 100))
	s.NoError(err)

	_, err = s.close(s.seller)
	s.ErrorIs(err, ErrAuctionStillActive)
}

func (s *AuctionEngineTestSuite) TestCloseWithoutAuctionRejected() {
	_, err := s.close(s.seller)
	s.ErrorIs(err, ErrNotBidding)
}

func (s *AuctionEngineTestSuite) TestCloseReturnsFinalState() {
	req := s.request(s.bidder1, 100)
	req.EndTime = time.Now().Add(50 * time.Millisecond)
	_, _, err := s.bid(req)
	s.NoError(err)

	time.Sleep(100 * time.Millisecond)

	closed, err := s.close(s.seller)
	s.NoError(err)
	s.Equal(addr(s.bidder1), closed.HighestBidder)
	s.Equal(uint64(100), closed.HighestBidPrice)

	// The asset is idle again
	live, err := s.engine.Get(s.ctx, s.db, s.collection, 1)
	s.NoError(err)
	s.Nil(live)

	// And a fresh auction can open
	_, opened, err := s.bid(s.request(s.bidder2, 10))
	s.NoError(err)
	s.True(opened)
}

func (s *AuctionEngineTestSuite) TestOutbidChain() {
	// B1 100, B2 150, B1 200: every outbid refund lands before the next raise
	_, _, err := s.bid(s.request(s.bidder1, 100))
	s.NoError(err)
	_, _, err = s.bid(s.request(s.bidder2, 150))
	s.NoError(err)
	auction, _, err := s.bid(s.request(s.bidder1, 200))
	s.NoError(err)

	s.Equal(addr(s.bidder1), auction.HighestBidder)
	s.Equal(uint64(100), s.available(s.bidder1))
	s.Equal(uint64(150), s.available(s.bidder2))
}
