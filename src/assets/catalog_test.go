package assets

import (
	"context"
	"fmt"
	"testing"

	"github.com/superworldapp/nftsalon-engine/src/utils/config"
	"github.com/superworldapp/nftsalon-engine/src/utils/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/xid"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestCatalogTestSuite(t *testing.T) {
	suite.Run(t, new(CatalogTestSuite))
}

type CatalogTestSuite struct {
	suite.Suite
	ctx     context.Context
	cancel  context.CancelFunc
	db      *gorm.DB
	catalog *Catalog

	collection common.Address
}

func (s *CatalogTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.collection = common.HexToAddress("0x00000000000000000000000000000000000000aa")
}

func (s *CatalogTestSuite) TearDownSuite() {
	s.cancel()
}

func (s *CatalogTestSuite) SetupTest() {
	// Unique shared-cache database, every pooled connection sees the same data
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", xid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	s.NoError(err)
	s.NoError(db.AutoMigrate(&model.Collection{}, &model.Asset{}))
	s.db = db

	s.catalog = NewCatalog(config.Default())
}

func (s *CatalogTestSuite) register(minting, multi bool) {
	s.NoError(s.db.Save(&model.Collection{
		Address:               Addr(s.collection),
		Name:                  "test",
		SupportsNativeMinting: minting,
		SupportsMultiRoyalty:  multi,
	}).Error)
}

func (s *CatalogTestSuite) TestProbeResolvesCapabilities() {
	s.register(true, true)

	caps, err := s.catalog.Probe(s.ctx, s.db, s.collection)
	s.NoError(err)
	s.Equal(NativeMintable, caps.Minting)
	s.Equal(MultiRoyalty, caps.Royalty)
}

func (s *CatalogTestSuite) TestProbeUnknownCollection() {
	_, err := s.catalog.Probe(s.ctx, s.db, s.collection)
	s.ErrorIs(err, ErrUnknownCollection)
}

func (s *CatalogTestSuite) TestProbeSeesUncommittedRegistration() {
	// A probe inside a transaction reads the transaction's snapshot, not a
	// separate connection
	err := s.db.Transaction(func(tx *gorm.DB) (err error) {
		err = tx.Save(&model.Collection{
			Address:               Addr(s.collection),
			SupportsNativeMinting: true,
		}).Error
		s.NoError(err)

		caps, err := s.catalog.Probe(s.ctx, tx, s.collection)
		s.NoError(err)
		s.Equal(NativeMintable, caps.Minting)
		return
	})
	s.NoError(err)
}

func (s *CatalogTestSuite) TestForgetDropsCachedProbe() {
	s.register(true, false)

	caps, err := s.catalog.Probe(s.ctx, s.db, s.collection)
	s.NoError(err)
	s.Equal(NativeMintable, caps.Minting)

	// The cached result survives a record change until forgotten
	s.register(false, false)
	caps, err = s.catalog.Probe(s.ctx, s.db, s.collection)
	s.NoError(err)
	s.Equal(NativeMintable, caps.Minting)

	s.catalog.Forget(s.collection)
	caps, err = s.catalog.Probe(s.ctx, s.db, s.collection)
	s.NoError(err)
	s.Equal(StandardTransferOnly, caps.Minting)
}

func (s *CatalogTestSuite) TestTransferChecksOwnership() {
	owner := common.HexToAddress("0x0000000000000000000000000000000000000051")
	stranger := common.HexToAddress("0x0000000000000000000000000000000000000061")
	s.NoError(s.db.Create(&model.Asset{
		Collection: Addr(s.collection),
		AssetId:    1,
		Owner:      Addr(owner),
	}).Error)

	err := s.catalog.Transfer(s.ctx, s.db, s.collection, 1, stranger, owner)
	s.ErrorIs(err, ErrNotAssetOwner)

	s.NoError(s.catalog.Transfer(s.ctx, s.db, s.collection, 1, owner, stranger))
	got, err := s.catalog.OwnerOf(s.ctx, s.db, s.collection, 1)
	s.NoError(err)
	s.Equal(stranger, got)
}
