package settle

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
	ErrInsufficientFunds = errors.New("account balance is insufficient")
	ErrAccountBlocked    = errors.New("account does not accept transfers")
)

// Rail moves value between accounts. Collect failures are fatal to the
// enclosing operation, Transfer failures are recoverable and handled by the
// pull-payment fallback. Both outcomes are known before the call returns.
type Rail interface {
	// Collect takes the attached payment from the payer
	Collect(ctx context.Context, tx *gorm.DB, from common.Address, amount uint64) error

	// Transfer delivers value to the recipient
	Transfer(ctx context.Context, tx *gorm.DB, to common.Address, amount uint64) error
}

// LedgerRail is the custodial default: value moves between deposit balance
// rows. Transfers to blocked accounts fail and end up in the pending ledger.
type LedgerRail struct {
	log *logrus.Entry
}

func NewLedgerRail() (self *LedgerRail) {
	self = new(LedgerRail)
	self.log = logger.NewSublogger("rail")
	return
}

func (self *LedgerRail) Collect(ctx context.Context, tx *gorm.DB, from common.Address, amount uint64) (err error) {
	if amount == 0 {
		return
	}

	var row model.AccountBalance
	err = tx.WithContext(ctx).First(&row, "address = ?", addr(from)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInsufficientFunds
	}
	if err != nil {
		return
	}
	if row.Available < amount {
		return ErrInsufficientFunds
	}

	row.Available -= amount
	return tx.WithContext(ctx).Save(&row).Error
}

func (self *LedgerRail) Transfer(ctx context.Context, tx *gorm.DB, to common.Address, amount uint64) (err error) {
	if amount == 0 {
		return
	}

	var row model.AccountBalance
	err = tx.WithContext(ctx).First(&row, "address = ?", addr(to)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// First credit opens the account
		row = model.AccountBalance{Address: addr(to), Available: amount}
		return tx.WithContext(ctx).Create(&row).Error
	}
	if err != nil {
		return
	}
	if row.Blocked {
		return ErrAccountBlocked
	}

	row.Available += amount
	return tx.WithContext(ctx).Save(&row).Error
}

func addr(a common.Address) string {
	return strings.ToLower(a.Hex())
}
