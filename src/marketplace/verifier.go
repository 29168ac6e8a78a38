package marketplace

import (
	"errors"
	"fmt"

	"github.com/superworldapp/nftsalon-engine/src/utils/eth"
	"github.com/superworldapp/nftsalon-engine/src/utils/logger"
	"github.com/superworldapp/nftsalon-engine/src/utils/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

var (
	ErrSignerNotConfigured = errors.New("marketplace signer address is not configured")
	ErrNotAuthorized       = errors.New("terms were not approved by the marketplace authority")
)

// Verifier checks that an operation's terms carry a valid signature of the
// configured off-chain authority. A rejected signature aborts the whole
// operation before any state is touched.
type Verifier struct {
	log *logrus.Entry
}

func NewVerifier() (self *Verifier) {
	self = new(Verifier)
	self.log = logger.NewSublogger("verifier")
	return
}

func (self *Verifier) VerifyMint(state *model.MarketplaceState, terms *MintTerms, signature []byte) error {
	return self.verify(state, terms.Digest(), signature)
}

func (self *Verifier) VerifyBid(state *model.MarketplaceState, terms *BidTerms, signature []byte) error {
	return self.verify(state, terms.Digest(), signature)
}

func (self *Verifier) verify(state *model.MarketplaceState, digest common.Hash, signature []byte) (err error) {
	if state.SignerAddress == "" {
		return ErrSignerNotConfigured
	}

	err = eth.Verify(common.HexToAddress(state.SignerAddress), digest, signature)
	if err != nil {
		self.log.WithError(err).Debug("Signature rejected")
		return fmt.Errorf("%w: %s", ErrNotAuthorized, err)
	}
	return
}
