package marketplace

import (
	"testing"

	"github.com/superworldapp/nftsalon-engine/src/utils/eth"
	"github.com/superworldapp/nftsalon-engine/src/utils/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"
)

const testSignerKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestTermsTestSuite(t *testing.T) {
	suite.Run(t, new(TermsTestSuite))
}

type TermsTestSuite struct {
	suite.Suite
	signer   *eth.Signer
	verifier *Verifier
	state    model.MarketplaceState
}

func (s *TermsTestSuite) SetupSuite() {
	signer, err := eth.NewSigner(testSignerKey)
	s.NoError(err)
	s.signer = signer
	s.verifier = NewVerifier()
	s.state = model.MarketplaceState{
		Id:            1,
		SignerAddress: addrString(signer.Address()),
	}
}

func addrString(a common.Address) string {
	return lower(a)
}

func (s *TermsTestSuite) mintTerms() *MintTerms {
	return &MintTerms{
		Collection:         common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		AssetId:            7,
		BatchId:            1,
		Price:              1000,
		Creator:            common.HexToAddress("0x0000000000000000000000000000000000000052"),
		Buyer:              common.HexToAddress("0x0000000000000000000000000000000000000071"),
		MetadataRef:        "ipfs://meta",
		RoyaltyRecipients:  []common.Address{common.HexToAddress("0x0000000000000000000000000000000000000052")},
		RoyaltyPercentages: []uint{30},
	}
}

func (s *TermsTestSuite) bidTerms() *BidTerms {
	return &BidTerms{
		Collection: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		AssetId:    7,
		Price:      100,
		Bidder:     common.HexToAddress("0x0000000000000000000000000000000000000061"),
		Seller:     common.HexToAddress("0x0000000000000000000000000000000000000051"),
		EndTime:    1700000000,
	}
}

func (s *TermsTestSuite) TestDigestDeterministic() {
	s.Equal(s.mintTerms().Digest(), s.mintTerms().Digest())
	s.Equal(s.bidTerms().Digest(), s.bidTerms().Digest())
}

func (s *TermsTestSuite) TestDigestCoversEveryField() {
	base := s.mintTerms().Digest()

	mutations := []func(*MintTerms){
		func(t *MintTerms) { t.Collection = common.HexToAddress("0xbb") },
		func(t *MintTerms) { t.AssetId = 8 },
		func(t *MintTerms) { t.BatchId = 2 },
		func(t *MintTerms) { t.Price = 999 },
		func(t *MintTerms) { t.Creator = common.HexToAddress("0x01") },
		func(t *MintTerms) { t.Buyer = common.HexToAddress("0x01") },
		func(t *MintTerms) { t.MetadataRef = "ipfs://other" },
		func(t *MintTerms) { t.RestrictedContentRef = "x" },
		func(t *MintTerms) { t.RoyaltyRecipients = nil },
		func(t *MintTerms) { t.RoyaltyPercentages = []uint{31} },
	}
	for _, mutate := range mutations {
		terms := s.mintTerms()
		mutate(terms)
		s.NotEqual(base, terms.Digest())
	}
}

func (s *TermsTestSuite) TestDigestLengthPrefixing() {
	// Moving a byte across a string boundary must change the digest
	a := s.mintTerms()
	a.MetadataRef = "ab"
	a.RestrictedContentRef = "c"

	b := s.mintTerms()
	b.MetadataRef = "a"
	b.RestrictedContentRef = "bc"

	s.NotEqual(a.Digest(), b.Digest())
}

func (s *TermsTestSuite) TestSignatureRoundTrip() {
	terms := s.mintTerms()
	signature, err := s.signer.Sign(terms.Digest())
	s.NoError(err)

	s.NoError(s.verifier.VerifyMint(&s.state, terms, signature))

	bid := s.bidTerms()
	signature, err = s.signer.Sign(bid.Digest())
	s.NoError(err)

	s.NoError(s.verifier.VerifyBid(&s.state, bid, signature))
}

func (s *TermsTestSuite) TestTamperedTermsRejected() {
	terms := s.mintTerms()
	signature, err := s.signer.Sign(terms.Digest())
	s.NoError(err)

	terms.Price = 1
	s.ErrorIs(s.verifier.VerifyMint(&s.state, terms, signature), ErrNotAuthorized)
}

func (s *TermsTestSuite) TestWrongSignerRejected() {
	other, err := eth.NewSigner("0x2222222222222222222222222222222222222222222222222222222222222222")
	s.NoError(err)

	terms := s.mintTerms()
	signature, err := other.Sign(terms.Digest())
	s.NoError(err)

	s.ErrorIs(s.verifier.VerifyMint(&s.state, terms, signature), ErrNotAuthorized)
}

func (s *TermsTestSuite) TestLegacyRecoveryIdAccepted() {
	terms := s.mintTerms()
	signature, err := s.signer.Sign(terms.Digest())
	s.NoError(err)

	// Wallets commonly emit 27/28 instead of 0/1
	signature[64] += 27
	s.NoError(s.verifier.VerifyMint(&s.state, terms, signature))
}

func (s *TermsTestSuite) TestMalformedSignatureRejected() {
	terms := s.mintTerms()

	err := s.verifier.VerifyMint(&s.state, terms, []byte{1, 2, 3})
	s.ErrorIs(err, ErrNotAuthorized)
}

func (s *TermsTestSuite) TestMissingSignerConfiguration() {
	terms := s.mintTerms()
	signature, err := s.signer.Sign(terms.Digest())
	s.NoError(err)

	empty := model.MarketplaceState{Id: 1}
	s.ErrorIs(s.verifier.VerifyMint(&empty, terms, signature), ErrSignerNotConfigured)
}
