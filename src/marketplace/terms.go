package marketplace

import (
	"bytes"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MintTerms are the authority-approved economic terms of a mint or direct
// sale. The same struct both feeds the settlement path and produces the
// signed digest, so the two cannot drift apart.
type MintTerms struct {
	Collection common.Address `json:"collection"`

	// 0 means the marketplace assigns the next sequential id
	AssetId uint64 `json:"assetId"`

	BatchId uint64 `json:"batchId"`
	Price   uint64 `json:"price"`

	// Expected seller of an existing asset, creator of a minted one
	Creator common.Address `json:"creator"`
	Buyer   common.Address `json:"buyer"`

	MetadataRef          string `json:"metadataRef"`
	RestrictedContentRef string `json:"restrictedContentRef"`

	RoyaltyRecipients  []common.Address `json:"royaltyRecipients"`
	RoyaltyPercentages []uint           `json:"royaltyPercentages"`
}

// Digest is the canonical message the authority signs: every economically
// meaningful field, in fixed order, variable length fields length-prefixed.
// The message carries no nonce or expiry, a signature stays valid for
// identical terms.
func (self *MintTerms) Digest() common.Hash {
	var buf bytes.Buffer

	buf.Write(self.Collection.Bytes())
	writeU64(&buf, self.AssetId)
	writeU64(&buf, self.BatchId)
	writeU64(&buf, self.Price)
	buf.Write(self.Creator.Bytes())
	buf.Write(self.Buyer.Bytes())
	writeStr(&buf, self.MetadataRef)
	writeStr(&buf, self.RestrictedContentRef)

	writeU64(&buf, uint64(len(self.RoyaltyRecipients)))
	for _, recipient := range self.RoyaltyRecipients {
		buf.Write(recipient.Bytes())
	}
	writeU64(&buf, uint64(len(self.RoyaltyPercentages)))
	for _, percentage := range self.RoyaltyPercentages {
		writeU64(&buf, uint64(percentage))
	}

	return crypto.Keccak256Hash(buf.Bytes())
}

// BidTerms are the authority-approved terms of one bid
type BidTerms struct {
	Collection common.Address `json:"collection"`
	AssetId    uint64         `json:"assetId"`
	Price      uint64         `json:"price"`
	Bidder     common.Address `json:"bidder"`
	Seller     common.Address `json:"seller"`

	// Absolute deadline as unix seconds, 0 means countdown style
	EndTime int64 `json:"endTime"`

	// Countdown in seconds from the first bid, used when EndTime is 0
	CountdownSeconds int64 `json:"countdownSeconds"`

	Description          string `json:"description"`
	RestrictedContentRef string `json:"restrictedContentRef"`
}

func (self *BidTerms) Digest() common.Hash {
	var buf bytes.Buffer

	buf.Write(self.Collection.Bytes())
	writeU64(&buf, self.AssetId)
	writeU64(&buf, self.Price)
	buf.Write(self.Bidder.Bytes())
	buf.Write(self.Seller.Bytes())
	writeU64(&buf, uint64(self.EndTime))
	writeU64(&buf, uint64(self.CountdownSeconds))
	writeStr(&buf, self.Description)
	writeStr(&buf, self.RestrictedContentRef)

	return crypto.Keccak256Hash(buf.Bytes())
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], v)
	buf.Write(scratch[:])
}

func writeStr(buf *bytes.Buffer, s string) {
	writeU64(buf, uint64(len(s)))
	buf.WriteString(s)
}
