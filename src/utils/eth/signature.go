package eth

import (
	"bytes"
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidSignatureLength = errors.New("signature must be 65 bytes long")
	ErrSignatureMismatch      = errors.New("signature does not match the expected signer")
)

const SignatureLength = 65

// Recover returns the address that produced the signature over the digest
func Recover(digest common.Hash, signature []byte) (signer common.Address, err error) {
	if len(signature) != SignatureLength {
		err = ErrInvalidSignatureLength
		return
	}

	// Accept both 0/1 and 27/28 recovery ids
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubkey, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return
	}

	signer = crypto.PubkeyToAddress(*pubkey)
	return
}

// Verify checks the signature over the digest against the expected signer
func Verify(expected common.Address, digest common.Hash, signature []byte) (err error) {
	signer, err := Recover(digest, signature)
	if err != nil {
		return
	}
	if !bytes.Equal(signer.Bytes(), expected.Bytes()) {
		return ErrSignatureMismatch
	}
	return
}

// Signer produces signatures accepted by Verify.
// Used by the authority's signing tooling and in tests.
type Signer struct {
	PrivateKey *ecdsa.PrivateKey
}

func NewSigner(privateKeyHex string) (self *Signer, err error) {
	self = new(Signer)

	buf, err := hexutil.Decode(privateKeyHex)
	if err != nil {
		return
	}

	self.PrivateKey, err = crypto.ToECDSA(buf)
	if err != nil {
		return
	}

	return
}

func (self *Signer) Sign(digest common.Hash) (signature []byte, err error) {
	return crypto.Sign(digest.Bytes(), self.PrivateKey)
}

func (self *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(self.PrivateKey.PublicKey)
}
