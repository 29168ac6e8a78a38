package eth

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestSignRecoverRoundTrip(t *testing.T) {
	signer, err := NewSigner(testKey)
	assert.Nil(t, err)

	digest := crypto.Keccak256Hash([]byte("message"))
	signature, err := signer.Sign(digest)
	assert.Nil(t, err)
	assert.Len(t, signature, SignatureLength)

	recovered, err := Recover(digest, signature)
	assert.Nil(t, err)
	assert.Equal(t, signer.Address(), recovered)

	assert.Nil(t, Verify(signer.Address(), digest, signature))
}

func TestVerifyRejectsWrongDigest(t *testing.T) {
	signer, err := NewSigner(testKey)
	assert.Nil(t, err)

	signature, err := signer.Sign(crypto.Keccak256Hash([]byte("message")))
	assert.Nil(t, err)

	err = Verify(signer.Address(), crypto.Keccak256Hash([]byte("other")), signature)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestRecoverRejectsShortSignature(t *testing.T) {
	_, err := Recover(crypto.Keccak256Hash([]byte("message")), []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidSignatureLength)
}

func TestRecoverAcceptsLegacyV(t *testing.T) {
	signer, err := NewSigner(testKey)
	assert.Nil(t, err)

	digest := crypto.Keccak256Hash([]byte("message"))
	signature, err := signer.Sign(digest)
	assert.Nil(t, err)

	signature[64] += 27
	recovered, err := Recover(digest, signature)
	assert.Nil(t, err)
	assert.Equal(t, signer.Address(), recovered)
}
