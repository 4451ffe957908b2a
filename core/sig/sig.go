// Package sig implements the recoverable-signature primitive shared by the
// account kernel's bootstrap fallback and the validator modules: EIP-191
// personal-message prefixing and signer recovery over secp256k1.
package sig

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PersonalDigest wraps a 32-byte digest in the conventional signed-message
// envelope before recovery or signing.
func PersonalDigest(digest common.Hash) common.Hash {
	return crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), digest.Bytes())
}

// RecoverSigner recovers the address that produced a 65-byte recoverable
// signature over the personal-message envelope of digest. Recovery ids
// offset by 27 are normalized.
func RecoverSigner(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("sig: signature must be %d bytes, got %d", crypto.SignatureLength, len(signature))
	}
	norm := make([]byte, crypto.SignatureLength)
	copy(norm, signature)
	if norm[64] >= 27 {
		norm[64] -= 27
	}
	pub, err := crypto.SigToPub(PersonalDigest(digest).Bytes(), norm)
	if err != nil {
		return common.Address{}, fmt.Errorf("sig: recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Sign produces a recoverable signature over the personal-message envelope
// of digest. Used by tests and the CLI demo; verification never needs the
// private key.
func Sign(digest common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	return crypto.Sign(PersonalDigest(digest).Bytes(), key)
}
