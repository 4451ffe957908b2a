package sig_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"arbor/core/sig"
)

func TestSignRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := crypto.PubkeyToAddress(key.PublicKey)
	digest := crypto.Keccak256Hash([]byte("message"))

	signature, err := sig.Sign(digest, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	recovered, err := sig.RecoverSigner(digest, signature)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != signer {
		t.Errorf("recovered %s, want %s", recovered.Hex(), signer.Hex())
	}
}

func TestRecoverNormalizesV(t *testing.T) {
	key, _ := crypto.GenerateKey()
	signer := crypto.PubkeyToAddress(key.PublicKey)
	digest := crypto.Keccak256Hash([]byte("message"))

	signature, err := sig.Sign(digest, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	// Legacy encoding offsets the recovery id by 27.
	signature[64] += 27
	recovered, err := sig.RecoverSigner(digest, signature)
	if err != nil {
		t.Fatalf("recover legacy v: %v", err)
	}
	if recovered != signer {
		t.Errorf("recovered %s, want %s", recovered.Hex(), signer.Hex())
	}
}

func TestRecoverWrongKey(t *testing.T) {
	key, _ := crypto.GenerateKey()
	other, _ := crypto.GenerateKey()
	digest := crypto.Keccak256Hash([]byte("message"))

	signature, _ := sig.Sign(digest, other)
	recovered, err := sig.RecoverSigner(digest, signature)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered == crypto.PubkeyToAddress(key.PublicKey) {
		t.Error("signature from another key recovered to the wrong signer")
	}
}

func TestRecoverBadLength(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("message"))
	if _, err := sig.RecoverSigner(digest, make([]byte, 64)); err == nil {
		t.Error("expected error for a 64-byte signature")
	}
	if _, err := sig.RecoverSigner(digest, nil); err == nil {
		t.Error("expected error for a nil signature")
	}
}

func TestPersonalDigestDiffers(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("message"))
	if sig.PersonalDigest(digest) == digest {
		t.Error("envelope must change the digest")
	}
}
