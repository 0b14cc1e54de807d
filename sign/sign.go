// Package sign provides Ed25519 digital signatures for bulletin-board
// messages (spec §6 "External interfaces": "Ed25519 as provided by a
// standard library"). There is no context/domain-separation handling
// here: as in the original's SignatureScheme trait, any message context
// must already be folded into the bytes the caller passes to Sign.
package sign

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/xerrors"
)

// SigningKey is a private Ed25519 signing key.
type SigningKey struct {
	priv ed25519.PrivateKey
}

// VerifyingKey is the public counterpart of a SigningKey.
type VerifyingKey struct {
	pub ed25519.PublicKey
}

// Signature is an Ed25519 signature over a message.
type Signature []byte

// Generate creates a fresh signing key, sampling from the operating
// system's CSPRNG (spec §5: "every random_* function MUST draw from a
// cryptographically secure RNG").
func Generate() (SigningKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return SigningKey{}, xerrors.Wrap(xerrors.SignatureError, "generating ed25519 signing key", err)
	}
	return SigningKey{priv: priv}, nil
}

// VerifyingKey returns the public key corresponding to sk.
func (sk SigningKey) VerifyingKey() VerifyingKey {
	pub := sk.priv.Public().(ed25519.PublicKey)
	return VerifyingKey{pub: pub}
}

// Sign signs message with sk.
func (sk SigningKey) Sign(message []byte) Signature {
	return Signature(ed25519.Sign(sk.priv, message))
}

// Bytes returns the verifying key's wire encoding (32 bytes).
func (vk VerifyingKey) Bytes() []byte { return []byte(vk.pub) }

// VerifyingKeyFromBytes parses a 32-byte Ed25519 public key.
func VerifyingKeyFromBytes(b []byte) (VerifyingKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return VerifyingKey{}, xerrors.New(xerrors.DeserializationError, "ed25519 verifying key must be 32 bytes")
	}
	pub := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(pub, b)
	return VerifyingKey{pub: pub}, nil
}

// Verify checks signature against message under vk.
func Verify(message []byte, signature Signature, vk VerifyingKey) error {
	if !ed25519.Verify(vk.pub, message, []byte(signature)) {
		return xerrors.New(xerrors.SignatureError, "ed25519 signature verification failed")
	}
	return nil
}
