// Package naoryung implements the Naor-Yung CCA2 transform over width-W
// ElGamal (spec §4.4, "EVS: Definition 11.31"): a second public key h, for
// which no party ever learns the discrete log, is derived deterministically
// from the ElGamal public key. Every ciphertext carries a proof that both
// components were built with the same randomness; Strip verifies that proof
// and, on success, yields a plain ElGamal ciphertext that the original
// secret key can decrypt directly.
package naoryung

import (
	"github.com/FreeAndFair/MobileVotingCoreCryptography/elgamal"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/group"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/xerrors"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/zkp"
)

var secondKeyTag = []byte("naor-yung-h2")

// PublicKey is a Naor-Yung public key: an ElGamal public key pk, plus a
// second generator h = hash_to_element(pk || ctx, "naor-yung-h2") for which
// the discrete log is unknown to any party.
type PublicKey struct {
	ctx group.Context
	eg  elgamal.PublicKey
	h   group.Element
}

// Ciphertext is a Naor-Yung ciphertext: two parallel ElGamal-shaped
// component vectors sharing randomness r, plus a proof that they do.
type Ciphertext struct {
	U1    []group.Element
	U2    []group.Element
	V     []group.Element
	Proof zkp.PlaintextEqProof
}

// Augment derives a Naor-Yung public key from an existing ElGamal key pair,
// using keyContext as the domain-separating context bytes fed into the
// second-key derivation (spec's "derived from publicly available
// information, through a hash function").
func Augment(ctx group.Context, eg elgamal.PublicKey, keyContext []byte) (PublicKey, error) {
	h, err := ctx.HashToElement([][]byte{eg.Element().Bytes(), keyContext}, [][]byte{secondKeyTag, secondKeyTag})
	if err != nil {
		return PublicKey{}, xerrors.Wrap(xerrors.HashToElementError, "deriving naor-yung second key", err)
	}
	return PublicKey{ctx: ctx, eg: eg, h: h}, nil
}

// Encrypt builds a Naor-Yung ciphertext for m. It takes no per-encryption
// context bytes: context is bound only through the second key h derived
// in Augment, and the plaintext-equality proof's challenge is
// domain-separated by that proof's fixed tag.
func (pk PublicKey) Encrypt(m []group.Element) (Ciphertext, error) {
	r, err := pk.ctx.RandomScalar()
	if err != nil {
		return Ciphertext{}, xerrors.Wrap(xerrors.ProtocolError, "sampling naor-yung randomness", err)
	}

	eg1, err := pk.eg.EncryptWithRandomness(m, r)
	if err != nil {
		return Ciphertext{}, err
	}
	u2 := group.Replicate(pk.h, repeat(r, len(m)))

	proof, err := zkp.ProvePlaintextEq(pk.ctx, r, pk.ctx.Generator(), eg1.U[0], pk.h, u2[0])
	if err != nil {
		return Ciphertext{}, xerrors.Wrap(xerrors.ProofError, "building naor-yung plaintext-equality proof", err)
	}

	return Ciphertext{U1: eg1.U, U2: u2, V: eg1.V, Proof: proof}, nil
}

// Strip verifies the plaintext-equality proof and, if valid, returns the
// plain ElGamal ciphertext (U1, V) that the underlying secret key decrypts.
// An invalid proof rejects the ciphertext outright (spec: "Invalid π
// signals a rejected ciphertext").
func (pk PublicKey) Strip(ct Ciphertext) (elgamal.Ciphertext, error) {
	if len(ct.U1) == 0 || len(ct.U1) != len(ct.U2) || len(ct.U1) != len(ct.V) {
		return elgamal.Ciphertext{}, xerrors.New(xerrors.ProtocolError, "naor-yung ciphertext component length mismatch")
	}
	if err := zkp.VerifyPlaintextEq(pk.ctx, pk.ctx.Generator(), ct.U1[0], pk.h, ct.U2[0], ct.Proof); err != nil {
		return elgamal.Ciphertext{}, xerrors.Wrap(xerrors.ProofError, "naor-yung ciphertext rejected", err)
	}
	return elgamal.Ciphertext{U: ct.U1, V: ct.V}, nil
}

func repeat(s group.Scalar, n int) []group.Scalar {
	out := make([]group.Scalar, n)
	for i := range out {
		out[i] = s
	}
	return out
}
