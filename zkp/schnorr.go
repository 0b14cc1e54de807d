// Package zkp implements the non-interactive zero-knowledge proofs used by
// the protocol: Schnorr proof of knowledge of a discrete log, discrete-log
// equality, plaintext equality (used inside Naor-Yung), and a verifiable
// shuffle built from per-position disjunctive Schnorr proofs (not the
// Terelius-Wikström product argument; see ShuffleProof). Every proof is made non-interactive
// via Fiat-Shamir: the challenge is hash_to_scalar over a transcript of
// public inputs and the prover's first-move commitments, with a
// domain-separation tag distinct per proof type (spec §4.5).
package zkp

import (
	"github.com/FreeAndFair/MobileVotingCoreCryptography/group"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/xerrors"
)

var schnorrTag = []byte("schnorr-pok-dlog")

// SchnorrProof proves knowledge of x such that y = g^x, without revealing x.
type SchnorrProof struct {
	A group.Element // commitment: g^r
	Z group.Scalar  // response: r + c*x
}

// Prove constructs a Schnorr proof of knowledge of x for y = ctx.GExp(x).
func Prove(ctx group.Context, x group.Scalar, y group.Element) (SchnorrProof, error) {
	r, err := ctx.RandomScalar()
	if err != nil {
		return SchnorrProof{}, xerrors.Wrap(xerrors.ProofError, "sampling schnorr commitment randomness", err)
	}
	a := ctx.GExp(r)

	c, err := schnorrChallenge(ctx, y, a)
	if err != nil {
		return SchnorrProof{}, err
	}
	z := r.Add(c.Mul(x))
	return SchnorrProof{A: a, Z: z}, nil
}

// Verify checks a Schnorr proof that the prover knows x with y = g^x: g^z ?=
// A * y^c.
func Verify(ctx group.Context, y group.Element, proof SchnorrProof) error {
	c, err := schnorrChallenge(ctx, y, proof.A)
	if err != nil {
		return err
	}
	lhs := ctx.GExp(proof.Z)
	rhs := proof.A.Add(y.ScalarMult(c))
	if !lhs.Equal(rhs) {
		return xerrors.New(xerrors.ProofError, "schnorr verification equation failed")
	}
	return nil
}

func schnorrChallenge(ctx group.Context, y, a group.Element) (group.Scalar, error) {
	slices := [][]byte{ctx.Generator().Bytes(), y.Bytes(), a.Bytes()}
	tags := [][]byte{schnorrTag, schnorrTag, schnorrTag}
	c, err := ctx.HashToScalar(slices, tags)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ProofError, "deriving schnorr challenge", err)
	}
	return c, nil
}
