package zkp

import (
	"github.com/FreeAndFair/MobileVotingCoreCryptography/group"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/xerrors"
)

var pleqTag = []byte("naor-yung-plaintext-eq")

// PlaintextEqProof proves knowledge of r such that u1 = g^r and u2 = h^r,
// used inside Naor-Yung to show both component ciphertexts were built with
// the same randomness (spec §4.4, §4.5). Structurally a DlogEq proof under
// its own domain-separation tag.
type PlaintextEqProof struct {
	inner DlogEqProof
}

// ProvePlaintextEq constructs a plaintext-equality proof for u1 = g^r, u2 = h^r.
func ProvePlaintextEq(ctx group.Context, r group.Scalar, g, u1, h, u2 group.Element) (PlaintextEqProof, error) {
	p, err := proveEqTagged(ctx, pleqTag, r, g, u1, h, u2)
	if err != nil {
		return PlaintextEqProof{}, err
	}
	return PlaintextEqProof{inner: p}, nil
}

// VerifyPlaintextEq checks a plaintext-equality proof.
func VerifyPlaintextEq(ctx group.Context, g, u1, h, u2 group.Element, proof PlaintextEqProof) error {
	if err := verifyEqTagged(ctx, pleqTag, g, u1, h, u2, proof.inner); err != nil {
		return xerrors.Wrap(xerrors.ProofError, "naor-yung plaintext equality proof rejected", err)
	}
	return nil
}

// proveEqTagged and verifyEqTagged let ProveEq/VerifyEq's challenge
// derivation be reused under a distinct tag, instead of duplicating the
// commit/respond logic for every DlogEq-shaped proof in this package.
func proveEqTagged(ctx group.Context, tag []byte, x group.Scalar, g1, y1, g2, y2 group.Element) (DlogEqProof, error) {
	r, err := ctx.RandomScalar()
	if err != nil {
		return DlogEqProof{}, xerrors.Wrap(xerrors.ProofError, "sampling commitment randomness", err)
	}
	a1 := g1.ScalarMult(r)
	a2 := g2.ScalarMult(r)

	c, err := dlogEqChallengeTagged(ctx, tag, g1, y1, g2, y2, a1, a2)
	if err != nil {
		return DlogEqProof{}, err
	}
	z := r.Add(c.Mul(x))
	return DlogEqProof{A1: a1, A2: a2, Z: z}, nil
}

func verifyEqTagged(ctx group.Context, tag []byte, g1, y1, g2, y2 group.Element, proof DlogEqProof) error {
	c, err := dlogEqChallengeTagged(ctx, tag, g1, y1, g2, y2, proof.A1, proof.A2)
	if err != nil {
		return err
	}
	lhs1 := g1.ScalarMult(proof.Z)
	rhs1 := proof.A1.Add(y1.ScalarMult(c))
	if !lhs1.Equal(rhs1) {
		return xerrors.New(xerrors.ProofError, "verification equation 1 failed")
	}
	lhs2 := g2.ScalarMult(proof.Z)
	rhs2 := proof.A2.Add(y2.ScalarMult(c))
	if !lhs2.Equal(rhs2) {
		return xerrors.New(xerrors.ProofError, "verification equation 2 failed")
	}
	return nil
}

func dlogEqChallengeTagged(ctx group.Context, tag []byte, g1, y1, g2, y2, a1, a2 group.Element) (group.Scalar, error) {
	slices := [][]byte{g1.Bytes(), y1.Bytes(), g2.Bytes(), y2.Bytes(), a1.Bytes(), a2.Bytes()}
	tags := make([][]byte, len(slices))
	for i := range tags {
		tags[i] = tag
	}
	c, err := ctx.HashToScalar(slices, tags)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ProofError, "deriving challenge", err)
	}
	return c, nil
}
