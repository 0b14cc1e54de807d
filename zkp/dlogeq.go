package zkp

import (
	"github.com/FreeAndFair/MobileVotingCoreCryptography/group"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/xerrors"
)

var dlogEqTag = []byte("dlogeq-pok")

// DlogEqProof proves knowledge of x such that y1 = g1^x and y2 = g2^x for
// the same x, without revealing x. Used by DKG partial decryption to bind a
// decryption factor d_i = u^{s_i} to its verification key VK_i = g^{s_i}
// (spec §4.6 step 4).
type DlogEqProof struct {
	A1 group.Element // g1^r
	A2 group.Element // g2^r
	Z  group.Scalar  // r + c*x
}

// ProveEq constructs a DlogEq proof for y1 = g1^x, y2 = g2^x.
func ProveEq(ctx group.Context, x group.Scalar, g1, y1, g2, y2 group.Element) (DlogEqProof, error) {
	r, err := ctx.RandomScalar()
	if err != nil {
		return DlogEqProof{}, xerrors.Wrap(xerrors.ProofError, "sampling dlogeq commitment randomness", err)
	}
	a1 := g1.ScalarMult(r)
	a2 := g2.ScalarMult(r)

	c, err := dlogEqChallenge(ctx, g1, y1, g2, y2, a1, a2)
	if err != nil {
		return DlogEqProof{}, err
	}
	z := r.Add(c.Mul(x))
	return DlogEqProof{A1: a1, A2: a2, Z: z}, nil
}

// VerifyEq checks a DlogEq proof: g1^z ?= A1 * y1^c and g2^z ?= A2 * y2^c.
func VerifyEq(ctx group.Context, g1, y1, g2, y2 group.Element, proof DlogEqProof) error {
	c, err := dlogEqChallenge(ctx, g1, y1, g2, y2, proof.A1, proof.A2)
	if err != nil {
		return err
	}
	lhs1 := g1.ScalarMult(proof.Z)
	rhs1 := proof.A1.Add(y1.ScalarMult(c))
	if !lhs1.Equal(rhs1) {
		return xerrors.New(xerrors.ProofError, "dlogeq verification equation 1 failed")
	}
	lhs2 := g2.ScalarMult(proof.Z)
	rhs2 := proof.A2.Add(y2.ScalarMult(c))
	if !lhs2.Equal(rhs2) {
		return xerrors.New(xerrors.ProofError, "dlogeq verification equation 2 failed")
	}
	return nil
}

func dlogEqChallenge(ctx group.Context, g1, y1, g2, y2, a1, a2 group.Element) (group.Scalar, error) {
	slices := [][]byte{g1.Bytes(), y1.Bytes(), g2.Bytes(), y2.Bytes(), a1.Bytes(), a2.Bytes()}
	tags := make([][]byte, len(slices))
	for i := range tags {
		tags[i] = dlogEqTag
	}
	c, err := ctx.HashToScalar(slices, tags)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ProofError, "deriving dlogeq challenge", err)
	}
	return c, nil
}
