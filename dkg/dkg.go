// Package dkg implements distributed key generation with threshold
// decryption (spec §4.6). Each of P dealers verifiably shares a random
// polynomial of degree T-1: commitments to the polynomial's coefficients
// are broadcast, and a share is distributed to each of the P recipients.
// A recipient checks every share it receives against the sender's
// commitments before combining them into its own secret share. The
// combined public key is the product of every dealer's constant-term
// commitment; joint decryption combines any T valid partial-decryption
// factors, each bound to its trustee's verification key via a DlogEq
// proof, using Lagrange interpolation at zero.
//
// The polynomial evaluation and Lagrange-combination machinery here plays
// the same role the toprf package's Shamir/Lagrange helpers play for
// threshold OPRF, generalized from a single hard-coded Ristretto255
// scalar field to an arbitrary group.Context, and from a bare Shamir
// share to a Feldman-committed one that a recipient can verify before
// trusting it.
package dkg

import (
	"github.com/FreeAndFair/MobileVotingCoreCryptography/elgamal"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/group"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/parallel"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/xerrors"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/zkp"
)

// Share is one dealer's evaluation f(index) of its secret polynomial,
// addressed to a single recipient.
type Share struct {
	Index uint8
	Value group.Scalar
}

// DecryptionFactor is a trustee's contribution to joint decryption of a
// ciphertext: d_i = u^{s_i}, accompanied by a proof that d_i and the
// trustee's public verification key share the same discrete log as s_i,
// w.r.t. bases (g, u).
type DecryptionFactor struct {
	Index uint8
	D     group.Element
	Proof zkp.DlogEqProof
}

// Deal runs one dealer's contribution to the DKG: it samples a random
// polynomial of degree threshold-1, publishes Feldman commitments to its
// coefficients C_k = g^{a_k}, and evaluates the polynomial once for each
// of the p recipients.
func Deal(ctx group.Context, threshold, p uint8) (commitments []group.Element, shares []Share, err error) {
	if threshold < 1 || threshold > p {
		return nil, nil, xerrors.New(xerrors.ProtocolError, "dkg: threshold must satisfy 1 <= T <= P")
	}

	coeffs := make([]group.Scalar, threshold)
	for k := range coeffs {
		coeffs[k], err = ctx.RandomScalar()
		if err != nil {
			return nil, nil, xerrors.Wrap(xerrors.ProtocolError, "sampling dkg polynomial coefficient", err)
		}
	}

	commitments = make([]group.Element, threshold)
	for k, a := range coeffs {
		commitments[k] = ctx.GExp(a)
	}

	shares = make([]Share, p)
	for i := uint8(1); i <= p; i++ {
		shares[i-1] = Share{Index: i, Value: evaluatePoly(ctx, coeffs, i)}
	}
	return commitments, shares, nil
}

// VerifyShare checks a share received from a dealer against that dealer's
// published commitments: g^s ?= sum_j C_j * index^j (spec §4.6 step 2,
// written additively). A failing share is the recipient's evidence of
// dealer misbehavior; it is the caller's responsibility to report it
// rather than silently drop it.
func VerifyShare(ctx group.Context, commitments []group.Element, share Share) error {
	lhs := ctx.GExp(share.Value)
	rhs := evalCommitments(ctx, commitments, share.Index)
	if !lhs.Equal(rhs) {
		return xerrors.New(xerrors.ProtocolError, "dkg: share does not match dealer's published commitments")
	}
	return nil
}

// VerifyShares checks shares from every dealer in parallel and returns the
// 1-based indices (into commitments/shares) of the dealers whose share
// failed verification.
func VerifyShares(ctx group.Context, commitments [][]group.Element, shares []Share) ([]int, error) {
	if len(commitments) != len(shares) {
		return nil, xerrors.New(xerrors.ProtocolError, "dkg: commitments and shares count mismatch")
	}
	fails := make([]bool, len(shares))
	if err := parallel.For(len(shares), func(d int) error {
		if err := VerifyShare(ctx, commitments[d], shares[d]); err != nil {
			fails[d] = true
		}
		return nil
	}); err != nil {
		return nil, err
	}
	var out []int
	for d, failed := range fails {
		if failed {
			out = append(out, d+1)
		}
	}
	return out, nil
}

// CombineShares sums the per-dealer shares addressed to one recipient into
// that recipient's final secret key share s_i = sum_d s_{d,i}. Every
// input share must carry the same index.
func CombineShares(ctx group.Context, shares []Share) (Share, error) {
	if len(shares) == 0 {
		return Share{}, xerrors.New(xerrors.ProtocolError, "dkg: no shares to combine")
	}
	self := shares[0].Index
	acc := ctx.NewScalar()
	for _, s := range shares {
		if s.Index != self {
			return Share{}, xerrors.New(xerrors.ProtocolError, "dkg: combined shares have mismatched indices")
		}
		acc = acc.Add(s.Value)
	}
	return Share{Index: self, Value: acc}, nil
}

// CombinePublicKey multiplies every dealer's constant-term commitment into
// the combined threshold public key pk = prod_d C_{d,0}.
func CombinePublicKey(ctx group.Context, commitments [][]group.Element) (elgamal.PublicKey, error) {
	if len(commitments) == 0 {
		return elgamal.PublicKey{}, xerrors.New(xerrors.ProtocolError, "dkg: no dealer commitments to combine")
	}
	acc := ctx.NewElement()
	for _, c := range commitments {
		if len(c) == 0 {
			return elgamal.PublicKey{}, xerrors.New(xerrors.ProtocolError, "dkg: dealer published no commitments")
		}
		acc = acc.Add(c[0])
	}
	return elgamal.NewPublicKey(ctx, acc), nil
}

// VerificationKey computes a trustee's public verification key VK_i =
// prod_d prod_j C_{d,j}^{i^j}, the public counterpart of its combined
// secret share s_i, against which its partial-decryption proofs verify.
func VerificationKey(ctx group.Context, commitments [][]group.Element, index uint8) group.Element {
	acc := ctx.NewElement()
	for _, c := range commitments {
		acc = acc.Add(evalCommitments(ctx, c, index))
	}
	return acc
}

// PartialDecrypt computes a trustee's contribution to joint decryption of
// a ciphertext: d = u^{s_i} (taken from the ciphertext's replicated U[0]),
// plus a DlogEq proof binding d to the trustee's verification key vk,
// w.r.t. bases (g, u).
func PartialDecrypt(ctx group.Context, share Share, vk group.Element, c elgamal.Ciphertext) (DecryptionFactor, error) {
	if len(c.U) == 0 {
		return DecryptionFactor{}, xerrors.New(xerrors.ProtocolError, "dkg: ciphertext has no U component")
	}
	u := c.U[0]
	d := u.ScalarMult(share.Value)
	proof, err := zkp.ProveEq(ctx, share.Value, ctx.Generator(), vk, u, d)
	if err != nil {
		return DecryptionFactor{}, xerrors.Wrap(xerrors.ProofError, "proving dkg partial decryption factor", err)
	}
	return DecryptionFactor{Index: share.Index, D: d, Proof: proof}, nil
}

// VerifyDecryptionFactor checks a trustee's partial-decryption proof
// against its public verification key.
func VerifyDecryptionFactor(ctx group.Context, vk group.Element, c elgamal.Ciphertext, factor DecryptionFactor) error {
	if len(c.U) == 0 {
		return xerrors.New(xerrors.ProtocolError, "dkg: ciphertext has no U component")
	}
	if err := zkp.VerifyEq(ctx, ctx.Generator(), vk, c.U[0], factor.D, factor.Proof); err != nil {
		return xerrors.Wrap(xerrors.ProofError, "dkg partial decryption factor rejected", err)
	}
	return nil
}

// Recover combines T or more verified decryption factors via Lagrange
// interpolation at zero to reconstruct u^s, then recovers the plaintext
// vector m = v - u^s component-wise (spec §4.6 step 5). Callers MUST
// verify every factor with VerifyDecryptionFactor before calling Recover:
// an unverified, tampered factor silently yields a wrong plaintext here
// rather than an error.
func Recover(ctx group.Context, c elgamal.Ciphertext, factors []DecryptionFactor) ([]group.Element, error) {
	if len(factors) == 0 {
		return nil, xerrors.New(xerrors.ProtocolError, "dkg: no decryption factors to combine")
	}
	indices := make([]uint8, len(factors))
	for i, f := range factors {
		indices[i] = f.Index
	}

	us := ctx.NewElement()
	for i, f := range factors {
		lambda := lagrangeCoefficient(ctx, indices, i)
		us = us.Add(f.D.ScalarMult(lambda))
	}

	negUS := us.Neg()
	out := make([]group.Element, len(c.V))
	for i, v := range c.V {
		out[i] = v.Add(negUS)
	}
	return out, nil
}

// Reconstruct recovers the full group secret (not just a ciphertext's
// u^s) from T or more combined shares via Lagrange interpolation at
// zero. It exists for testing and for recovery scenarios where the
// secret itself, rather than a decryption factor, is needed; the
// threshold-decryption path (PartialDecrypt/Recover) never reconstructs
// the secret directly.
func Reconstruct(ctx group.Context, shares []Share) (group.Scalar, error) {
	if len(shares) == 0 {
		return nil, xerrors.New(xerrors.ProtocolError, "dkg: no shares provided")
	}
	indices := make([]uint8, len(shares))
	for i, s := range shares {
		indices[i] = s.Index
	}
	acc := ctx.NewScalar()
	for i, s := range shares {
		lambda := lagrangeCoefficient(ctx, indices, i)
		acc = acc.Add(s.Value.Mul(lambda))
	}
	return acc, nil
}

// evaluatePoly evaluates sum_k coeffs[k] * x^k via Horner's method.
func evaluatePoly(ctx group.Context, coeffs []group.Scalar, x uint8) group.Scalar {
	xs := ctx.ScalarFromUint64(uint64(x))
	acc := ctx.NewScalar()
	for k := len(coeffs) - 1; k >= 0; k-- {
		acc = acc.Mul(xs).Add(coeffs[k])
	}
	return acc
}

// evalCommitments evaluates a dealer's committed polynomial "in the
// exponent": sum_j C_j * x^j, computed by the same Horner recurrence as
// evaluatePoly but over group elements — ScalarMult distributes over the
// additive group operation exactly like scalar multiplication distributes
// over polynomial evaluation, so the recurrence carries over unchanged.
func evalCommitments(ctx group.Context, commitments []group.Element, x uint8) group.Element {
	xs := ctx.ScalarFromUint64(uint64(x))
	acc := ctx.NewElement()
	for k := len(commitments) - 1; k >= 0; k-- {
		acc = acc.ScalarMult(xs).Add(commitments[k])
	}
	return acc
}

// lagrangeCoefficient computes lambda_i(0) = prod_{j != i} x_j / (x_j -
// x_i), the weight index i's contribution carries when interpolating the
// shared polynomial's value at zero from these indices.
func lagrangeCoefficient(ctx group.Context, indices []uint8, i int) group.Scalar {
	xi := ctx.ScalarFromUint64(uint64(indices[i]))
	num := ctx.ScalarFromUint64(1)
	den := ctx.ScalarFromUint64(1)
	for j, idx := range indices {
		if j == i {
			continue
		}
		xj := ctx.ScalarFromUint64(uint64(idx))
		num = num.Mul(xj)
		den = den.Mul(xj.Sub(xi))
	}
	return num.Mul(den.Invert())
}
