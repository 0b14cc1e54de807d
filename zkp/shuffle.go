package zkp

import (
	"encoding/binary"

	"github.com/FreeAndFair/MobileVotingCoreCryptography/elgamal"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/group"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/parallel"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/xerrors"
)

var (
	shuffleCommitTag = []byte("shuffle-permutation-commitment")
	shuffleOrTag     = []byte("shuffle-or-proof")
	shuffleGenTag    = []byte("shuffle-or-branch")
	shuffleRowTag    = []byte("shuffle-row-branch")
	shuffleColTag    = []byte("shuffle-col-branch")
)

// ShuffleProof is a proof that output is a re-encrypting permutation of
// input under pk, without revealing which permutation or which
// re-encryption randomness was used. It is built from per-position
// disjunctive proofs, not from the Terelius-Wikström cumulative-product
// permutation commitment and product argument, so its size grows as
// O(n^2) in the number of ciphertexts.
//
// Permutation hiding uses n independent generators h_1..h_n (one per input
// position, from ctx.IndGenerators) and a disjunctive (OR) Schnorr
// representation proof, in two dual directions, over candidate positions:
//
//   - RowBranches[i]: "the permutation commitment for output position i
//     opens to h_j, AND output[i] is a re-encryption of input[j]", for
//     exactly one candidate j. This binds each output row to a single
//     input column, making pi: {rows} -> {columns} a well-defined function.
//   - ColBranches[j]: "some output position i opens the same statement
//     against input position j", for exactly one candidate i. This binds
//     each input column to at least one output row, making pi surjective.
//
// A function from an n-element set to itself that is surjective is
// automatically injective (pigeonhole), so row and column branches
// together force pi to be a genuine bijection - see DESIGN.md for why the
// row-only construction this replaced was not sound on its own.
type ShuffleProof struct {
	// Commitments[i] = g^{r_i} + h_{pi(i)}, the permutation commitment for
	// output position i.
	Commitments []group.Element
	RowBranches []orProof
	ColBranches []orProof
}

// orProof is a Cramer-Damgård-Schoenmakers 1-of-n disjunctive Schnorr proof
// over a 2-witness (r, rho) representation: for the true branch t0 of a
// candidate set indexed by t,
//
//	commitment - h[j(t0)]           = g^r
//	output(i(t0)).U[0] - input(j(t0)).U[0] = g^rho
//	sumV(output(i(t0))) - sumV(input(j(t0))) = pkW^rho   (pkW = pk added to itself W times)
//
// where (i(t), j(t)) is (fixed, t) for a row branch or (t, fixed) for a
// column branch.
type orProof struct {
	A1   []group.Element // per-branch commitment for the permutation-opening equation
	A2   []group.Element // per-branch commitment for the U re-encryption equation
	A3   []group.Element // per-branch commitment for the V re-encryption equation
	C    []group.Scalar  // per-branch challenge, summing to the overall Fiat-Shamir challenge
	Zr   []group.Scalar  // per-branch response for r
	Zrho []group.Scalar  // per-branch response for rho
}

// Shuffle permutes and re-encrypts input according to perm (perm[i] is the
// input index that becomes output position i) and randomness rho, and
// produces a proof of correctness.
func Shuffle(ctx group.Context, pk elgamal.PublicKey, input []elgamal.Ciphertext, perm []int, rho []group.Scalar) ([]elgamal.Ciphertext, ShuffleProof, error) {
	n := len(input)
	if len(perm) != n || len(rho) != n {
		return nil, ShuffleProof{}, xerrors.New(xerrors.ProofError, "shuffle: perm/rho length mismatch with input")
	}
	if !isPermutation(perm, n) {
		return nil, ShuffleProof{}, xerrors.New(xerrors.ProofError, "shuffle: perm is not a valid permutation")
	}

	output := make([]elgamal.Ciphertext, n)
	for i := 0; i < n; i++ {
		ct, err := pk.ReEncryptWithRandomness(input[perm[i]], rho[i])
		if err != nil {
			return nil, ShuffleProof{}, xerrors.Wrap(xerrors.ProofError, "shuffle re-encryption", err)
		}
		output[i] = ct
	}

	h, err := ctx.IndGenerators(n, []byte("shuffle-generators"))
	if err != nil {
		return nil, ShuffleProof{}, xerrors.Wrap(xerrors.ProofError, "deriving shuffle generators", err)
	}

	invPerm := make([]int, n)
	r := make([]group.Scalar, n)
	commitments := make([]group.Element, n)
	for i := 0; i < n; i++ {
		ri, err := ctx.RandomScalar()
		if err != nil {
			return nil, ShuffleProof{}, xerrors.Wrap(xerrors.ProofError, "sampling permutation commitment randomness", err)
		}
		r[i] = ri
		commitments[i] = ctx.GExp(ri).Add(h[perm[i]])
		invPerm[perm[i]] = i
	}

	pkW := replicateSum(ctx, pk.Element(), width(input))

	rowBranches := make([]orProof, n)
	if err := parallel.For(n, func(i int) error {
		b, err := proveMatchBranch(ctx, pkW, input, output, commitments, h, true, i, perm[i], r[i], rho[i])
		if err != nil {
			return err
		}
		rowBranches[i] = b
		return nil
	}); err != nil {
		return nil, ShuffleProof{}, err
	}

	colBranches := make([]orProof, n)
	if err := parallel.For(n, func(j int) error {
		i := invPerm[j]
		b, err := proveMatchBranch(ctx, pkW, input, output, commitments, h, false, j, i, r[i], rho[i])
		if err != nil {
			return err
		}
		colBranches[j] = b
		return nil
	}); err != nil {
		return nil, ShuffleProof{}, err
	}

	return output, ShuffleProof{Commitments: commitments, RowBranches: rowBranches, ColBranches: colBranches}, nil
}

// VerifyShuffle checks a ShuffleProof against public input/output ciphertext
// vectors and the independent generators derived the same way as Shuffle.
// Row branches alone only establish that pi is a well-defined total
// function of output position to input position; column branches establish
// that pi is surjective. Checking both is what rejects a forged proof that
// claims two output positions re-encrypt the same input (dropping another
// input entirely): the row branches for the duplicated positions verify
// honestly, but no column branch can be honestly built for the dropped
// input, since no output ciphertext is actually a re-encryption of it.
func VerifyShuffle(ctx group.Context, pk elgamal.PublicKey, input, output []elgamal.Ciphertext, proof ShuffleProof) error {
	n := len(input)
	if len(output) != n || len(proof.Commitments) != n || len(proof.RowBranches) != n || len(proof.ColBranches) != n {
		return xerrors.New(xerrors.ProofError, "shuffle proof: length mismatch")
	}

	h, err := ctx.IndGenerators(n, []byte("shuffle-generators"))
	if err != nil {
		return xerrors.Wrap(xerrors.ProofError, "deriving shuffle generators", err)
	}
	pkW := replicateSum(ctx, pk.Element(), width(input))

	if err := parallel.For(n, func(i int) error {
		return verifyMatchBranch(ctx, pkW, input, output, proof.Commitments, h, true, i, proof.RowBranches[i])
	}); err != nil {
		return err
	}
	return parallel.For(n, func(j int) error {
		return verifyMatchBranch(ctx, pkW, input, output, proof.Commitments, h, false, j, proof.ColBranches[j])
	})
}

// proveMatchBranch builds a CDS 1-of-n disjunction over the axis opposite
// fixed: for a row branch (row=true) fixed is an output position and the
// disjunction ranges over candidate input positions t, with trueOther the
// one input position output[fixed] genuinely re-encrypts. For a column
// branch (row=false) fixed is an input position and the disjunction ranges
// over candidate output positions t, with trueOther the one output
// position that genuinely re-encrypts input[fixed]. Both directions share
// the same (r, rho) witness - the permutation-commitment and re-encryption
// randomness already sampled for output position fixed (row branch) or
// for output position trueOther (column branch, where trueOther indexes the
// row).
func proveMatchBranch(
	ctx group.Context,
	pkW group.Element,
	input, output []elgamal.Ciphertext,
	commitments, h []group.Element,
	row bool,
	fixed, trueOther int,
	r, rho group.Scalar,
) (orProof, error) {
	n := len(h)
	a1 := make([]group.Element, n)
	a2 := make([]group.Element, n)
	a3 := make([]group.Element, n)
	c := make([]group.Scalar, n)
	zr := make([]group.Scalar, n)
	zrho := make([]group.Scalar, n)

	for t := 0; t < n; t++ {
		if t == trueOther {
			continue
		}
		cj, err := ctx.RandomScalar()
		if err != nil {
			return orProof{}, xerrors.Wrap(xerrors.ProofError, "sampling simulated challenge", err)
		}
		zrj, err := ctx.RandomScalar()
		if err != nil {
			return orProof{}, xerrors.Wrap(xerrors.ProofError, "sampling simulated response", err)
		}
		zrhoj, err := ctx.RandomScalar()
		if err != nil {
			return orProof{}, xerrors.Wrap(xerrors.ProofError, "sampling simulated response", err)
		}
		c[t], zr[t], zrho[t] = cj, zrj, zrhoj
		y1, y2, y3 := matchStatements(input, output, commitments, h, row, fixed, t)
		a1[t] = ctx.GExp(zrj).Sub(y1.ScalarMult(cj))
		a2[t] = ctx.GExp(zrhoj).Sub(y2.ScalarMult(cj))
		a3[t] = pkW.ScalarMult(zrhoj).Sub(y3.ScalarMult(cj))
	}

	kr, err := ctx.RandomScalar()
	if err != nil {
		return orProof{}, xerrors.Wrap(xerrors.ProofError, "sampling branch commitment randomness", err)
	}
	krho, err := ctx.RandomScalar()
	if err != nil {
		return orProof{}, xerrors.Wrap(xerrors.ProofError, "sampling branch commitment randomness", err)
	}
	a1[trueOther] = ctx.GExp(kr)
	a2[trueOther] = ctx.GExp(krho)
	a3[trueOther] = pkW.ScalarMult(krho)

	overallC, err := matchChallenge(ctx, input, output, commitments, h, row, fixed, a1, a2, a3)
	if err != nil {
		return orProof{}, err
	}

	sum := ctx.NewScalar()
	for t := 0; t < n; t++ {
		if t != trueOther {
			sum = sum.Add(c[t])
		}
	}
	c[trueOther] = overallC.Sub(sum)
	zr[trueOther] = kr.Add(c[trueOther].Mul(r))
	zrho[trueOther] = krho.Add(c[trueOther].Mul(rho))

	return orProof{A1: a1, A2: a2, A3: a3, C: c, Zr: zr, Zrho: zrho}, nil
}

func verifyMatchBranch(
	ctx group.Context,
	pkW group.Element,
	input, output []elgamal.Ciphertext,
	commitments, h []group.Element,
	row bool,
	fixed int,
	proof orProof,
) error {
	n := len(h)
	if len(proof.A1) != n || len(proof.A2) != n || len(proof.A3) != n || len(proof.C) != n || len(proof.Zr) != n || len(proof.Zrho) != n {
		return xerrors.New(xerrors.ProofError, "shuffle branch proof: length mismatch")
	}

	overallC, err := matchChallenge(ctx, input, output, commitments, h, row, fixed, proof.A1, proof.A2, proof.A3)
	if err != nil {
		return err
	}
	sum := ctx.NewScalar()
	for t := 0; t < n; t++ {
		sum = sum.Add(proof.C[t])
	}
	if !sum.Equal(overallC) {
		return xerrors.New(xerrors.ProofError, "shuffle branch challenges do not sum to the Fiat-Shamir challenge")
	}

	return parallel.For(n, func(t int) error {
		y1, y2, y3 := matchStatements(input, output, commitments, h, row, fixed, t)
		if !ctx.GExp(proof.Zr[t]).Equal(proof.A1[t].Add(y1.ScalarMult(proof.C[t]))) {
			return xerrors.New(xerrors.ProofError, "shuffle branch equation 1 failed")
		}
		if !ctx.GExp(proof.Zrho[t]).Equal(proof.A2[t].Add(y2.ScalarMult(proof.C[t]))) {
			return xerrors.New(xerrors.ProofError, "shuffle branch equation 2 failed")
		}
		if !pkW.ScalarMult(proof.Zrho[t]).Equal(proof.A3[t].Add(y3.ScalarMult(proof.C[t]))) {
			return xerrors.New(xerrors.ProofError, "shuffle branch equation 3 failed")
		}
		return nil
	})
}

// matchStatements resolves (output position, input position) for candidate
// t given the fixed axis and returns the three discrete-log statements
// claiming that output position re-encrypts that input position under the
// commitment's opening to the corresponding generator: y1 = commitment -
// h_j (claimed g^r), y2 = output.U[0] - input.U[0] (claimed g^rho), y3 =
// sumV(output) - sumV(input) (claimed pkW^rho). A row branch fixes the
// output position and varies the input candidate; a column branch fixes
// the input position and varies the output candidate.
func matchStatements(input, output []elgamal.Ciphertext, commitments, h []group.Element, row bool, fixed, t int) (y1, y2, y3 group.Element) {
	i, j := fixed, t
	if !row {
		i, j = t, fixed
	}
	return branchStatements(input[j], output[i], commitments[i], h[j])
}

func branchStatements(input elgamal.Ciphertext, output elgamal.Ciphertext, commitment group.Element, hj group.Element) (y1, y2, y3 group.Element) {
	y1 = commitment.Sub(hj)
	y2 = output.U[0].Sub(input.U[0])
	y3 = sumElements(output.V).Sub(sumElements(input.V))
	return
}

func sumElements(es []group.Element) group.Element {
	out := es[0]
	for _, e := range es[1:] {
		out = out.Add(e)
	}
	return out
}

// replicateSum adds e to itself times-1 additional times, i.e. computes the
// element equal to e.ScalarMult(times) without needing a Scalar encoding
// of the integer times (side-stepping the two contexts' different scalar
// byte-order conventions).
func replicateSum(ctx group.Context, e group.Element, times int) group.Element {
	out := ctx.NewElement()
	for i := 0; i < times; i++ {
		out = out.Add(e)
	}
	return out
}

func width(cts []elgamal.Ciphertext) int {
	if len(cts) == 0 {
		return 0
	}
	return cts[0].Width()
}

// matchChallenge derives the Fiat-Shamir challenge for one row or column
// branch. It folds in the full input, output and Commitments vectors -
// not just the one position this branch is about - together with an
// explicit row/column marker and fixed index, so every branch's challenge
// is bound to the complete public transcript. Without this, branches could
// be proved and verified against a transcript scoped to a single position,
// letting a prover mix first-move commitments across branches that were
// never meant to combine.
func matchChallenge(ctx group.Context, input, output []elgamal.Ciphertext, commitments, h []group.Element, row bool, fixed int, a1, a2, a3 []group.Element) (group.Scalar, error) {
	var slices [][]byte
	var tags [][]byte
	for _, ct := range input {
		for _, e := range append(append([]group.Element{}, ct.U...), ct.V...) {
			slices = append(slices, e.Bytes())
			tags = append(tags, shuffleCommitTag)
		}
	}
	for _, ct := range output {
		for _, e := range append(append([]group.Element{}, ct.U...), ct.V...) {
			slices = append(slices, e.Bytes())
			tags = append(tags, shuffleOrTag)
		}
	}
	for _, c := range commitments {
		slices = append(slices, c.Bytes())
		tags = append(tags, shuffleOrTag)
	}
	for _, hj := range h {
		slices = append(slices, hj.Bytes())
		tags = append(tags, shuffleGenTag)
	}

	axisTag := shuffleRowTag
	if !row {
		axisTag = shuffleColTag
	}
	fixedBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(fixedBytes, uint32(fixed))
	slices = append(slices, fixedBytes)
	tags = append(tags, axisTag)

	for _, e := range a1 {
		slices = append(slices, e.Bytes())
		tags = append(tags, shuffleGenTag)
	}
	for _, e := range a2 {
		slices = append(slices, e.Bytes())
		tags = append(tags, shuffleGenTag)
	}
	for _, e := range a3 {
		slices = append(slices, e.Bytes())
		tags = append(tags, shuffleGenTag)
	}
	c, err := ctx.HashToScalar(slices, tags)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ProofError, "deriving shuffle challenge", err)
	}
	return c, nil
}

func isPermutation(perm []int, n int) bool {
	seen := make([]bool, n)
	for _, p := range perm {
		if p < 0 || p >= n || seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}
