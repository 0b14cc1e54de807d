package zkp

import (
	"testing"

	"github.com/FreeAndFair/MobileVotingCoreCryptography/elgamal"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/group"
)

func buildCiphertexts(t *testing.T, ctx group.Context, pk elgamal.PublicKey, n, width int) []elgamal.Ciphertext {
	t.Helper()
	out := make([]elgamal.Ciphertext, n)
	for i := 0; i < n; i++ {
		m := make([]group.Element, width)
		for w := range m {
			e, err := ctx.RandomElement()
			if err != nil {
				t.Fatalf("RandomElement: %v", err)
			}
			m[w] = e
		}
		ct, err := pk.Encrypt(m)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		out[i] = ct
	}
	return out
}

func randomShuffleWitness(t *testing.T, ctx group.Context, n int) ([]int, []group.Scalar) {
	t.Helper()
	perm := []int{2, 0, 1} // fixed cyclic permutation, n must be 3
	if n != 3 {
		t.Fatalf("randomShuffleWitness only supports n=3 in this test suite, got %d", n)
	}
	rho := make([]group.Scalar, n)
	for i := range rho {
		r, err := ctx.RandomScalar()
		if err != nil {
			t.Fatalf("RandomScalar: %v", err)
		}
		rho[i] = r
	}
	return perm, rho
}

func TestShuffleCompleteness(t *testing.T) {
	ctx := group.Ristretto255{}
	kp, err := elgamalGenerate(t, ctx)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	pk := kp.PublicKey()

	input := buildCiphertexts(t, ctx, pk, 3, 2)
	perm, rho := randomShuffleWitness(t, ctx, 3)

	output, proof, err := Shuffle(ctx, pk, input, perm, rho)
	if err != nil {
		t.Fatalf("Shuffle: %v", err)
	}
	if err := VerifyShuffle(ctx, pk, input, output, proof); err != nil {
		t.Errorf("honest shuffle proof rejected: %v", err)
	}

	for i, got := range output {
		want, err := kp.Decrypt(input[perm[i]])
		if err != nil {
			t.Fatalf("Decrypt input: %v", err)
		}
		gotPlain, err := kp.Decrypt(got)
		if err != nil {
			t.Fatalf("Decrypt output: %v", err)
		}
		if !group.EqualVectors(gotPlain, want) {
			t.Errorf("output %d decrypts to a different plaintext than input[%d]", i, perm[i])
		}
	}
}

func TestShuffleRejectsSwappedOutputs(t *testing.T) {
	ctx := group.Ristretto255{}
	kp, err := elgamalGenerate(t, ctx)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	pk := kp.PublicKey()

	input := buildCiphertexts(t, ctx, pk, 3, 1)
	perm, rho := randomShuffleWitness(t, ctx, 3)
	output, proof, err := Shuffle(ctx, pk, input, perm, rho)
	if err != nil {
		t.Fatalf("Shuffle: %v", err)
	}

	output[0], output[1] = output[1], output[0]
	if err := VerifyShuffle(ctx, pk, input, output, proof); err == nil {
		t.Errorf("swapped outputs were accepted")
	}
}

func TestShuffleRejectsTamperedProof(t *testing.T) {
	ctx := group.Ristretto255{}
	kp, err := elgamalGenerate(t, ctx)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	pk := kp.PublicKey()

	input := buildCiphertexts(t, ctx, pk, 3, 1)
	perm, rho := randomShuffleWitness(t, ctx, 3)
	output, proof, err := Shuffle(ctx, pk, input, perm, rho)
	if err != nil {
		t.Fatalf("Shuffle: %v", err)
	}

	mutated := proof.RowBranches[0].Zr[0].Bytes()
	mutated[0] ^= 0x01
	z := ctx.NewScalar()
	if err := z.SetBytes(mutated); err != nil {
		t.Fatalf("SetBytes: %v", err)
	}
	proof.RowBranches[0].Zr[0] = z

	if err := VerifyShuffle(ctx, pk, input, output, proof); err == nil {
		t.Errorf("tampered shuffle proof was accepted")
	}
}

// TestShuffleRejectsDuplicatedInputWithDroppedInput builds a forged proof
// where two output positions both genuinely re-encrypt the same input
// position while a different input position is never re-encrypted at all.
// Each forged row branch is individually honest (output[0] and output[1]
// really do re-encrypt input[0]), so a verifier that only checks row
// branches would accept this: that was the soundness gap. The column
// branch for the dropped input position has no genuine witness - no
// output ciphertext actually re-encrypts it - so it can only be filled in
// with a mismatched witness, which the column check must reject.
func TestShuffleRejectsDuplicatedInputWithDroppedInput(t *testing.T) {
	ctx := group.Ristretto255{}
	kp, err := elgamalGenerate(t, ctx)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	pk := kp.PublicKey()

	input := buildCiphertexts(t, ctx, pk, 3, 1)

	// claimed[i] is the input position output[i] is claimed to re-encrypt.
	// Input position 0 is claimed twice (by output 0 and output 1); input
	// position 2 is never claimed by anything.
	claimed := []int{0, 0, 1}
	n := len(input)

	rho := make([]group.Scalar, n)
	output := make([]elgamal.Ciphertext, n)
	for i := 0; i < n; i++ {
		ri, err := ctx.RandomScalar()
		if err != nil {
			t.Fatalf("RandomScalar: %v", err)
		}
		rho[i] = ri
		ct, err := pk.ReEncryptWithRandomness(input[claimed[i]], ri)
		if err != nil {
			t.Fatalf("ReEncryptWithRandomness: %v", err)
		}
		output[i] = ct
	}

	h, err := ctx.IndGenerators(n, []byte("shuffle-generators"))
	if err != nil {
		t.Fatalf("IndGenerators: %v", err)
	}

	r := make([]group.Scalar, n)
	commitments := make([]group.Element, n)
	for i := 0; i < n; i++ {
		ri, err := ctx.RandomScalar()
		if err != nil {
			t.Fatalf("RandomScalar: %v", err)
		}
		r[i] = ri
		commitments[i] = ctx.GExp(ri).Add(h[claimed[i]])
	}

	pkW := replicateSum(ctx, pk.Element(), width(input))

	rowBranches := make([]orProof, n)
	for i := 0; i < n; i++ {
		b, err := proveMatchBranch(ctx, pkW, input, output, commitments, h, true, i, claimed[i], r[i], rho[i])
		if err != nil {
			t.Fatalf("proveMatchBranch row %d: %v", i, err)
		}
		rowBranches[i] = b
	}
	// Honest column branches for the input positions that genuinely were
	// claimed by some output (0 and 1); the witness for column branch 2
	// (the dropped input) is necessarily wrong, since no output position
	// re-encrypts input[2].
	colBranches := make([]orProof, n)
	colBranches[0], err = proveMatchBranch(ctx, pkW, input, output, commitments, h, false, 0, 0, r[0], rho[0])
	if err != nil {
		t.Fatalf("proveMatchBranch col 0: %v", err)
	}
	colBranches[1], err = proveMatchBranch(ctx, pkW, input, output, commitments, h, false, 1, 2, r[2], rho[2])
	if err != nil {
		t.Fatalf("proveMatchBranch col 1: %v", err)
	}
	colBranches[2], err = proveMatchBranch(ctx, pkW, input, output, commitments, h, false, 2, 0, r[0], rho[0])
	if err != nil {
		t.Fatalf("proveMatchBranch col 2: %v", err)
	}

	forged := ShuffleProof{Commitments: commitments, RowBranches: rowBranches, ColBranches: colBranches}

	for i := range rowBranches {
		if err := verifyMatchBranch(ctx, pkW, input, output, commitments, h, true, i, rowBranches[i]); err != nil {
			t.Fatalf("forged row branch %d should verify on its own (that is the soundness gap): %v", i, err)
		}
	}

	if err := VerifyShuffle(ctx, pk, input, output, forged); err == nil {
		t.Errorf("a shuffle that duplicates one input and drops another was accepted")
	}
}

func elgamalGenerate(t *testing.T, ctx group.Context) (elgamal.KeyPair, error) {
	t.Helper()
	return elgamal.Generate(ctx)
}
