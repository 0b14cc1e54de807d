package dkg

import (
	"testing"

	"github.com/FreeAndFair/MobileVotingCoreCryptography/elgamal"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/group"
)

// runDKG has every one of p dealers deal a threshold-T polynomial,
// verifies every share, and returns the combined public key plus each
// recipient's combined secret share.
func runDKG(t *testing.T, ctx group.Context, threshold, p uint8) (elgamal.PublicKey, [][]group.Element, []Share) {
	t.Helper()

	allCommitments := make([][]group.Element, p)
	allShares := make([][]Share, p) // allShares[d][i] = dealer d's share for recipient i+1

	for d := uint8(0); d < p; d++ {
		commitments, shares, err := Deal(ctx, threshold, p)
		if err != nil {
			t.Fatalf("dealer %d: Deal: %v", d+1, err)
		}
		allCommitments[d] = commitments
		allShares[d] = shares
	}

	recipientShares := make([]Share, p)
	for i := uint8(0); i < p; i++ {
		received := make([]Share, p)
		for d := uint8(0); d < p; d++ {
			received[d] = allShares[d][i]
		}
		fails, err := VerifyShares(ctx, allCommitments, received)
		if err != nil {
			t.Fatalf("recipient %d: VerifyShares: %v", i+1, err)
		}
		if len(fails) != 0 {
			t.Fatalf("recipient %d: unexpected share verification failures from dealers %v", i+1, fails)
		}
		combined, err := CombineShares(ctx, received)
		if err != nil {
			t.Fatalf("recipient %d: CombineShares: %v", i+1, err)
		}
		recipientShares[i] = combined
	}

	pk, err := CombinePublicKey(ctx, allCommitments)
	if err != nil {
		t.Fatalf("CombinePublicKey: %v", err)
	}
	return pk, allCommitments, recipientShares
}

func TestDKGCombinedPublicKeyMatchesCombinedSecret(t *testing.T) {
	ctx := group.Ristretto255{}
	pk, _, shares := runDKG(t, ctx, 2, 3)

	secret, err := Reconstruct(ctx, shares)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if !ctx.GExp(secret).Equal(pk.Element()) {
		t.Errorf("g^(reconstructed secret) != combined public key")
	}
}

func TestDKGThresholdDecryption(t *testing.T) {
	ctx := group.Ristretto255{}
	const threshold, p = 2, 3
	pk, allCommitments, shares := runDKG(t, ctx, threshold, p)

	m := []group.Element{mustRandom(t, ctx), mustRandom(t, ctx)}
	ct, err := pk.Encrypt(m)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Any threshold of the p shares should recover m.
	contributing := shares[:threshold]
	var factors []DecryptionFactor
	for _, s := range contributing {
		vk := VerificationKey(ctx, allCommitments, s.Index)
		factor, err := PartialDecrypt(ctx, s, vk, ct)
		if err != nil {
			t.Fatalf("PartialDecrypt: %v", err)
		}
		if err := VerifyDecryptionFactor(ctx, vk, ct, factor); err != nil {
			t.Fatalf("VerifyDecryptionFactor: %v", err)
		}
		factors = append(factors, factor)
	}

	got, err := Recover(ctx, ct, factors)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if !group.EqualVectors(got, m) {
		t.Errorf("threshold decryption did not recover the original plaintext")
	}
}

func TestDKGBelowThresholdRecoversWrongPlaintext(t *testing.T) {
	ctx := group.Ristretto255{}
	const threshold, p = 3, 4
	pk, allCommitments, shares := runDKG(t, ctx, threshold, p)

	m := []group.Element{mustRandom(t, ctx)}
	ct, err := pk.Encrypt(m)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// threshold-1 factors is not enough: Lagrange interpolation at the
	// wrong set of points reconstructs a different (wrong) u^s.
	var factors []DecryptionFactor
	for _, s := range shares[:threshold-1] {
		vk := VerificationKey(ctx, allCommitments, s.Index)
		factor, err := PartialDecrypt(ctx, s, vk, ct)
		if err != nil {
			t.Fatalf("PartialDecrypt: %v", err)
		}
		factors = append(factors, factor)
	}

	got, err := Recover(ctx, ct, factors)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if group.EqualVectors(got, m) {
		t.Errorf("recovered correct plaintext from fewer than threshold factors")
	}
}

func TestVerifyShareRejectsTamperedShare(t *testing.T) {
	ctx := group.Ristretto255{}
	commitments, shares, err := Deal(ctx, 2, 3)
	if err != nil {
		t.Fatalf("Deal: %v", err)
	}

	tampered := shares[0]
	other, err := ctx.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar: %v", err)
	}
	tampered.Value = other

	if err := VerifyShare(ctx, commitments, tampered); err == nil {
		t.Errorf("tampered share was accepted")
	}
}

func TestVerifyDecryptionFactorRejectsWrongVerificationKey(t *testing.T) {
	ctx := group.Ristretto255{}
	pk, allCommitments, shares := runDKG(t, ctx, 2, 3)

	m := []group.Element{mustRandom(t, ctx)}
	ct, err := pk.Encrypt(m)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	vk1 := VerificationKey(ctx, allCommitments, shares[0].Index)
	vk2 := VerificationKey(ctx, allCommitments, shares[1].Index)
	factor, err := PartialDecrypt(ctx, shares[0], vk1, ct)
	if err != nil {
		t.Fatalf("PartialDecrypt: %v", err)
	}

	if err := VerifyDecryptionFactor(ctx, vk2, ct, factor); err == nil {
		t.Errorf("decryption factor verified against the wrong trustee's verification key")
	}
}

func mustRandom(t *testing.T, ctx group.Context) group.Element {
	t.Helper()
	e, err := ctx.RandomElement()
	if err != nil {
		t.Fatalf("RandomElement: %v", err)
	}
	return e
}
