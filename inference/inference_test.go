package inference

import (
	"testing"

	"github.com/FreeAndFair/MobileVotingCoreCryptography/board"
)

func h(b byte) board.Hash {
	var out board.Hash
	out[0] = b
	return out
}

func TestComputeSharesEnabledForEveryConfiguredTrustee(t *testing.T) {
	l := board.New(h(1), 2, 3)
	res := Infer(l, 2, 3)
	if res.HasErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	count := 0
	for _, a := range res.Actions {
		if a.Kind == ComputeShares {
			count++
		}
	}
	if count != 3 {
		t.Errorf("expected 3 ComputeShares actions, got %d", count)
	}
}

func TestComputeSharesNotEnabledAfterSharesPosted(t *testing.T) {
	l := board.New(h(1), 2, 3)
	l, err := l.Append(board.Shares(h(1), h(10), 1))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	res := Infer(l, 2, 3)
	for _, a := range res.Actions {
		if a.Kind == ComputeShares && a.Trustee == 1 {
			t.Errorf("trustee 1 should not have ComputeShares enabled after posting Shares")
		}
	}
}

func TestComputePublicKeyRequiresAllSharesPresent(t *testing.T) {
	l := board.New(h(1), 2, 3)
	l, err := l.Append(board.Shares(h(1), h(10), 1), board.Shares(h(1), h(11), 2))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	res := Infer(l, 2, 3)
	for _, a := range res.Actions {
		if a.Kind == ComputePublicKey {
			t.Errorf("ComputePublicKey should not be enabled with only 2/3 Shares")
		}
	}

	l, err = l.Append(board.Shares(h(1), h(12), 3))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	res = Infer(l, 2, 3)
	count := 0
	for _, a := range res.Actions {
		if a.Kind == ComputePublicKey {
			count++
			if len(a.SharesVec) != 3 {
				t.Errorf("expected shares_vec of length 3, got %d", len(a.SharesVec))
			}
		}
	}
	if count != 3 {
		t.Errorf("expected 3 ComputePublicKey actions once all shares are present, got %d", count)
	}
}

// buildKeyedBoard advances a P=3 board through Shares and PublicKey so
// tests can focus on the mixing/decryption phases.
func buildKeyedBoard(t *testing.T, cfg board.Hash, pkHash board.Hash) board.Log {
	t.Helper()
	l := board.New(cfg, 2, 3)
	var err error
	for i := byte(1); i <= 3; i++ {
		l, err = l.Append(board.Shares(cfg, h(10+i), board.TrusteeIndex(i)))
		if err != nil {
			t.Fatalf("Append Shares: %v", err)
		}
	}
	for i := byte(1); i <= 3; i++ {
		l, err = l.Append(board.PublicKey(cfg, pkHash, board.TrusteeIndex(i)))
		if err != nil {
			t.Fatalf("Append PublicKey: %v", err)
		}
	}
	return l
}

func TestComputeBallotsEnabledOncePublicKeysComplete(t *testing.T) {
	cfg := h(1)
	pk := h(2)
	l := buildKeyedBoard(t, cfg, pk)

	res := Infer(l, 2, 3)
	if res.HasErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	found := false
	for _, a := range res.Actions {
		if a.Kind == ComputeBallots {
			found = true
		}
	}
	if !found {
		t.Errorf("expected ComputeBallots to be enabled")
	}
}

func TestMixChainProgression(t *testing.T) {
	cfg := h(1)
	pk := h(2)
	ciphertexts := h(3)
	l := buildKeyedBoard(t, cfg, pk)

	mixingTrustees := []board.TrusteeIndex{1, 2}
	l, err := l.Append(board.Ballots(cfg, pk, ciphertexts, mixingTrustees))
	if err != nil {
		t.Fatalf("Append Ballots: %v", err)
	}

	res := Infer(l, 2, 3)
	if res.HasErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	var mixAction *Action
	for i, a := range res.Actions {
		if a.Kind == ComputeMix && a.Trustee == 1 {
			mixAction = &res.Actions[i]
		}
	}
	if mixAction == nil {
		t.Fatalf("expected ComputeMix enabled for trustee 1")
	}
	if mixAction.CiphertextsHash != ciphertexts {
		t.Errorf("expected trustee 1 to mix the ballots hash")
	}

	mixOut := h(4)
	l, err = l.Append(board.Mix(cfg, pk, ciphertexts, mixOut, 1))
	if err != nil {
		t.Fatalf("Append Mix: %v", err)
	}

	res = Infer(l, 2, 3)
	if res.HasErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	foundSignMix := false
	for _, a := range res.Actions {
		if a.Kind == SignMix && a.Trustee == 1 && a.Input == ciphertexts && a.Output == mixOut {
			foundSignMix = true
		}
		if a.Kind == ComputeMix && a.Trustee == 2 {
			t.Errorf("trustee 2 should not be able to mix before T=2 signatures are collected")
		}
	}
	if !foundSignMix {
		t.Errorf("expected SignMix to be enabled for trustee 1 on its own mix")
	}

	l, err = l.Append(board.MixSignature(cfg, pk, ciphertexts, mixOut, 1), board.MixSignature(cfg, pk, ciphertexts, mixOut, 2))
	if err != nil {
		t.Fatalf("Append MixSignature: %v", err)
	}

	res = Infer(l, 2, 3)
	if res.HasErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	found2 := false
	for _, a := range res.Actions {
		if a.Kind == ComputeMix && a.Trustee == 2 {
			found2 = true
			if a.CiphertextsHash != mixOut {
				t.Errorf("expected trustee 2 to mix trustee 1's output")
			}
		}
	}
	if !found2 {
		t.Errorf("expected ComputeMix enabled for trustee 2 once T mix signatures collected")
	}
}

func TestFullChainEnablesPartialDecryptionsAndPlaintexts(t *testing.T) {
	cfg := h(1)
	pk := h(2)
	ciphertexts := h(3)
	l := buildKeyedBoard(t, cfg, pk)

	mixingTrustees := []board.TrusteeIndex{1, 2}
	var err error
	l, err = l.Append(board.Ballots(cfg, pk, ciphertexts, mixingTrustees))
	if err != nil {
		t.Fatalf("Append Ballots: %v", err)
	}

	out1 := h(4)
	l, err = l.Append(
		board.Mix(cfg, pk, ciphertexts, out1, 1),
		board.MixSignature(cfg, pk, ciphertexts, out1, 1),
		board.MixSignature(cfg, pk, ciphertexts, out1, 2),
	)
	if err != nil {
		t.Fatalf("Append mix 1: %v", err)
	}

	out2 := h(5)
	l, err = l.Append(
		board.Mix(cfg, pk, out1, out2, 2),
		board.MixSignature(cfg, pk, out1, out2, 1),
		board.MixSignature(cfg, pk, out1, out2, 2),
	)
	if err != nil {
		t.Fatalf("Append mix 2: %v", err)
	}

	res := Infer(l, 2, 3)
	if res.HasErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	foundPD := map[board.TrusteeIndex]bool{}
	for _, a := range res.Actions {
		if a.Kind == ComputePartialDecryptions {
			foundPD[a.Trustee] = true
			if a.CiphertextsHash != out2 {
				t.Errorf("expected partial decryption over the final mix output")
			}
		}
	}
	if !foundPD[1] || !foundPD[2] {
		t.Errorf("expected ComputePartialDecryptions enabled for both mixing trustees, got %v", foundPD)
	}

	pd1, pd2 := h(20), h(21)
	l, err = l.Append(
		board.PartialDecryptions(cfg, pk, out2, pd1, 1),
		board.PartialDecryptions(cfg, pk, out2, pd2, 2),
	)
	if err != nil {
		t.Fatalf("Append PartialDecryptions: %v", err)
	}

	res = Infer(l, 2, 3)
	if res.HasErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	foundPlaintexts := false
	for _, a := range res.Actions {
		if a.Kind == ComputePlaintexts {
			foundPlaintexts = true
			if len(a.PDVec) != 2 {
				t.Errorf("expected pd_vec of length 2, got %d", len(a.PDVec))
			}
		}
	}
	if !foundPlaintexts {
		t.Errorf("expected ComputePlaintexts enabled once threshold partial decryptions accumulated")
	}
}

func TestDuplicatePublicKeyInjectionProducesError(t *testing.T) {
	cfg := h(1)
	l := board.New(cfg, 2, 3)
	msgs := append([]board.Message{}, l.Messages()...)
	msgs = append(msgs,
		board.PublicKey(cfg, h(2), 1),
		board.PublicKey(cfg, h(3), 1),
	)
	crafted := board.FromMessages(msgs)

	res := Infer(crafted, 2, 3)
	if !res.HasErrors() {
		t.Fatalf("expected an error for two disagreeing PublicKey messages from trustee 1")
	}
	if len(res.Actions) != 0 {
		t.Errorf("no actions should be produced once an error is detected")
	}
}

func TestOutOfOrderMixProducesError(t *testing.T) {
	cfg := h(1)
	pk := h(2)
	ciphertexts := h(3)
	l := buildKeyedBoard(t, cfg, pk)

	mixingTrustees := []board.TrusteeIndex{1, 2}
	var err error
	l, err = l.Append(board.Ballots(cfg, pk, ciphertexts, mixingTrustees))
	if err != nil {
		t.Fatalf("Append Ballots: %v", err)
	}

	bogusInput := h(99)
	msgs := append([]board.Message{}, l.Messages()...)
	msgs = append(msgs, board.Mix(cfg, pk, bogusInput, h(100), 2))
	crafted := board.FromMessages(msgs)

	res := Infer(crafted, 2, 3)
	if !res.HasErrors() {
		t.Errorf("expected an 'unexpected mix chain participants' error for an out-of-order mix")
	}
}

func TestTamperedPlaintextsHashProducesError(t *testing.T) {
	cfg := h(1)
	pk := h(2)
	ciphertexts := h(3)
	l := board.New(cfg, 2, 3)
	msgs := append([]board.Message{}, l.Messages()...)
	msgs = append(msgs,
		board.Plaintexts(cfg, pk, ciphertexts, h(50), 1),
		board.Plaintexts(cfg, pk, ciphertexts, h(51), 2),
	)
	crafted := board.FromMessages(msgs)

	res := Infer(crafted, 2, 3)
	if !res.HasErrors() {
		t.Errorf("expected an error for disagreeing Plaintexts hashes")
	}
}
