package elgamal

import (
	"testing"

	"github.com/FreeAndFair/MobileVotingCoreCryptography/group"
)

func randomPlaintext(t *testing.T, ctx group.Context, w int) []group.Element {
	t.Helper()
	m := make([]group.Element, w)
	for i := range m {
		e, err := ctx.RandomElement()
		if err != nil {
			t.Fatalf("RandomElement: %v", err)
		}
		m[i] = e
	}
	return m
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ctx := group.Ristretto255{}
	kp, err := Generate(ctx)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	m := randomPlaintext(t, ctx, 3)
	ct, err := kp.PublicKey().Encrypt(m)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := kp.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !group.EqualVectors(got, m) {
		t.Errorf("decrypt(encrypt(m)) != m")
	}
}

func TestReEncryptPreservesPlaintext(t *testing.T) {
	ctx := group.Ristretto255{}
	kp, err := Generate(ctx)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	m := randomPlaintext(t, ctx, 2)
	ct, err := kp.PublicKey().Encrypt(m)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	reenc, err := kp.PublicKey().ReEncrypt(ct)
	if err != nil {
		t.Fatalf("ReEncrypt: %v", err)
	}
	if group.EqualVectors(reenc.U, ct.U) {
		t.Errorf("re-encryption should change the ciphertext components")
	}

	got, err := kp.Decrypt(reenc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !group.EqualVectors(got, m) {
		t.Errorf("decrypt(reenc(c)) != decrypt(c)")
	}
}

func TestEncryptP256(t *testing.T) {
	ctx := group.P256{}
	kp, err := Generate(ctx)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	m := randomPlaintext(t, ctx, 1)
	ct, err := kp.PublicKey().Encrypt(m)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := kp.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !group.EqualVectors(got, m) {
		t.Errorf("decrypt(encrypt(m)) != m over P-256")
	}
}
