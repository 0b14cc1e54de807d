package sign

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	sk, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	vk := sk.VerifyingKey()

	message := []byte("cfg_hash:abc123|mix:1")
	signature := sk.Sign(message)

	if err := Verify(message, signature, vk); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	sk, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	vk := sk.VerifyingKey()

	signature := sk.Sign([]byte("original message"))
	if err := Verify([]byte("different message"), signature, vk); err == nil {
		t.Errorf("signature verified against a different message than was signed")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	sk1, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	sk2, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	message := []byte("message")
	signature := sk1.Sign(message)
	if err := Verify(message, signature, sk2.VerifyingKey()); err == nil {
		t.Errorf("signature verified under the wrong verifying key")
	}
}

func TestVerifyingKeyBytesRoundTrip(t *testing.T) {
	sk, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	vk := sk.VerifyingKey()

	got, err := VerifyingKeyFromBytes(vk.Bytes())
	if err != nil {
		t.Fatalf("VerifyingKeyFromBytes: %v", err)
	}
	message := []byte("round trip message")
	signature := sk.Sign(message)
	if err := Verify(message, signature, got); err != nil {
		t.Errorf("re-parsed verifying key failed to verify: %v", err)
	}
}
