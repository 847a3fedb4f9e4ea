package credential

import "testing"

func TestRoundTrip(t *testing.T) {
	key := DeriveKey("super-secret-password-value-123")
	plaintexts := []string{"", "gho_abc123", "a much longer oauth access token value with spaces"}

	for _, p := range plaintexts {
		ct, err := Encrypt(p, key)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", p, err)
		}
		got, err := Decrypt(ct, key)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != p {
			t.Fatalf("round trip mismatch: got %q want %q", got, p)
		}
	}
}

func TestEncryptNoncesDiffer(t *testing.T) {
	key := DeriveKey("super-secret-password-value-123")
	a, err := Encrypt("same-plaintext", key)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encrypt("same-plaintext", key)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("expected distinct ciphertexts for repeated encryption, got identical: %q", a)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key := DeriveKey("password-one")
	other := DeriveKey("password-two")

	ct, err := Encrypt("secret", key)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(ct, other); err == nil {
		t.Fatal("expected decryption with wrong key to fail")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	a := DeriveKey("same-password")
	b := DeriveKey("same-password")
	if a != b {
		t.Fatal("DeriveKey should be deterministic for the same password")
	}
}
