package security

import "testing"

func TestHasherHashAndCompare(t *testing.T) {
	h := NewHasher(4) // min cost keeps the test fast
	hash, err := h.Hash([]byte("Demo123!@#"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "Demo123!@#" {
		t.Fatal("hash must not equal plaintext")
	}
	if err := h.Compare(hash, []byte("Demo123!@#")); err != nil {
		t.Fatalf("Compare with correct password: %v", err)
	}
	if err := h.Compare(hash, []byte("wrong-password")); err == nil {
		t.Fatal("Compare with wrong password should fail")
	}
}

func TestNewHasherClampsCost(t *testing.T) {
	if h := NewHasher(0); h.Cost < 4 {
		t.Fatalf("zero cost should default, got %d", h.Cost)
	}
	if h := NewHasher(99); h.Cost > 31 {
		t.Fatalf("cost should clamp to max, got %d", h.Cost)
	}
}
