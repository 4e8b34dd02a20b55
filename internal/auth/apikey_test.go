package auth

import (
	"strings"
	"testing"
)

// newTestKeyService uses bcrypt cost 4, the library minimum, so tests run
// in milliseconds instead of ~250ms each.
func newTestKeyService() *KeyService {
	return NewKeyServiceForTest(4)
}

func TestKeyHash_ReturnsNonEmptyHash(t *testing.T) {
	ks := newTestKeyService()

	hash, err := ks.Hash("rbx_live_4f2a9c")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "" {
		t.Error("Hash() returned empty string")
	}
	// bcrypt hashes always start with $2a$ or $2b$.
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
}

func TestKeyHash_SameKeyProducesDifferentHashes(t *testing.T) {
	ks := newTestKeyService()

	// bcrypt salts are random, so two hashes of the same key must differ.
	hash1, _ := ks.Hash("same-key")
	hash2, _ := ks.Hash("same-key")

	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same key")
	}
}

func TestKeyHash_RejectsKeyOver72Bytes(t *testing.T) {
	ks := newTestKeyService()

	if _, err := ks.Hash(strings.Repeat("a", 73)); err == nil {
		t.Fatal("Hash() should return an error for keys longer than 72 bytes")
	}
	if _, err := ks.Hash(strings.Repeat("a", 72)); err != nil {
		t.Fatalf("Hash() should accept a 72-byte key, got error: %v", err)
	}
}

func TestKeyVerify(t *testing.T) {
	ks := newTestKeyService()

	hash, err := ks.Hash("rbx_live_4f2a9c")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if err := ks.Verify(hash, "rbx_live_4f2a9c"); err != nil {
		t.Errorf("Verify() should return nil for the correct key, got: %v", err)
	}
	if err := ks.Verify(hash, "rbx_live_wrong"); err == nil {
		t.Fatal("Verify() should return an error for a wrong key")
	}
	if err := ks.Verify("not-a-valid-bcrypt-hash", "anything"); err == nil {
		t.Fatal("Verify() should return an error for a garbage hash")
	}
}
