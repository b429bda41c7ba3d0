package keyvault

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	v, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestNew_RejectsBadKeyLength(t *testing.T) {
	if _, err := New(make([]byte, 16)); err == nil {
		t.Fatal("expected error for 16-byte master key")
	}
}

func TestGenerate_AddressMatchesSigner(t *testing.T) {
	v := testVault(t)

	addr, secret, err := v.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	pub, err := base58.Decode(addr)
	if err != nil {
		t.Fatalf("address is not valid base58: %v", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		t.Fatalf("address decodes to %d bytes, want %d", len(pub), ed25519.PublicKeySize)
	}

	priv, err := v.Signer(secret)
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}
	if got := base58.Encode(priv.Public().(ed25519.PublicKey)); got != addr {
		t.Fatalf("reconstructed signer public key %s does not match address %s", got, addr)
	}

	msg := []byte("settlement payload")
	if !ed25519.Verify(pub, msg, ed25519.Sign(priv, msg)) {
		t.Fatal("signature by reconstructed key does not verify against address")
	}
}

func TestGenerate_AddressesAreUnique(t *testing.T) {
	v := testVault(t)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		addr, _, err := v.Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if seen[addr] {
			t.Fatalf("duplicate address generated: %s", addr)
		}
		seen[addr] = true
	}
}

func TestSigner_CorruptSecret(t *testing.T) {
	v := testVault(t)
	_, secret, err := v.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	cases := []struct {
		name   string
		secret string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"truncated", secret[:8]},
		{"flipped ciphertext byte", flipByte(t, secret)},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v.Signer(tc.secret); !errors.Is(err, ErrKeyDecode) {
				t.Fatalf("want ErrKeyDecode, got %v", err)
			}
		})
	}
}

func TestSigner_WrongMasterKey(t *testing.T) {
	v := testVault(t)
	_, secret, err := v.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	other, err := New(make([]byte, 32))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := other.Signer(secret); !errors.Is(err, ErrKeyDecode) {
		t.Fatalf("want ErrKeyDecode under wrong master key, got %v", err)
	}
}

func flipByte(t *testing.T, sealed string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		t.Fatalf("decode sealed secret: %v", err)
	}
	raw[len(raw)-1] ^= 0xff
	return base64.StdEncoding.EncodeToString(raw)
}
