// Package keyvault generates custodial ed25519 keypairs and is the only
// place able to turn a stored secret back into a usable signing key.
// Secrets leave this package only in sealed form.
package keyvault

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/secretbox"
)

// ErrKeyDecode is returned when a stored secret is corrupt or was sealed
// under a different master key. Records carrying such a secret are
// unrecoverable and the failure must be surfaced, never papered over.
var ErrKeyDecode = errors.New("keyvault: cannot decode stored secret")

const (
	nonceSize = 24
	seedSize  = ed25519.SeedSize
)

// Vault seals ed25519 seeds with nacl/secretbox under a 32-byte master key.
type Vault struct {
	masterKey [32]byte
}

// New returns a Vault for the given 32-byte master key.
func New(masterKey []byte) (*Vault, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("keyvault: master key must be 32 bytes, got %d", len(masterKey))
	}
	v := &Vault{}
	copy(v.masterKey[:], masterKey)
	return v, nil
}

// Generate mints a fresh keypair and returns the base58 public address and
// the sealed secret. CPU-bound; no I/O.
func (v *Vault) Generate() (address, encryptedSecret string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", err
	}
	sealed, err := v.seal(priv.Seed())
	if err != nil {
		return "", "", err
	}
	return base58.Encode(pub), sealed, nil
}

// Signer reconstructs the signing key from a sealed secret.
func (v *Vault) Signer(encryptedSecret string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encryptedSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDecode, err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: sealed secret too short", ErrKeyDecode)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	seed, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &v.masterKey)
	if !ok {
		return nil, fmt.Errorf("%w: authentication failed", ErrKeyDecode)
	}
	if len(seed) != seedSize {
		return nil, fmt.Errorf("%w: unexpected seed length %d", ErrKeyDecode, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func (v *Vault) seal(seed []byte) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	out := secretbox.Seal(nonce[:], seed, &nonce, &v.masterKey)
	return base64.StdEncoding.EncodeToString(out), nil
}
