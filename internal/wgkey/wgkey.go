// Package wgkey generates WireGuard key material in the base64 form
// wg(8) prints.
package wgkey

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// KeySize is the length of every WireGuard key in bytes.
const KeySize = 32

// Key is a raw 32-byte WireGuard key.
type Key [KeySize]byte

// String returns the standard base64 encoding.
func (k Key) String() string {
	return base64.StdEncoding.EncodeToString(k[:])
}

// Parse decodes a base64 WireGuard key.
func Parse(s string) (Key, error) {
	var k Key

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("decoding key: %w", err)
	}

	if len(raw) != KeySize {
		return k, fmt.Errorf("key is %d bytes, want %d", len(raw), KeySize)
	}

	copy(k[:], raw)

	return k, nil
}

// NewPresharedKey returns 32 random bytes.
func NewPresharedKey() (Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return k, fmt.Errorf("reading random bytes: %w", err)
	}

	return k, nil
}

// NewPrivateKey returns a random, clamped Curve25519 private key.
func NewPrivateKey() (Key, error) {
	k, err := NewPresharedKey()
	if err != nil {
		return k, err
	}

	k.clamp()

	return k, nil
}

func (k *Key) clamp() {
	k[0] &= 248
	k[31] = (k[31] & 127) | 64
}

// PublicKey derives the public key for private key k.
func (k Key) PublicKey() (Key, error) {
	var pub Key

	out, err := curve25519.X25519(k[:], curve25519.Basepoint)
	if err != nil {
		return pub, fmt.Errorf("deriving public key: %w", err)
	}

	copy(pub[:], out)

	return pub, nil
}

// Pair is a private key with its public key.
type Pair struct {
	PrivateKey   string `json:"privateKey" yaml:"privateKey"`
	PublicKey    string `json:"publicKey" yaml:"publicKey"`
	PresharedKey string `json:"presharedKey,omitempty" yaml:"presharedKey,omitempty"`
}

// Generate creates a new key pair, plus a preshared key when psk is true.
func Generate(psk bool) (Pair, error) {
	priv, err := NewPrivateKey()
	if err != nil {
		return Pair{}, err
	}

	pub, err := priv.PublicKey()
	if err != nil {
		return Pair{}, err
	}

	p := Pair{PrivateKey: priv.String(), PublicKey: pub.String()}

	if psk {
		shared, err := NewPresharedKey()
		if err != nil {
			return Pair{}, err
		}

		p.PresharedKey = shared.String()
	}

	return p, nil
}
