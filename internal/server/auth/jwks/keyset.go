// Package jwks verifies RS256 tokens issued by an external identity provider
// against the provider's published JSON Web Key Set.
package jwks

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
)

// KeySet is the document served at the JWKS URL.
type KeySet struct {
	Keys []JSONWebKey `json:"keys"`
}

type JSONWebKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

var errUnsupportedKey = errors.New("unsupported key")

// PublicKey converts an RSA signing key into an *rsa.PublicKey.
func (k JSONWebKey) PublicKey() (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("%w: kty %q", errUnsupportedKey, k.Kty)
	}
	if k.Use != "" && k.Use != "sig" {
		return nil, fmt.Errorf("%w: use %q", errUnsupportedKey, k.Use)
	}

	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil || len(nb) == 0 {
		return nil, fmt.Errorf("decode modulus of %q: %w", k.Kid, errUnsupportedKey)
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil || len(eb) == 0 || len(eb) > 4 {
		return nil, fmt.Errorf("decode exponent of %q: %w", k.Kid, errUnsupportedKey)
	}

	e := 0
	for _, b := range eb {
		e = e<<8 | int(b)
	}

	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}

// rsaKeys indexes the usable keys of ks by kid. Unusable keys are skipped.
func (ks *KeySet) rsaKeys() map[string]*rsa.PublicKey {
	out := make(map[string]*rsa.PublicKey, len(ks.Keys))
	for _, k := range ks.Keys {
		if k.Kid == "" {
			continue
		}
		pub, err := k.PublicKey()
		if err != nil {
			continue
		}
		out[k.Kid] = pub
	}
	return out
}
