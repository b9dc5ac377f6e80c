package jwt

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm names a supported JWS signing algorithm.
type Algorithm string

const (
	HS256 Algorithm = "HS256"
	HS384 Algorithm = "HS384"
	HS512 Algorithm = "HS512"
	RS256 Algorithm = "RS256"
	RS384 Algorithm = "RS384"
	RS512 Algorithm = "RS512"
	ES256 Algorithm = "ES256"
	ES384 Algorithm = "ES384"
	ES512 Algorithm = "ES512"
	EdDSA Algorithm = "EdDSA"
)

type keyFamily int

const (
	familyHMAC keyFamily = iota
	familyRSA
	familyECDSA
	familyEd25519
)

var algorithms = map[Algorithm]struct {
	method jwt.SigningMethod
	family keyFamily
}{
	HS256: {jwt.SigningMethodHS256, familyHMAC},
	HS384: {jwt.SigningMethodHS384, familyHMAC},
	HS512: {jwt.SigningMethodHS512, familyHMAC},
	RS256: {jwt.SigningMethodRS256, familyRSA},
	RS384: {jwt.SigningMethodRS384, familyRSA},
	RS512: {jwt.SigningMethodRS512, familyRSA},
	ES256: {jwt.SigningMethodES256, familyECDSA},
	ES384: {jwt.SigningMethodES384, familyECDSA},
	ES512: {jwt.SigningMethodES512, familyECDSA},
	EdDSA: {jwt.SigningMethodEdDSA, familyEd25519},
}

// Supported reports whether alg is implemented by the codec.
func Supported(alg Algorithm) bool {
	_, ok := algorithms[alg]
	return ok
}

// Symmetric reports whether alg signs and verifies with the same secret.
func Symmetric(alg Algorithm) bool {
	a, ok := algorithms[alg]
	return ok && a.family == familyHMAC
}

func parseSigningKey(family keyFamily, key []byte) (interface{}, error) {
	switch family {
	case familyHMAC:
		if len(key) == 0 {
			return nil, errors.New("hmac algorithms require a signing key")
		}
		return key, nil
	case familyRSA:
		k, err := jwt.ParseRSAPrivateKeyFromPEM(key)
		if err != nil {
			return nil, fmt.Errorf("invalid rsa private key: %w", err)
		}
		return k, nil
	case familyECDSA:
		k, err := jwt.ParseECPrivateKeyFromPEM(key)
		if err != nil {
			return nil, fmt.Errorf("invalid ecdsa private key: %w", err)
		}
		return k, nil
	default:
		return parseEdPrivateKey(key)
	}
}

func parseVerifyKey(family keyFamily, key []byte) (interface{}, error) {
	switch family {
	case familyHMAC:
		if len(key) == 0 {
			return nil, errors.New("hmac algorithms require a key")
		}
		return key, nil
	case familyRSA:
		k, err := jwt.ParseRSAPublicKeyFromPEM(key)
		if err != nil {
			return nil, fmt.Errorf("invalid rsa public key: %w", err)
		}
		return k, nil
	case familyECDSA:
		k, err := jwt.ParseECPublicKeyFromPEM(key)
		if err != nil {
			return nil, fmt.Errorf("invalid ecdsa public key: %w", err)
		}
		return k, nil
	default:
		return parseEdPublicKey(key)
	}
}

// publicOf derives the verification key from a parsed private key so that a
// codec configured with only a signing key can still verify its own tokens.
func publicOf(family keyFamily, signKey interface{}) interface{} {
	switch family {
	case familyHMAC:
		return signKey
	case familyRSA:
		if k, ok := signKey.(*rsa.PrivateKey); ok {
			return &k.PublicKey
		}
	case familyECDSA:
		if k, ok := signKey.(*ecdsa.PrivateKey); ok {
			return &k.PublicKey
		}
	case familyEd25519:
		if k, ok := signKey.(ed25519.PrivateKey); ok {
			return k.Public()
		}
	}
	return nil
}

func keyMatchesFamily(family keyFamily, key interface{}) bool {
	switch family {
	case familyHMAC:
		_, ok := key.([]byte)
		return ok
	case familyRSA:
		_, ok := key.(*rsa.PublicKey)
		return ok
	case familyECDSA:
		_, ok := key.(*ecdsa.PublicKey)
		return ok
	default:
		_, ok := key.(ed25519.PublicKey)
		return ok
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
