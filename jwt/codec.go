package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config defines how a [Codec] signs and verifies compact tokens.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Algorithm Algorithm

	// SigningKey is the HMAC secret, or a PEM encoded private key for the
	// asymmetric algorithms. Raw 64 byte keys are accepted for EdDSA.
	SigningKey []byte
	// VerifyingKey is the PEM encoded public key. When empty it is derived
	// from SigningKey.
	VerifyingKey []byte

	KeyID      string
	VerifyKeys map[string][]byte

	Issuer   string
	Audience string

	JWKSURL     string
	JWKSRefresh time.Duration
	HTTPTimeout time.Duration
}

// Codec encodes claim sets into signed compact tokens and decodes them back.
// A Codec is immutable after [NewCodec] and safe for concurrent use.
type Codec struct {
	cfg        Config
	method     jwt.SigningMethod
	family     keyFamily
	signKey    interface{}
	verifyKey  interface{}
	verifyKeys map[string]interface{}
	jwks       *keySet
	parser     *jwt.Parser
}

// NewCodec validates cfg and parses every configured key once.
func NewCodec(cfg Config) (*Codec, error) {
	alg, ok := algorithms[cfg.Algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	c := &Codec{
		cfg:    cfg,
		method: alg.method,
		family: alg.family,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{alg.method.Alg()}),
			jwt.WithJSONNumber(),
			jwt.WithoutClaimsValidation(),
		),
	}

	if len(cfg.SigningKey) > 0 {
		key, err := parseSigningKey(alg.family, cfg.SigningKey)
		if err != nil {
			return nil, err
		}
		c.signKey = key
	}

	switch {
	case alg.family == familyHMAC:
		if c.signKey == nil {
			return nil, errors.New("hmac algorithms require a signing key")
		}
		c.verifyKey = c.signKey
	case len(cfg.VerifyingKey) > 0:
		key, err := parseVerifyKey(alg.family, cfg.VerifyingKey)
		if err != nil {
			return nil, err
		}
		c.verifyKey = key
	case c.signKey != nil:
		c.verifyKey = publicOf(alg.family, c.signKey)
	}

	if len(cfg.VerifyKeys) > 0 {
		c.verifyKeys = make(map[string]interface{}, len(cfg.VerifyKeys))
		for kid, raw := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			key, err := parseVerifyKey(alg.family, raw)
			if err != nil {
				return nil, fmt.Errorf("invalid verify key for kid %q: %w", kid, err)
			}
			c.verifyKeys[kid] = key
		}
		if cfg.KeyID != "" {
			if _, ok := c.verifyKeys[cfg.KeyID]; !ok {
				return nil, errors.New("KeyID is not present in VerifyKeys")
			}
		}
	}

	if cfg.JWKSURL != "" {
		if alg.family == familyHMAC {
			return nil, errors.New("jwks key source requires an asymmetric algorithm")
		}
		ks, err := newKeySet(cfg.JWKSURL, cfg.JWKSRefresh, cfg.HTTPTimeout)
		if err != nil {
			return nil, err
		}
		c.jwks = ks
	}

	if c.verifyKey == nil && c.verifyKeys == nil && c.jwks == nil {
		return nil, errors.New("no verification key configured")
	}

	return c, nil
}

// Algorithm returns the configured signing algorithm.
func (c *Codec) Algorithm() Algorithm {
	return c.cfg.Algorithm
}

// CanSign reports whether a signing key is configured.
func (c *Codec) CanSign() bool {
	return c.signKey != nil
}

// Encode signs claims into a compact token. The input map is not mutated.
// Configured issuer and audience are added when claims does not carry them.
func (c *Codec) Encode(claims map[string]any) (string, error) {
	if c.signKey == nil {
		return "", errors.New("codec has no signing key")
	}

	payload := make(jwt.MapClaims, len(claims)+2)
	for k, v := range claims {
		payload[k] = v
	}
	if c.cfg.Issuer != "" {
		if _, ok := payload["iss"]; !ok {
			payload["iss"] = c.cfg.Issuer
		}
	}
	if c.cfg.Audience != "" {
		if _, ok := payload["aud"]; !ok {
			payload["aud"] = c.cfg.Audience
		}
	}

	tok := jwt.NewWithClaims(c.method, payload)
	if c.cfg.KeyID != "" {
		tok.Header["kid"] = c.cfg.KeyID
	}

	signed, err := tok.SignedString(c.signKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode parses raw and returns its claims. With verify set the signature,
// algorithm, kid, issuer and audience are all checked. With verify unset
// only the structure is checked, which is meant for introspection.
//
// Time-based claims are never checked here.
func (c *Codec) Decode(raw string, verify bool) (map[string]any, error) {
	if strings.Count(raw, ".") != 2 {
		return nil, decodeError(ReasonMalformed, nil)
	}

	claims := jwt.MapClaims{}
	if !verify {
		if _, _, err := c.parser.ParseUnverified(raw, claims); err != nil {
			return nil, decodeError(ReasonMalformed, err)
		}
		return normalizeClaims(claims), nil
	}

	_, err := c.parser.ParseWithClaims(raw, claims, c.keyFunc)
	if err != nil {
		return nil, classify(err)
	}

	if c.cfg.Issuer != "" {
		iss, _ := claims["iss"].(string)
		if iss != c.cfg.Issuer {
			return nil, decodeError(ReasonIssuer, nil)
		}
	}
	if c.cfg.Audience != "" && !audienceContains(claims["aud"], c.cfg.Audience) {
		return nil, decodeError(ReasonAudience, nil)
	}

	return normalizeClaims(claims), nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method == nil || t.Method.Alg() != c.method.Alg() {
		return nil, decodeError(ReasonAlgorithmMismatch, nil)
	}
	kid, _ := t.Header["kid"].(string)

	if c.verifyKeys != nil {
		if kid == "" {
			return nil, decodeError(ReasonMissingKeyID, nil)
		}
		if key, ok := c.verifyKeys[kid]; ok {
			return key, nil
		}
		if c.jwks == nil {
			return nil, decodeError(ReasonUnknownKeyID, nil)
		}
	}

	if c.jwks != nil && (c.verifyKey == nil || (kid != "" && kid != c.cfg.KeyID)) {
		key, err := c.jwks.lookup(kid)
		if err != nil {
			return nil, err
		}
		if !keyMatchesFamily(c.family, key) {
			return nil, decodeError(ReasonAlgorithmMismatch, nil)
		}
		return key, nil
	}

	if c.cfg.KeyID != "" {
		if kid == "" {
			return nil, decodeError(ReasonMissingKeyID, nil)
		}
		if kid != c.cfg.KeyID {
			return nil, decodeError(ReasonUnknownKeyID, nil)
		}
	}
	return c.verifyKey, nil
}

// classify maps a golang-jwt parse error onto a single DecodeError.
func classify(err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return de
	}
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return decodeError(ReasonSignature, nil)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return decodeError(ReasonUnsupportedAlg, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return decodeError(ReasonMalformed, err)
	default:
		return decodeError(ReasonMalformed, err)
	}
}

func audienceContains(aud any, want string) bool {
	switch v := aud.(type) {
	case string:
		return v == want
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	case []string:
		for _, s := range v {
			if s == want {
				return true
			}
		}
	}
	return false
}

func normalizeClaims(claims jwt.MapClaims) map[string]any {
	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = normalizeValue(v)
	}
	return out
}

// normalizeValue turns json.Number into int64 when integral and float64
// otherwise, recursing into nested objects and arrays.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return int64(f)
		}
		return f
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
