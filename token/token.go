package token

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Claims is the decoded payload of a token.
type Claims map[string]any

// Token is one claim set bound to one [Variant]. A Token is not safe for
// concurrent mutation.
//
// Use [Token.Encode] to obtain the wire form. [Token.String] is meant for
// formatting and hides signing failures, such as a factory whose codec only
// holds a verification key.
type Token struct {
	variant Variant
	claims  Claims
	factory *Factory
	// issuedAt is the factory clock reading taken when the token was built
	// or parsed; lifetime arithmetic is relative to it.
	issuedAt time.Time
}

// Variant returns the descriptor the token was built or parsed as.
func (t *Token) Variant() Variant {
	return t.variant
}

// Get returns the claim value stored under name.
func (t *Token) Get(name string) (any, bool) {
	v, ok := t.claims[name]
	return v, ok
}

// Set stores a claim. Call Encode afterwards to obtain the signed form.
func (t *Token) Set(name string, value any) {
	t.claims[name] = value
}

// Has reports whether the claim is present.
func (t *Token) Has(name string) bool {
	_, ok := t.claims[name]
	return ok
}

// Delete removes a claim.
func (t *Token) Delete(name string) {
	delete(t.claims, name)
}

// Claims returns a shallow copy of the claim set.
func (t *Token) Claims() Claims {
	out := make(Claims, len(t.claims))
	for k, v := range t.claims {
		out[k] = v
	}
	return out
}

// Type returns the token_type claim.
func (t *Token) Type() string {
	s, _ := t.claims[t.factory.cfg.TokenTypeClaim].(string)
	return s
}

// JTI returns the jti claim, or "" when the token has none.
func (t *Token) JTI() string {
	s, _ := t.claims[t.factory.cfg.JTIClaim].(string)
	return s
}

// UserID returns the user identification claim rendered as a string.
func (t *Token) UserID() (string, bool) {
	v, ok := t.claims[t.factory.cfg.UserIDClaim]
	if !ok || v == nil {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	default:
		return fmt.Sprint(x), true
	}
}

// Time returns a numeric date claim as a time.
func (t *Token) Time(claim string) (time.Time, bool) {
	secs, ok := numericClaim(t.claims[claim])
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

// SetExp sets claim to from + lifetime. A zero from means the token's own
// construction time and a zero lifetime means the variant lifetime.
func (t *Token) SetExp(claim string, from time.Time, lifetime time.Duration) {
	if claim == "" {
		claim = "exp"
	}
	if from.IsZero() {
		from = t.issuedAt
	}
	if lifetime == 0 {
		lifetime = t.factory.lifetime(t.variant)
	}
	t.claims[claim] = from.Add(lifetime).Unix()
}

// SetIAT sets the iat claim. A zero at means the token's construction time.
func (t *Token) SetIAT(at time.Time) {
	if at.IsZero() {
		at = t.issuedAt
	}
	t.claims["iat"] = at.Unix()
}

// SetJTI assigns a fresh random jti.
func (t *Token) SetJTI() {
	id := uuid.New()
	t.claims[t.factory.cfg.JTIClaim] = hex.EncodeToString(id[:])
}

// CheckExp fails when claim is missing or at or before now minus the
// configured leeway. A zero now means the factory clock.
func (t *Token) CheckExp(claim string, now time.Time) error {
	if claim == "" {
		claim = "exp"
	}
	if now.IsZero() {
		now = t.factory.now()
	}
	v, ok := t.claims[claim]
	if !ok {
		return newError(KindClaim, fmt.Sprintf("Token has no '%s' claim", claim), nil)
	}
	secs, ok := numericClaim(v)
	if !ok {
		return newError(KindClaim, fmt.Sprintf("Token '%s' claim is not a numeric date", claim), nil)
	}
	if secs <= now.Add(-t.factory.cfg.Leeway).Unix() {
		return newError(KindExpired, fmt.Sprintf("Token '%s' claim has expired", claim), nil)
	}
	return nil
}

// Encode signs the current claim set.
func (t *Token) Encode() (string, error) {
	return t.factory.codec.Encode(t.claims)
}

// String returns the signed token, or "" when signing fails. Callers that
// hand the token out must use [Token.Encode] and check its error.
func (t *Token) String() string {
	s, err := t.Encode()
	if err != nil {
		return ""
	}
	return s
}

func numericClaim(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}
