package token

import "time"

// Variant describes one token kind.
type Variant struct {
	// Name identifies the variant in aggregated verification failures.
	Name string
	// Type is the value of the token_type claim.
	Type string
	// Lifetime overrides the lifetime configured for Type when positive.
	Lifetime time.Duration
	// Revocable variants carry a jti and are checked against the ledger.
	Revocable bool
	// Sliding variants carry refresh_exp and can be renewed.
	Sliding bool
	// AnyType skips the token_type equality check.
	AnyType bool
}

var (
	Access  = Variant{Name: "AccessToken", Type: "access"}
	Refresh = Variant{Name: "RefreshToken", Type: "refresh", Revocable: true}
	Sliding = Variant{Name: "SlidingToken", Type: "sliding", Revocable: true, Sliding: true}
	// Untyped accepts any correctly signed, unexpired token.
	Untyped = Variant{Name: "UntypedToken", Type: "untyped", AnyType: true}
)

// VariantByName returns the predefined variant with the given Name or Type.
func VariantByName(name string) (Variant, bool) {
	for _, v := range []Variant{Access, Refresh, Sliding, Untyped} {
		if v.Name == name || v.Type == name {
			return v, true
		}
	}
	return Variant{}, false
}
