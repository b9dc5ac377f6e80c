package token

import "errors"

// Kind classifies why a token was rejected.
type Kind int

const (
	KindDecode Kind = iota + 1
	KindClaim
	KindExpired
	KindRevoked
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindClaim:
		return "claim"
	case KindExpired:
		return "expired"
	case KindRevoked:
		return "revoked"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

var (
	// ErrDecode matches tokens that are malformed or fail signature checks.
	ErrDecode = errors.New("token is invalid or expired")
	// ErrClaim matches tokens missing a required claim or carrying the wrong type.
	ErrClaim = errors.New("token claim invalid")
	// ErrExpired matches tokens whose exp (or refresh_exp) has passed.
	ErrExpired = errors.New("token expired")
	// ErrRevoked matches tokens present in the blacklist.
	ErrRevoked = errors.New("token is blacklisted")
	// ErrStorage matches tokens whose revocation state could not be read.
	ErrStorage = errors.New("token revocation state unavailable")
)

// Error is returned for every rejected token. Msg is the user visible
// sub-reason; Err is the underlying cause, if any.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	return e.Msg
}

// Unwrap exposes the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	var sentinel error
	switch e.Kind {
	case KindDecode:
		sentinel = ErrDecode
	case KindClaim:
		sentinel = ErrClaim
	case KindExpired:
		sentinel = ErrExpired
	case KindRevoked:
		sentinel = ErrRevoked
	default:
		sentinel = ErrStorage
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}
