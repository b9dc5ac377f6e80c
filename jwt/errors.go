package jwt

import "errors"

// ErrDecode is the single error kind returned by [Codec.Decode]. Every
// *DecodeError matches it with errors.Is.
var ErrDecode = errors.New("token decode failed")

// Decode failure reasons.
const (
	ReasonMalformed         = "malformed token"
	ReasonUnsupportedAlg    = "unsupported algorithm"
	ReasonAlgorithmMismatch = "algorithm mismatch"
	ReasonSignature         = "signature mismatch"
	ReasonMissingKeyID      = "missing kid"
	ReasonUnknownKeyID      = "unknown kid"
	ReasonKeyUnavailable    = "verification key unavailable"
	ReasonIssuer            = "invalid issuer"
	ReasonAudience          = "invalid audience"
)

// DecodeError reports why a compact token could not be decoded.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return "token is invalid: " + e.Reason + ": " + e.Err.Error()
	}
	return "token is invalid: " + e.Reason
}

// Unwrap exposes both ErrDecode and the underlying library error.
func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDecode}
	}
	return []error{ErrDecode, e.Err}
}

func decodeError(reason string, err error) *DecodeError {
	return &DecodeError{Reason: reason, Err: err}
}
