package schema

import (
	"errors"
	"strings"
)

// ErrValidation matches every *ValidationError.
var ErrValidation = errors.New("input validation failed")

// ValidationError reports a request body field that failed validation.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Msg: "field required"}
	}
	return nil
}

// ObtainPairInput is the default credential body of both obtain endpoints.
type ObtainPairInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (in *ObtainPairInput) Validate() error {
	if err := required("username", in.Username); err != nil {
		return err
	}
	return required("password", in.Password)
}

func (in *ObtainPairInput) Credentials() Credentials {
	return Credentials{Identifier: in.Username, Secret: in.Password}
}

// ObtainPairOutput is the default obtain-pair response.
type ObtainPairOutput struct {
	Username string `json:"username"`
	Refresh  string `json:"refresh"`
	Access   string `json:"access"`
}

// ObtainSlidingOutput is the default obtain-sliding response.
type ObtainSlidingOutput struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// RefreshInput carries a refresh token.
type RefreshInput struct {
	Refresh string `json:"refresh"`
}

func (in *RefreshInput) Validate() error  { return required("refresh", in.Refresh) }
func (in *RefreshInput) RawToken() string { return in.Refresh }

// SlidingTokenInput carries a sliding or untyped token.
type SlidingTokenInput struct {
	Token string `json:"token"`
}

func (in *SlidingTokenInput) Validate() error  { return required("token", in.Token) }
func (in *SlidingTokenInput) RawToken() string { return in.Token }

// TokenObtainPairInputSchema is the default SlotObtainPair component.
type TokenObtainPairInputSchema struct{}

func (TokenObtainPairInputSchema) NewInput() Input     { return &ObtainPairInput{} }
func (TokenObtainPairInputSchema) ResponseSchema() any { return ObtainPairOutput{} }

func (TokenObtainPairInputSchema) ToResponse(in Input, id Identity, tokens Tokens) (any, error) {
	creds, ok := in.(ObtainInput)
	if !ok {
		return nil, errors.New("obtain pair response requires an obtain input")
	}
	return ObtainPairOutput{
		Username: creds.Credentials().Identifier,
		Refresh:  tokens.Refresh,
		Access:   tokens.Access,
	}, nil
}

// TokenObtainSlidingInputSchema is the default SlotObtainSliding component.
type TokenObtainSlidingInputSchema struct{}

func (TokenObtainSlidingInputSchema) NewInput() Input     { return &ObtainPairInput{} }
func (TokenObtainSlidingInputSchema) ResponseSchema() any { return ObtainSlidingOutput{} }

func (TokenObtainSlidingInputSchema) ToResponse(in Input, id Identity, tokens Tokens) (any, error) {
	creds, ok := in.(ObtainInput)
	if !ok {
		return nil, errors.New("obtain sliding response requires an obtain input")
	}
	return ObtainSlidingOutput{
		Username: creds.Credentials().Identifier,
		Token:    tokens.Token,
	}, nil
}

// TokenRefreshInputSchema is the default SlotRefreshPair component.
type TokenRefreshInputSchema struct{}

func (TokenRefreshInputSchema) NewInput() Input { return &RefreshInput{} }

// TokenRefreshSlidingInputSchema is the default SlotRefreshSliding component.
type TokenRefreshSlidingInputSchema struct{}

func (TokenRefreshSlidingInputSchema) NewInput() Input { return &SlidingTokenInput{} }

// TokenVerifyInputSchema is the default SlotVerify component.
type TokenVerifyInputSchema struct{}

func (TokenVerifyInputSchema) NewInput() Input { return &SlidingTokenInput{} }

// TokenBlacklistInputSchema is the default SlotBlacklist component.
type TokenBlacklistInputSchema struct{}

func (TokenBlacklistInputSchema) NewInput() Input { return &RefreshInput{} }

var defaultComponents = map[Slot]any{
	SlotObtainPair:     TokenObtainPairInputSchema{},
	SlotRefreshPair:    TokenRefreshInputSchema{},
	SlotObtainSliding:  TokenObtainSlidingInputSchema{},
	SlotRefreshSliding: TokenRefreshSlidingInputSchema{},
	SlotVerify:         TokenVerifyInputSchema{},
	SlotBlacklist:      TokenBlacklistInputSchema{},
}

// DefaultNames returns the registry name of each slot's default component.
func DefaultNames() map[Slot]string {
	return map[Slot]string{
		SlotObtainPair:     "TokenObtainPairInputSchema",
		SlotRefreshPair:    "TokenRefreshInputSchema",
		SlotObtainSliding:  "TokenObtainSlidingInputSchema",
		SlotRefreshSliding: "TokenRefreshSlidingInputSchema",
		SlotVerify:         "TokenVerifyInputSchema",
		SlotBlacklist:      "TokenBlacklistInputSchema",
	}
}
