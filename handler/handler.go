package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/internal/httperr"
	"github.com/MrEthical07/goToken/schema"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes = 1 << 16

// Authenticator checks credentials for the obtain endpoints. It returns an
// error matching [goToken.ErrAuthenticationFailed] when no active account
// matches.
type Authenticator interface {
	Authenticate(ctx context.Context, creds schema.Credentials) (schema.Identity, error)
}

// AuthenticatorFunc adapts a function to [Authenticator].
type AuthenticatorFunc func(ctx context.Context, creds schema.Credentials) (schema.Identity, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, creds schema.Credentials) (schema.Identity, error) {
	return f(ctx, creds)
}

// Option configures a [Handler].
type Option func(*Handler)

// WithLogger sets the logger used for internal errors.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithMaxBodyBytes caps request bodies. Values <= 0 keep the default.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// Handler serves the token endpoints:
//
//	POST /pair             obtain access + refresh   (needs an Authenticator)
//	POST /refresh          refresh an access token
//	POST /sliding          obtain a sliding token    (needs an Authenticator)
//	POST /sliding/refresh  renew a sliding token
//	POST /verify           verify any token
//	POST /blacklist        revoke a refresh token    (ledger only)
//
// Request bodies are decoded with the component configured for each slot.
type Handler struct {
	engine  *goToken.Engine
	auth    Authenticator
	schemas *schema.Set
	router  *chi.Mux
	maxBody int64
	logger  zerolog.Logger
}

// New builds the router. auth may be nil, in which case the obtain
// endpoints are not mounted.
func New(engine *goToken.Engine, auth Authenticator, opts ...Option) (*Handler, error) {
	if engine == nil || engine.Schemas() == nil {
		return nil, goToken.ErrEngineNotReady
	}

	h := &Handler{
		engine:  engine,
		auth:    auth,
		schemas: engine.Schemas(),
		maxBody: defaultMaxBodyBytes,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.setupRouter()
	return h, nil
}

func (h *Handler) setupRouter() {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)

	if h.auth != nil {
		r.Post("/pair", h.handleObtainPair)
		r.Post("/sliding", h.handleObtainSliding)
	}
	r.Post("/refresh", h.handleRefresh)
	r.Post("/sliding/refresh", h.handleRefreshSliding)
	r.Post("/verify", h.handleVerify)
	if h.engine.LedgerEnabled() {
		r.Post("/blacklist", h.handleBlacklist)
	}

	h.router = r
}

// ServeHTTP implements [http.Handler].
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Routes returns the router so it can be mounted under a prefix.
func (h *Handler) Routes() chi.Router {
	return h.router
}

type refreshOutput struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

type slidingOutput struct {
	Token string `json:"token"`
}

func (h *Handler) handleObtainPair(w http.ResponseWriter, r *http.Request) {
	obtain := h.schemas.Obtain(schema.SlotObtainPair)
	in, id, ok := h.obtain(w, r, obtain)
	if !ok {
		return
	}

	pair, err := h.engine.ObtainPair(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, obtain, in, id, schema.Tokens{Access: pair.Access, Refresh: pair.Refresh})
}

func (h *Handler) handleObtainSliding(w http.ResponseWriter, r *http.Request) {
	obtain := h.schemas.Obtain(schema.SlotObtainSliding)
	in, id, ok := h.obtain(w, r, obtain)
	if !ok {
		return
	}

	raw, err := h.engine.ObtainSliding(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, obtain, in, id, schema.Tokens{Token: raw})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.rawToken(w, r, schema.SlotRefreshPair)
	if !ok {
		return
	}

	pair, err := h.engine.RefreshPair(r.Context(), raw)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := refreshOutput{Refresh: raw, Access: pair.Access}
	if pair.Refresh != "" {
		out.Refresh = pair.Refresh
	}
	httperr.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleRefreshSliding(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.rawToken(w, r, schema.SlotRefreshSliding)
	if !ok {
		return
	}

	renewed, err := h.engine.RefreshSliding(r.Context(), raw)
	if err != nil {
		h.fail(w, err)
		return
	}
	httperr.JSON(w, http.StatusOK, slidingOutput{Token: renewed})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.rawToken(w, r, schema.SlotVerify)
	if !ok {
		return
	}

	if _, err := h.engine.Verify(r.Context(), raw); err != nil {
		h.fail(w, err)
		return
	}
	httperr.JSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) handleBlacklist(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.rawToken(w, r, schema.SlotBlacklist)
	if !ok {
		return
	}

	if _, err := h.engine.Revoke(r.Context(), raw); err != nil {
		h.fail(w, err)
		return
	}
	httperr.JSON(w, http.StatusOK, struct{}{})
}

// obtain decodes credentials and checks them with the Authenticator.
func (h *Handler) obtain(w http.ResponseWriter, r *http.Request, s schema.ObtainSchema) (schema.Input, schema.Identity, bool) {
	in, ok := h.decode(w, r, s)
	if !ok {
		return nil, schema.Identity{}, false
	}
	obtainIn, ok := in.(schema.ObtainInput)
	if !ok {
		h.fail(w, inputMismatch(s, in, "schema.ObtainInput"))
		return nil, schema.Identity{}, false
	}
	creds := obtainIn.Credentials()

	id, err := h.auth.Authenticate(r.Context(), creds)
	if err != nil {
		h.fail(w, err)
		return nil, schema.Identity{}, false
	}
	if id.UserID == "" {
		h.fail(w, goToken.ErrAuthenticationFailed)
		return nil, schema.Identity{}, false
	}
	return in, id, true
}

func (h *Handler) rawToken(w http.ResponseWriter, r *http.Request, slot schema.Slot) (string, bool) {
	s := h.schemas.Input(slot)
	in, ok := h.decode(w, r, s)
	if !ok {
		return "", false
	}
	tokenIn, ok := in.(schema.TokenInput)
	if !ok {
		h.fail(w, inputMismatch(s, in, "schema.TokenInput"))
		return "", false
	}
	return tokenIn.RawToken(), true
}

// inputMismatch reports a schema whose NewInput stopped returning the type
// the startup check saw.
func inputMismatch(s schema.InputSchema, in schema.Input, want string) error {
	return fmt.Errorf("%w: %T returned input %T, which does not implement %s", schema.ErrContractMismatch, s, in, want)
}

// decode fills a fresh input from the body and validates it. Malformed JSON
// is a 400; a failed Validate is a 422.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, s schema.InputSchema) (schema.Input, bool) {
	in := s.NewInput()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err := dec.Decode(in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httperr.JSON(w, http.StatusRequestEntityTooLarge, httperr.Body{Detail: "Request body too large"})
			return nil, false
		}
		httperr.JSON(w, http.StatusBadRequest, httperr.Body{Detail: "Invalid JSON body"})
		return nil, false
	}
	if err := in.Validate(); err != nil {
		h.fail(w, err)
		return nil, false
	}
	return in, true
}

func (h *Handler) respond(w http.ResponseWriter, s schema.ObtainSchema, in schema.Input, id schema.Identity, tokens schema.Tokens) {
	out, err := s.ToResponse(in, id, tokens)
	if err != nil {
		h.fail(w, err)
		return
	}
	httperr.JSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status, _ := httperr.Response(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Int("status", status).Msg("token endpoint failed")
	}
	httperr.Write(w, err)
}
