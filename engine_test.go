package goToken

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/schema"
	"github.com/MrEthical07/goToken/token"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memUserProvider struct {
	mu    sync.RWMutex
	users map[string]UserRecord
}

func newMemUserProvider(users ...UserRecord) *memUserProvider {
	p := &memUserProvider{users: make(map[string]UserRecord, len(users))}
	for _, u := range users {
		p.users[u.UserID] = u
	}
	return p
}

func (p *memUserProvider) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningKey = []byte("engine-test-secret-0123456789abcdef")
	return cfg
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	return mr, rdb
}

func newTestEngine(t *testing.T, cfg Config, up UserProvider) (*Engine, *testClock, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, rdb := newTestRedis(t)
	clock := &testClock{now: time.Now().Truncate(time.Second)}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(up).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	return engine, clock, mr, func() {
		engine.Close()
		rdb.Close()
		mr.Close()
	}
}

func defaultUsers() *memUserProvider {
	return newMemUserProvider(
		UserRecord{UserID: "42", Active: true, Attributes: map[string]any{"first_name": "John"}},
		UserRecord{UserID: "7", Active: false},
	)
}

func TestObtainPairRoundTrip(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(), defaultUsers())
	defer done()
	ctx := context.Background()

	pair, err := engine.ObtainPair(ctx, "42")
	if err != nil {
		t.Fatalf("obtain pair: %v", err)
	}
	if strings.Count(pair.Access, ".") != 2 || strings.Count(pair.Refresh, ".") != 2 {
		t.Fatalf("unexpected token shape: %q %q", pair.Access, pair.Refresh)
	}

	res, err := engine.Authenticate(ctx, pair.Access)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if res.User.UserID != "42" || res.Token.Type() != "access" {
		t.Fatalf("unexpected result: %+v type=%s", res.User, res.Token.Type())
	}
	if res.Token.Has("jti") {
		t.Fatal("access token must not carry a jti")
	}

	rows, err := engine.Outstanding(ctx, "42")
	if err != nil {
		t.Fatalf("outstanding: %v", err)
	}
	if len(rows) != 1 || rows[0].TokenType != "refresh" || rows[0].Revoked {
		t.Fatalf("expected one live refresh row, got %+v", rows)
	}
}

func TestRefreshTokenRejectedByAccessOnlyAuthentication(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(), defaultUsers())
	defer done()
	ctx := context.Background()

	pair, err := engine.ObtainPair(ctx, "42")
	if err != nil {
		t.Fatalf("obtain pair: %v", err)
	}

	_, err = engine.Authenticate(ctx, pair.Refresh)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	var inv *InvalidTokenError
	if !errors.As(err, &inv) {
		t.Fatalf("expected *InvalidTokenError, got %T", err)
	}
	if inv.Error() != "Given token not valid for any token type" {
		t.Fatalf("unexpected detail %q", inv.Error())
	}
	msgs := inv.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one failure, got %+v", msgs)
	}
	if msgs[0]["token_class"] != "AccessToken" || msgs[0]["token_type"] != "access" || msgs[0]["message"] != "Token has wrong type" {
		t.Fatalf("unexpected failure %+v", msgs[0])
	}
}

func TestPipelineAggregatesEveryVariant(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(), defaultUsers())
	defer done()
	ctx := context.Background()

	res := engine.Attempt(ctx, "not-a-token", token.Access, token.Sliding)
	if res.OK() {
		t.Fatal("expected failure")
	}
	if len(res.Failures) != 2 {
		t.Fatalf("expected two failures, got %+v", res.Failures)
	}
	for _, f := range res.Failures {
		if f.Message != "Token is invalid or expired" || !errors.Is(f.Err, token.ErrDecode) {
			t.Fatalf("unexpected failure %+v", f)
		}
	}

	sliding, err := engine.ObtainSliding(ctx, "42")
	if err != nil {
		t.Fatalf("obtain sliding: %v", err)
	}
	res = engine.Attempt(ctx, sliding, token.Access, token.Sliding)
	if !res.OK() || res.Token.Type() != "sliding" {
		t.Fatalf("expected sliding to be accepted, got %+v", res.Failures)
	}
	if len(res.Failures) != 1 || res.Failures[0].Variant != "AccessToken" {
		t.Fatalf("expected the access failure to be kept, got %+v", res.Failures)
	}
}

func TestRevokeIsPermanentAndIdempotent(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(), defaultUsers())
	defer done()
	ctx := context.Background()

	pair, err := engine.ObtainPair(ctx, "42")
	if err != nil {
		t.Fatalf("obtain pair: %v", err)
	}

	changed, err := engine.Revoke(ctx, pair.Refresh)
	if err != nil || !changed {
		t.Fatalf("first revoke: changed=%v err=%v", changed, err)
	}
	changed, err = engine.Revoke(ctx, pair.Refresh)
	if err != nil || changed {
		t.Fatalf("second revoke must be a no-op: changed=%v err=%v", changed, err)
	}

	_, err = engine.RefreshPair(ctx, pair.Refresh)
	if !errors.Is(err, token.ErrRevoked) || !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected revoked refresh to be rejected, got %v", err)
	}
	if err.Error() != "Token is blacklisted" {
		t.Fatalf("unexpected detail %q", err.Error())
	}

	// Access tokens are never checked against the ledger.
	if _, err := engine.Authenticate(ctx, pair.Access); err != nil {
		t.Fatalf("access token must stay valid until it expires: %v", err)
	}

	rows, err := engine.Outstanding(ctx, "42")
	if err != nil || len(rows) != 1 || !rows[0].Revoked || rows[0].RevokedAt == 0 {
		t.Fatalf("expected one revoked row, got %+v err=%v", rows, err)
	}
}

func TestConcurrentRevokeSingleChange(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(), defaultUsers())
	defer done()
	ctx := context.Background()

	pair, err := engine.ObtainPair(ctx, "42")
	if err != nil {
		t.Fatalf("obtain pair: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan bool, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			changed, err := engine.Revoke(ctx, pair.Refresh)
			if err != nil {
				errs <- err
				return
			}
			results <- changed
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("unexpected revoke error: %v", err)
	}
	changes := 0
	for changed := range results {
		if changed {
			changes++
		}
	}
	if changes != 1 {
		t.Fatalf("expected exactly one state change, got %d", changes)
	}
}

func TestConcurrentRotationHasSingleWinner(t *testing.T) {
	cfg := testConfig()
	cfg.Tokens.RotateRefreshTokens = true
	cfg.Tokens.BlacklistAfterRotation = true
	engine, _, _, done := newTestEngine(t, cfg, defaultUsers())
	defer done()
	ctx := context.Background()

	pair, err := engine.ObtainPair(ctx, "42")
	if err != nil {
		t.Fatalf("obtain pair: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	rotated := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			next, err := engine.RefreshPair(ctx, pair.Refresh)
			if err != nil {
				errs <- err
				return
			}
			rotated <- next.Refresh
		}()
	}
	wg.Wait()
	close(rotated)
	close(errs)

	for err := range errs {
		if !errors.Is(err, token.ErrRevoked) {
			t.Fatalf("expected losers to see a blacklisted token, got %v", err)
		}
	}
	if len(rotated) != 1 {
		t.Fatalf("expected exactly one rotation, got %d", len(rotated))
	}
	if _, err := engine.ValidateToken(ctx, <-rotated, token.Refresh); err != nil {
		t.Fatalf("winner's refresh token must be live: %v", err)
	}
}

func TestRevokeRejectsAccessToken(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(), defaultUsers())
	defer done()
	ctx := context.Background()

	pair, err := engine.ObtainPair(ctx, "42")
	if err != nil {
		t.Fatalf("obtain pair: %v", err)
	}
	_, err = engine.Revoke(ctx, pair.Access)
	var inv *InvalidTokenError
	if !errors.As(err, &inv) || len(inv.Failures) != 2 {
		t.Fatalf("expected refresh and sliding failures, got %v", err)
	}
	if inv.Failures[0].Variant != "RefreshToken" || inv.Failures[1].Variant != "SlidingToken" {
		t.Fatalf("unexpected failure order %+v", inv.Failures)
	}
}

func TestExpiredAccessRejected(t *testing.T) {
	engine, clock, _, done := newTestEngine(t, testConfig(), defaultUsers())
	defer done()
	ctx := context.Background()

	pair, err := engine.ObtainPair(ctx, "42")
	if err != nil {
		t.Fatalf("obtain pair: %v", err)
	}

	clock.Advance(5*time.Minute - time.Second)
	if _, err := engine.ValidateToken(ctx, pair.Access); err != nil {
		t.Fatalf("token must be valid one second before exp: %v", err)
	}

	clock.Advance(time.Second)
	_, err = engine.ValidateToken(ctx, pair.Access)
	if !errors.Is(err, token.ErrExpired) {
		t.Fatalf("expected expiry at exp, got %v", err)
	}
	var inv *InvalidTokenError
	if !errors.As(err, &inv) || inv.Failures[0].Message != "Token 'exp' claim has expired" {
		t.Fatalf("unexpected failure %v", err)
	}
}

func TestSlidingRenewalAndOuterLifetime(t *testing.T) {
	cfg := testConfig()
	cfg.Tokens.SlidingTTL = 5 * time.Minute
	cfg.Tokens.SlidingRefreshTTL = 12 * time.Minute
	engine, clock, _, done := newTestEngine(t, cfg, defaultUsers())
	defer done()
	ctx := context.Background()

	sliding, err := engine.ObtainSliding(ctx, "42")
	if err != nil {
		t.Fatalf("obtain sliding: %v", err)
	}

	clock.Advance(4 * time.Minute)
	renewed, err := engine.RefreshSliding(ctx, sliding)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	tok, err := engine.ValidateToken(ctx, renewed, token.Sliding)
	if err != nil {
		t.Fatalf("validate renewed: %v", err)
	}
	if exp, _ := tok.Time("exp"); !exp.Equal(clock.Now().Add(5 * time.Minute)) {
		t.Fatalf("renewal must move exp to now+lifetime, got %v", exp)
	}

	clock.Advance(4 * time.Minute)
	renewed, err = engine.RefreshSliding(ctx, renewed)
	if err != nil {
		t.Fatalf("second renew: %v", err)
	}

	clock.Advance(4 * time.Minute)
	_, err = engine.RefreshSliding(ctx, renewed)
	if !errors.Is(err, ErrRefreshExpired) || !errors.Is(err, token.ErrExpired) {
		t.Fatalf("expected outer lifetime refusal, got %v", err)
	}
	var inv *InvalidTokenError
	if !errors.As(err, &inv) || inv.Detail != "Token 'refresh_exp' claim has expired" {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestSlidingRenewalRefusedAfterExp(t *testing.T) {
	engine, clock, _, done := newTestEngine(t, testConfig(), defaultUsers())
	defer done()
	ctx := context.Background()

	sliding, err := engine.ObtainSliding(ctx, "42")
	if err != nil {
		t.Fatalf("obtain sliding: %v", err)
	}
	clock.Advance(6 * time.Minute)
	if _, err := engine.RefreshSliding(ctx, sliding); !errors.Is(err, token.ErrExpired) {
		t.Fatalf("expected expired sliding token to be refused, got %v", err)
	}
}

func TestRefreshPairWithoutRotation(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(), defaultUsers())
	defer done()
	ctx := context.Background()

	pair, err := engine.ObtainPair(ctx, "42")
	if err != nil {
		t.Fatalf("obtain pair: %v", err)
	}
	next, err := engine.RefreshPair(ctx, pair.Refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.Refresh != "" {
		t.Fatal("refresh token must not rotate by default")
	}
	res, err := engine.Authenticate(ctx, next.Access)
	if err != nil || res.User.UserID != "42" {
		t.Fatalf("derived access token invalid: %v", err)
	}
	if _, err := engine.RefreshPair(ctx, pair.Refresh); err != nil {
		t.Fatalf("refresh token must stay usable without rotation: %v", err)
	}
}

func TestRefreshRotationBlacklistsPreviousToken(t *testing.T) {
	cfg := testConfig()
	cfg.Tokens.RotateRefreshTokens = true
	cfg.Tokens.BlacklistAfterRotation = true
	engine, _, _, done := newTestEngine(t, cfg, defaultUsers())
	defer done()
	ctx := context.Background()

	pair, err := engine.ObtainPair(ctx, "42")
	if err != nil {
		t.Fatalf("obtain pair: %v", err)
	}
	next, err := engine.RefreshPair(ctx, pair.Refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.Refresh == "" || next.Refresh == pair.Refresh {
		t.Fatal("expected a rotated refresh token")
	}

	if _, err := engine.RefreshPair(ctx, pair.Refresh); !errors.Is(err, token.ErrRevoked) {
		t.Fatalf("expected rotated-out token to be blacklisted, got %v", err)
	}
	if _, err := engine.RefreshPair(ctx, next.Refresh); err != nil {
		t.Fatalf("rotated token must be usable: %v", err)
	}

	rows, err := engine.Outstanding(ctx, "42")
	if err != nil || len(rows) != 3 {
		t.Fatalf("expected three recorded refresh tokens, got %d err=%v", len(rows), err)
	}
}

func TestAuthenticateIdentityErrors(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(), defaultUsers())
	defer done()
	ctx := context.Background()

	missing, err := engine.ObtainPair(ctx, "999")
	if err != nil {
		t.Fatalf("obtain pair: %v", err)
	}
	if _, err := engine.Authenticate(ctx, missing.Access); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	inactive, err := engine.ObtainPair(ctx, "7")
	if err != nil {
		t.Fatalf("obtain pair: %v", err)
	}
	if _, err := engine.Authenticate(ctx, inactive.Access); !errors.Is(err, ErrUserInactive) {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}

	anon, err := engine.Factory().New(token.Access)
	if err != nil {
		t.Fatalf("new access: %v", err)
	}
	raw, err := anon.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := engine.Authenticate(ctx, raw); !errors.Is(err, ErrNoUserIdentification) {
		t.Fatalf("expected ErrNoUserIdentification, got %v", err)
	}
	if _, err := engine.AuthenticateStateless(ctx, raw); !errors.Is(err, ErrNoUserIdentification) {
		t.Fatalf("expected ErrNoUserIdentification from stateless auth, got %v", err)
	}
}

func TestAuthenticateStatelessSkipsIdentityStore(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(), newMemUserProvider())
	defer done()
	ctx := context.Background()

	pair, err := engine.ObtainPair(ctx, "42")
	if err != nil {
		t.Fatalf("obtain pair: %v", err)
	}
	user, err := engine.AuthenticateStateless(ctx, pair.Access)
	if err != nil {
		t.Fatalf("stateless auth: %v", err)
	}
	if user.UserID != "42" || !user.IsAuthenticated() {
		t.Fatalf("unexpected token user %+v", user)
	}
	if typ, _ := user.Claim("token_type"); typ != "access" {
		t.Fatalf("unexpected token_type claim %v", typ)
	}
}

func TestVerifyChecksBlacklistWhenJTIPresent(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(), defaultUsers())
	defer done()
	ctx := context.Background()

	pair, err := engine.ObtainPair(ctx, "42")
	if err != nil {
		t.Fatalf("obtain pair: %v", err)
	}
	for _, raw := range []string{pair.Access, pair.Refresh} {
		if _, err := engine.Verify(ctx, raw); err != nil {
			t.Fatalf("verify: %v", err)
		}
	}

	if _, err := engine.Revoke(ctx, pair.Refresh); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	_, err = engine.Verify(ctx, pair.Refresh)
	if !errors.Is(err, token.ErrRevoked) || err.Error() != "Token is blacklisted" {
		t.Fatalf("expected blacklisted verify failure, got %v", err)
	}

	if _, err := engine.Verify(ctx, pair.Access+"x"); !errors.Is(err, token.ErrDecode) {
		t.Fatalf("expected tampered token to fail decoding, got %v", err)
	}
}

func TestRevokeAllAndFlushExpired(t *testing.T) {
	engine, clock, _, done := newTestEngine(t, testConfig(), defaultUsers())
	defer done()
	ctx := context.Background()

	var pairs []TokenPair
	for i := 0; i < 2; i++ {
		pair, err := engine.ObtainPair(ctx, "42")
		if err != nil {
			t.Fatalf("obtain pair: %v", err)
		}
		pairs = append(pairs, pair)
	}
	if _, err := engine.ObtainSliding(ctx, "42"); err != nil {
		t.Fatalf("obtain sliding: %v", err)
	}
	if _, err := engine.ObtainPair(ctx, "other"); err != nil {
		t.Fatalf("obtain pair: %v", err)
	}

	n, err := engine.RevokeAllForUser(ctx, "42")
	if err != nil || n != 3 {
		t.Fatalf("expected 3 revocations, got %d err=%v", n, err)
	}
	for _, p := range pairs {
		if _, err := engine.RefreshPair(ctx, p.Refresh); !errors.Is(err, token.ErrRevoked) {
			t.Fatalf("expected revoked refresh, got %v", err)
		}
	}

	clock.Advance(25 * time.Hour)
	removed, err := engine.FlushExpired(ctx)
	if err != nil || removed != 4 {
		t.Fatalf("expected 4 flushed rows, got %d err=%v", removed, err)
	}
	rows, err := engine.Outstanding(ctx, "42")
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected no rows after flush, got %+v err=%v", rows, err)
	}
}

func TestFlushKeepsRevokedRowWithinLeeway(t *testing.T) {
	cfg := testConfig()
	cfg.Tokens.Leeway = time.Minute
	engine, clock, _, done := newTestEngine(t, cfg, defaultUsers())
	defer done()
	ctx := context.Background()

	pair, err := engine.ObtainPair(ctx, "42")
	if err != nil {
		t.Fatalf("obtain pair: %v", err)
	}
	if _, err := engine.Revoke(ctx, pair.Refresh); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// exp has passed but the leeway still accepts it.
	clock.Advance(cfg.Tokens.RefreshTTL + 10*time.Second)
	if removed, err := engine.FlushExpired(ctx); err != nil || removed != 0 {
		t.Fatalf("expected nothing flushed inside the leeway, got %d err=%v", removed, err)
	}
	if _, err := engine.ValidateToken(ctx, pair.Refresh, token.Refresh); !errors.Is(err, token.ErrRevoked) {
		t.Fatalf("expected revoked refresh to stay rejected, got %v", err)
	}

	clock.Advance(time.Minute)
	if removed, err := engine.FlushExpired(ctx); err != nil || removed != 1 {
		t.Fatalf("expected the row flushed past the leeway, got %d err=%v", removed, err)
	}
	if _, err := engine.ValidateToken(ctx, pair.Refresh, token.Refresh); !errors.Is(err, token.ErrExpired) {
		t.Fatalf("expected expired refresh after flush, got %v", err)
	}
}

func TestFlushKeepsRevokedSlidingRowAfterLateRenewal(t *testing.T) {
	cfg := testConfig()
	cfg.Tokens.SlidingTTL = 5 * time.Minute
	cfg.Tokens.SlidingRefreshTTL = 12 * time.Minute
	engine, clock, _, done := newTestEngine(t, cfg, defaultUsers())
	defer done()
	ctx := context.Background()

	sliding, err := engine.ObtainSliding(ctx, "42")
	if err != nil {
		t.Fatalf("obtain sliding: %v", err)
	}
	for _, step := range []time.Duration{4 * time.Minute, 4 * time.Minute, 3 * time.Minute} {
		clock.Advance(step)
		if sliding, err = engine.RefreshSliding(ctx, sliding); err != nil {
			t.Fatalf("renew: %v", err)
		}
	}
	// Renewed at 11m, so exp is 16m while refresh_exp is 12m.
	if _, err := engine.Revoke(ctx, sliding); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	clock.Advance(90 * time.Second)
	if removed, err := engine.FlushExpired(ctx); err != nil || removed != 0 {
		t.Fatalf("expected nothing flushed before the last reachable exp, got %d err=%v", removed, err)
	}
	if _, err := engine.ValidateToken(ctx, sliding, token.Sliding); !errors.Is(err, token.ErrRevoked) {
		t.Fatalf("expected revoked sliding token to stay rejected, got %v", err)
	}

	clock.Advance(5 * time.Minute)
	if removed, err := engine.FlushExpired(ctx); err != nil || removed != 1 {
		t.Fatalf("expected the sliding row flushed, got %d err=%v", removed, err)
	}
	if _, err := engine.ValidateToken(ctx, sliding, token.Sliding); !errors.Is(err, token.ErrExpired) {
		t.Fatalf("expected expired sliding token after flush, got %v", err)
	}
}

func TestBuildRejectsContractMismatch(t *testing.T) {
	_, rdb := newTestRedis(t)
	defer rdb.Close()

	cfg := testConfig()
	cfg.Schemas = map[schema.Slot]string{schema.SlotObtainPair: "refresh-shaped"}
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithSchema("refresh-shaped", schema.TokenRefreshInputSchema{}).
		Build()
	if engine != nil {
		t.Fatal("engine must not be built on contract mismatch")
	}
	if !errors.Is(err, schema.ErrContractMismatch) {
		t.Fatalf("expected ErrContractMismatch, got %v", err)
	}
	want := "TOKEN_OBTAIN_PAIR_INPUT_SCHEMA type must implement schema.ObtainSchema"
	if !strings.HasPrefix(err.Error(), want) {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestBuildValidation(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected missing redis to be rejected while the ledger is enabled")
	}

	cfg := testConfig()
	cfg.Tokens.BlacklistAfterRotation = true
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected BlacklistAfterRotation without rotation to be rejected")
	}

	cfg = testConfig()
	cfg.Auth.TokenVariants = []string{"BogusToken"}
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected unknown auth variant to be rejected")
	}

	cfg = testConfig()
	cfg.Claims.JTI = cfg.Claims.UserID
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected duplicate claim names to be rejected")
	}

	cfg = testConfig()
	cfg.JWT.SigningKey = nil
	cfg.Ledger.Enabled = false
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected missing HMAC key to be rejected")
	}

	b := New().WithConfig(func() Config { c := testConfig(); c.Ledger.Enabled = false; return c }())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("stateless engine: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("builder must be single use")
	}

	ctx := context.Background()
	pair, err := engine.ObtainPair(ctx, "42")
	if err != nil {
		t.Fatalf("obtain pair without ledger: %v", err)
	}
	if _, err := engine.Revoke(ctx, pair.Refresh); !errors.Is(err, ErrLedgerDisabled) {
		t.Fatalf("expected ErrLedgerDisabled, got %v", err)
	}
	if _, err := engine.RefreshPair(ctx, pair.Refresh); err != nil {
		t.Fatalf("refresh without ledger: %v", err)
	}
}

func TestLedgerOutageSurfacesUnavailable(t *testing.T) {
	engine, _, mr, done := newTestEngine(t, testConfig(), defaultUsers())
	defer done()
	ctx := context.Background()

	pair, err := engine.ObtainPair(ctx, "42")
	if err != nil {
		t.Fatalf("obtain pair: %v", err)
	}
	mr.Close()

	if _, err := engine.RefreshPair(ctx, pair.Refresh); !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}
	if _, err := engine.ObtainPair(ctx, "42"); !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable on mint, got %v", err)
	}
	if _, err := engine.Authenticate(ctx, pair.Access); err != nil {
		t.Fatalf("access validation must not need redis: %v", err)
	}
	if err := engine.Ping(ctx); !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("expected ping failure, got %v", err)
	}
}

func TestMetricsAndAuditWiring(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false

	sink := NewChannelSink(32)
	mr, rdb := newTestRedis(t)
	defer mr.Close()
	defer rdb.Close()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(defaultUsers()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := context.Background()

	pair, err := engine.ObtainPair(ctx, "42")
	if err != nil {
		t.Fatalf("obtain pair: %v", err)
	}
	if _, err := engine.Revoke(ctx, pair.Refresh); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := engine.Authenticate(ctx, pair.Refresh); err == nil {
		t.Fatal("expected refresh token to be rejected")
	}
	if _, err := engine.Authenticate(ctx, pair.Access); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	engine.Close()

	snap := engine.MetricsSnapshot()
	checks := map[MetricID]uint64{
		MetricObtainPair:      1,
		MetricRevoke:          1,
		MetricValidateFailure: 1,
		MetricValidateSuccess: 1,
	}
	for id, want := range checks {
		if got := snap.Counters[id]; got != want {
			t.Fatalf("metric %d: expected %d, got %d", id, want, got)
		}
	}
	var observed uint64
	for _, v := range snap.Histograms[MetricValidateLatency] {
		observed += v
	}
	if observed != 2 {
		t.Fatalf("expected 2 latency observations, got %d", observed)
	}

	var types []string
	for len(sink.Events()) > 0 {
		ev := <-sink.Events()
		types = append(types, ev.EventType)
	}
	if len(types) != 2 || types[0] != "token_obtain_pair" || types[1] != "token_revoke" {
		t.Fatalf("unexpected audit events %v", types)
	}
	if engine.AuditDropped() != 0 {
		t.Fatalf("unexpected dropped events %d", engine.AuditDropped())
	}
}
