package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLedgerUnavailable is returned when Redis cannot serve a ledger call.
var ErrLedgerUnavailable = errors.New("revocation ledger unavailable")

// ErrDuplicateOutstanding is returned when an outstanding row for the jti
// already exists. It means jti uniqueness is broken.
var ErrDuplicateOutstanding = errors.New("duplicate outstanding token")

// ErrOutstandingNotFound is returned when no outstanding row exists for a jti.
var ErrOutstandingNotFound = errors.New("outstanding token not found")

// ErrNotBlacklisted is returned by [Store.Blacklisted] for a jti that was never revoked.
var ErrNotBlacklisted = errors.New("token not blacklisted")

const (
	revokeStatusNotFound       int64 = 0
	revokeStatusAlreadyRevoked int64 = 1
	revokeStatusRevoked        int64 = 2
)

const recordOutstandingScript = `
if not redis.call("SET", KEYS[1], ARGV[1], "NX") then
  return 0
end
redis.call("SADD", KEYS[2], ARGV[2])
local expire_at = tonumber(ARGV[3])
if expire_at > 0 then
  redis.call("PEXPIREAT", KEYS[1], expire_at)
end
return 1
`

var recordOutstandingLua = redis.NewScript(recordOutstandingScript)

const revokeScript = `
local expire_at = tonumber(ARGV[5])
if redis.call("EXISTS", KEYS[1]) == 0 then
  if ARGV[4] == "1" then
    return 0
  end
  redis.call("SET", KEYS[1], ARGV[1])
  redis.call("SADD", KEYS[3], ARGV[2])
  if expire_at > 0 then
    redis.call("PEXPIREAT", KEYS[1], expire_at)
  end
end
if not redis.call("SET", KEYS[2], ARGV[3], "NX") then
  return 1
end
if expire_at > 0 then
  redis.call("PEXPIREAT", KEYS[2], expire_at)
end
return 2
`

var revokeLua = redis.NewScript(revokeScript)

const flushScanCount = 256

// Config controls ledger key layout and row retention.
type Config struct {
	// Prefix namespaces every ledger key.
	Prefix string
	// RequireOutstanding makes Revoke fail with ErrOutstandingNotFound for a
	// jti that was never recorded. When false the row is created on revoke.
	RequireOutstanding bool
	// Retention keeps rows until expires_at + Leeway + Retention and lets
	// Redis expire them. Zero keeps rows until FlushExpired removes them.
	Retention time.Duration
	// Leeway is the clock skew token verification tolerates past exp. A row
	// is only dropped once its token is rejected even with that leeway.
	Leeway time.Duration
}

// Store is the Redis-backed revocation ledger.
//
// Store is safe for concurrent use; it keeps no state besides the client.
type Store struct {
	redis              redis.UniversalClient
	prefix             string
	requireOutstanding bool
	retention          time.Duration
	leeway             time.Duration
}

// NewStore creates a ledger [Store] backed by the given Redis client.
func NewStore(client redis.UniversalClient, cfg Config) *Store {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "gtl"
	}
	return &Store{
		redis:              client,
		prefix:             prefix,
		requireOutstanding: cfg.RequireOutstanding,
		retention:          cfg.Retention,
		leeway:             max(cfg.Leeway, 0),
	}
}

func (s *Store) outstandingKey(jti string) string {
	return s.prefix + ":o:" + jti
}

func (s *Store) blacklistKey(jti string) string {
	return s.prefix + ":b:" + jti
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// expireAtMillis returns the absolute expiry for a row in unix millis, or 0
// when rows are durable.
func (s *Store) expireAtMillis(expiresAt int64) int64 {
	if s.retention <= 0 {
		return 0
	}
	return time.Unix(expiresAt, 0).Add(s.leeway + s.retention).UnixMilli()
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
}

// RecordOutstanding stores the outstanding row for e.JTI and indexes it under
// e.UserID in one script call.
//
//	Performance: 1 Redis EVALSHA.
func (s *Store) RecordOutstanding(ctx context.Context, e Entry) error {
	if e.JTI == "" {
		return errors.New("outstanding entry requires a jti")
	}
	data, err := Encode(&e)
	if err != nil {
		return err
	}

	res, err := recordOutstandingLua.Run(
		ctx,
		s.redis,
		[]string{s.outstandingKey(e.JTI), s.userKey(e.UserID)},
		data,
		e.JTI,
		s.expireAtMillis(e.ExpiresAt),
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	if res == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateOutstanding, e.JTI)
	}
	return nil
}

// IsRevoked reports whether a blacklist row exists for jti.
//
//	Performance: 1 Redis EXISTS.
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.blacklistKey(jti)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

// Revoke blacklists e.JTI at the given time. It is idempotent: repeated calls
// leave exactly one blacklist row. The boolean result reports whether this
// call created it.
//
// Without RequireOutstanding a missing outstanding row is created from e
// before the blacklist row, so the blacklist never references an unknown jti.
//
//	Performance: 1 Redis EVALSHA.
func (s *Store) Revoke(ctx context.Context, e Entry, at time.Time) (bool, error) {
	if e.JTI == "" {
		return false, errors.New("revoke requires a jti")
	}
	data, err := Encode(&e)
	if err != nil {
		return false, err
	}

	require := "0"
	if s.requireOutstanding {
		require = "1"
	}

	status, err := revokeLua.Run(
		ctx,
		s.redis,
		[]string{s.outstandingKey(e.JTI), s.blacklistKey(e.JTI), s.userKey(e.UserID)},
		data,
		e.JTI,
		at.Unix(),
		require,
		s.expireAtMillis(e.ExpiresAt),
	).Int64()
	if err != nil {
		return false, unavailable(err)
	}

	switch status {
	case revokeStatusRevoked:
		return true, nil
	case revokeStatusAlreadyRevoked:
		return false, nil
	case revokeStatusNotFound:
		return false, fmt.Errorf("%w: %s", ErrOutstandingNotFound, e.JTI)
	default:
		return false, fmt.Errorf("unexpected revoke status %d", status)
	}
}

// Outstanding returns the outstanding row for jti.
func (s *Store) Outstanding(ctx context.Context, jti string) (*Entry, error) {
	data, err := s.redis.Get(ctx, s.outstandingKey(jti)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Join(redis.Nil, ErrOutstandingNotFound)
		}
		return nil, unavailable(err)
	}
	e, err := Decode(data)
	if err != nil {
		return nil, err
	}
	e.JTI = jti
	return e, nil
}

// Blacklisted returns the blacklist row for jti.
func (s *Store) Blacklisted(ctx context.Context, jti string) (*BlacklistEntry, error) {
	v, err := s.redis.Get(ctx, s.blacklistKey(jti)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Join(redis.Nil, ErrNotBlacklisted)
		}
		return nil, unavailable(err)
	}
	at, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRow, err)
	}
	return &BlacklistEntry{JTI: jti, RevokedAt: at}, nil
}

// ListForUser returns the outstanding rows indexed under userID, oldest
// first. Index members whose row is gone are pruned.
//
//	Performance: 1 SMEMBERS + 1 pipelined GET batch (+ 1 SREM when pruning).
func (s *Store) ListForUser(ctx context.Context, userID string) ([]Entry, error) {
	userKey := s.userKey(userID)
	jtis, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Entry{}, nil
		}
		return nil, unavailable(err)
	}
	if len(jtis) == 0 {
		return []Entry{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(jtis))
	for i, jti := range jtis {
		cmds[i] = pipe.Get(ctx, s.outstandingKey(jti))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable(err)
	}

	entries := make([]Entry, 0, len(jtis))
	stale := make([]interface{}, 0)
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				stale = append(stale, jtis[i])
				continue
			}
			return nil, unavailable(err)
		}
		e, err := Decode(data)
		if err != nil {
			return nil, err
		}
		e.JTI = jtis[i]
		entries = append(entries, *e)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, unavailable(err)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt == entries[j].CreatedAt {
			return entries[i].JTI < entries[j].JTI
		}
		return entries[i].CreatedAt < entries[j].CreatedAt
	})
	return entries, nil
}

// RevokeAllForUser blacklists every outstanding row indexed under userID and
// returns how many were newly revoked.
//
// ATOMICITY NOTE: the index is read before the blacklist rows are written. A
// token minted between the two phases is not revoked by this call.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int, error) {
	entries, err := s.ListForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	cmds := make([]*redis.BoolCmd, len(entries))
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, e := range entries {
			key := s.blacklistKey(e.JTI)
			cmds[i] = pipe.SetNX(ctx, key, at.Unix(), 0)
			if ms := s.expireAtMillis(e.ExpiresAt); ms > 0 {
				pipe.PExpireAt(ctx, key, time.UnixMilli(ms))
			}
		}
		return nil
	})
	if err != nil {
		return 0, unavailable(err)
	}

	revoked := 0
	for _, cmd := range cmds {
		if cmd.Val() {
			revoked++
		}
	}
	return revoked, nil
}

// FlushExpired deletes every outstanding row whose expires_at is at or
// before now minus the leeway, together with its blacklist row and index
// membership. It returns the number of outstanding rows removed.
//
//	Performance: SCAN over outstanding keys; intended for operator jobs.
func (s *Store) FlushExpired(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.leeway).Unix()
	removed := 0

	iter := s.redis.Scan(ctx, 0, s.prefix+":o:*", flushScanCount).Iterator()
	batch := make([]string, 0, flushScanCount)
	flush := func() error {
		n, err := s.flushBatch(ctx, batch, cutoff)
		removed += n
		batch = batch[:0]
		return err
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == flushScanCount {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, unavailable(err)
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (s *Store) flushBatch(ctx context.Context, keys []string, cutoff int64) (int, error) {
	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, unavailable(err)
	}

	type expired struct {
		jti    string
		userID string
	}
	victims := make([]expired, 0)
	prefixLen := len(s.prefix) + len(":o:")
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		e, err := Decode(data)
		if err != nil {
			continue
		}
		if e.ExpiresAt <= cutoff {
			victims = append(victims, expired{jti: keys[i][prefixLen:], userID: e.UserID})
		}
	}
	if len(victims) == 0 {
		return 0, nil
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, v := range victims {
			pipe.Del(ctx, s.outstandingKey(v.jti), s.blacklistKey(v.jti))
			pipe.SRem(ctx, s.userKey(v.userID), v.jti)
		}
		return nil
	})
	if err != nil {
		return 0, unavailable(err)
	}
	return len(victims), nil
}

// Ping checks that the backing Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
