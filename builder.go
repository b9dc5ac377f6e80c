package goToken

import (
	"errors"
	"fmt"
	"time"

	internalaudit "github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/ledger"
	"github.com/MrEthical07/goToken/schema"
	"github.com/MrEthical07/goToken/token"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles an [Engine]. A builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	auditSink    AuditSink
	logger       zerolog.Logger
	now          func() time.Time

	schemas   *schema.Registry
	schemaErr error

	built bool
}

// New returns a builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config:  defaultConfig(),
		logger:  zerolog.Nop(),
		schemas: schema.NewRegistry(),
	}
}

// WithConfig replaces the configuration. cfg is cloned.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the revocation ledger.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the identity store used by Authenticate.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink sets the audit sink. Audit must also be enabled in Config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. The default discards everything.
func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock replaces time.Now for every lifetime computation.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithSchema registers a schema component under name so that Config.Schemas
// can refer to it.
func (b *Builder) WithSchema(name string, component any) *Builder {
	if err := b.schemas.Register(name, component); err != nil && b.schemaErr == nil {
		b.schemaErr = err
	}
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, checks every schema slot against its
// contract and constructs the engine. A contract violation returns a
// *schema.ContractError and no engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Ledger.Enabled && b.redis == nil {
		return nil, errors.New("redis client required when the ledger is enabled")
	}

	if b.schemaErr != nil {
		return nil, b.schemaErr
	}
	schemas, err := schema.Check(b.schemas, cfg.Schemas)
	if err != nil {
		return nil, err
	}

	codec, err := jwt.NewCodec(cfg.codecConfig())
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	engine := &Engine{
		config:       cfg,
		codec:        codec,
		schemas:      schemas,
		userProvider: b.userProvider,
		logger:       b.logger,
		authVariants: cfg.authVariants(),
	}

	// A nil *ledger.Store must not reach the factory as a non-nil interface.
	var l token.Ledger
	if cfg.Ledger.Enabled {
		engine.ledger = ledger.NewStore(b.redis, ledger.Config{
			Prefix:             cfg.Ledger.Prefix,
			RequireOutstanding: cfg.Ledger.RequireOutstanding,
			Retention:          cfg.Ledger.Retention,
			Leeway:             cfg.Tokens.Leeway,
		})
		l = engine.ledger
	}

	var opts []token.Option
	if b.now != nil {
		opts = append(opts, token.WithClock(b.now))
	}
	factory, err := token.NewFactory(cfg.tokenConfig(), codec, l, opts...)
	if err != nil {
		return nil, err
	}
	engine.factory = factory

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	engine.logger.Debug().
		Str("algorithm", cfg.JWT.Algorithm).
		Bool("ledger", cfg.Ledger.Enabled).
		Bool("can_sign", codec.CanSign()).
		Strs("auth_variants", cfg.Auth.TokenVariants).
		Msg("token engine built")

	return engine, nil
}
