package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	redisAddr string
	prefix    string
	algorithm string
	secret    string
	keyFile   string
	verbose   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "gotoken",
		Short:         "Operate a goToken revocation ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `gotoken inspects and revokes tokens issued by a goToken engine and
maintains its Redis revocation ledger.

Key material is read from --secret (or GOTOKEN_SECRET) for HMAC algorithms
and from --key-file for asymmetric ones. The Redis address is read from
--redis-addr (or REDIS_ADDR).`,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "redis address (default $REDIS_ADDR)")
	flags.StringVar(&opts.prefix, "prefix", goToken.DefaultConfig().Ledger.Prefix, "ledger key prefix")
	flags.StringVar(&opts.algorithm, "algorithm", goToken.DefaultConfig().JWT.Algorithm, "signing algorithm")
	flags.StringVar(&opts.secret, "secret", "", "HMAC signing secret (default $GOTOKEN_SECRET)")
	flags.StringVar(&opts.keyFile, "key-file", "", "PEM private key for asymmetric algorithms")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newInspectCmd(opts),
		newRevokeCmd(opts),
		newFlushExpiredCmd(opts),
		newOutstandingCmd(opts),
		newLoadtestCmd(opts),
	)
	return root
}

func (o *rootOptions) logger(cmd *cobra.Command) zerolog.Logger {
	level := zerolog.InfoLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	w := zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.TimeOnly}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func (o *rootOptions) signingKey() ([]byte, error) {
	if o.keyFile != "" {
		key, err := os.ReadFile(o.keyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		return key, nil
	}
	secret := o.secret
	if secret == "" {
		secret = os.Getenv("GOTOKEN_SECRET")
	}
	if secret == "" {
		return nil, errors.New("no key material: set --secret, GOTOKEN_SECRET or --key-file")
	}
	return []byte(secret), nil
}

func (o *rootOptions) config() (goToken.Config, error) {
	cfg := goToken.DefaultConfig()
	cfg.JWT.Algorithm = o.algorithm
	cfg.Ledger.Prefix = o.prefix

	key, err := o.signingKey()
	if err != nil {
		return cfg, err
	}
	cfg.JWT.SigningKey = key
	return cfg, nil
}

// ledgerEngine builds an engine attached to the configured Redis. The
// returned func releases the client.
func (o *rootOptions) ledgerEngine(cmd *cobra.Command) (*goToken.Engine, func(), error) {
	cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}

	addr := o.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		return nil, nil, errors.New("no redis address: set --redis-addr or REDIS_ADDR")
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})

	engine, err := goToken.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(o.logger(cmd)).
		Build()
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	if err := engine.Ping(cmd.Context()); err != nil {
		engine.Close()
		_ = client.Close()
		return nil, nil, err
	}

	log := o.logger(cmd)
	log.Debug().Str("redis", addr).Str("prefix", o.prefix).Msg("connected to ledger")
	return engine, func() {
		engine.Close()
		_ = client.Close()
	}, nil
}
