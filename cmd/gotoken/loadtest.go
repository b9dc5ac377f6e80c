package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type loadtestOptions struct {
	users       int
	concurrency int
	ops         int
}

func newLoadtestCmd(opts *rootOptions) *cobra.Command {
	lo := &loadtestOptions{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure validate, refresh and revoke throughput",
		Long: `Seeds one token pair per user, then runs three phases: access token
validation, refresh (which reads the blacklist) and revocation. Each phase
reports ops/sec and latency percentiles.

Without --redis-addr or REDIS_ADDR an in-process miniredis is used, which
measures the engine rather than the network.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if lo.users <= 0 || lo.concurrency <= 0 || lo.ops <= 0 {
				return errors.New("users, concurrency and ops must be > 0")
			}
			return runLoadtest(cmd, opts, lo)
		},
	}
	cmd.Flags().IntVar(&lo.users, "users", 10000, "number of users to seed")
	cmd.Flags().IntVar(&lo.concurrency, "concurrency", 128, "number of concurrent workers")
	cmd.Flags().IntVar(&lo.ops, "ops", 100000, "operations per phase")
	return cmd
}

func runLoadtest(cmd *cobra.Command, opts *rootOptions, lo *loadtestOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	log := opts.logger(cmd)

	addr := opts.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		log.Info().Str("addr", addr).Msg("using miniredis")
	} else {
		cleanup = func() {}
		log.Info().Str("addr", addr).Msg("using redis")
	}
	defer cleanup()

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	cfg := goToken.DefaultConfig()
	cfg.Ledger.Prefix = opts.prefix
	cfg.JWT.Algorithm = opts.algorithm
	key, err := opts.signingKey()
	if err != nil {
		key = []byte("loadtest-secret-" + strconv.FormatInt(time.Now().UnixNano(), 36))
	}
	cfg.JWT.SigningKey = key
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := goToken.New().WithConfig(cfg).WithRedis(client).WithLogger(log).Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	log.Info().Int("users", lo.users).Msg("seeding token pairs")
	startSeed := time.Now()
	pairs := make([]goToken.TokenPair, lo.users)
	for i := range pairs {
		pairs[i], err = engine.ObtainPair(ctx, "user-"+strconv.Itoa(i))
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	log.Info().Dur("took", time.Since(startSeed).Round(time.Millisecond)).Msg("seeded")

	validate := runPhase(lo.ops, lo.concurrency, 7919, func(r *rand.Rand, _ int) error {
		_, err := engine.ValidateToken(ctx, pairs[r.Intn(len(pairs))].Access)
		return err
	})
	refresh := runPhase(lo.ops, lo.concurrency, 6151, func(r *rand.Rand, _ int) error {
		_, err := engine.RefreshPair(ctx, pairs[r.Intn(len(pairs))].Refresh)
		return err
	})
	// Each pair is revoked once; later ops hit the idempotent path.
	revoke := runPhase(lo.ops, lo.concurrency, 4099, func(_ *rand.Rand, i int) error {
		_, err := engine.Revoke(ctx, pairs[i%len(pairs)].Refresh)
		return err
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "validate", validate)
	printStats(out, "refresh", refresh)
	printStats(out, "revoke", revoke)
	return nil
}

// runPhase runs ops calls of op across concurrency workers.
func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil && !errors.Is(err, context.Canceled) {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
