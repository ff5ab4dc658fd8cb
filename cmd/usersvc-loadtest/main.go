// Command usersvc-loadtest drives concurrent resolve and login traffic
// through the engine against Redis (or miniredis when no address is given).
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
	"github.com/LeeSeungPhill/user-api-svc/password"
	"github.com/LeeSeungPhill/user-api-svc/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const seedPassword = "load-test-password"

func main() {
	var (
		accounts    = flag.Int("accounts", 1000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (resolve + login)")
		bcryptCost  = flag.Int("bcrypt-cost", 4, "bcrypt cost for seeded credentials")
		failRatio   = flag.Float64("fail-ratio", 0.1, "share of login attempts sent with a wrong password")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "usersvc-load", "key prefix")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	hasher, err := password.NewBcrypt(*bcryptCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hasher: %v\n", err)
		os.Exit(1)
	}

	cfg := usersvc.DefaultConfig()
	cfg.JWT.Secret = []byte("usersvc-loadtest-secret-0123456789abcdef")
	// Failures are spread across accounts; keep them from tripping locks.
	cfg.Lockout.Enabled = false

	engine, err := usersvc.New().
		WithConfig(cfg).
		WithAccountStore(redisstore.New(client, *prefix)).
		WithHasher(hasher).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build: %v\n", err)
		os.Exit(1)
	}

	tokens := make([]string, *accounts)
	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()
	for i := range tokens {
		acctNo := int64(i + 1)
		_, err := engine.Register(ctx, usersvc.RegisterRequest{
			AcctNo:   acctNo,
			NickName: fmt.Sprintf("load-%d", acctNo),
			TelNo:    "010-0000-0000",
			Password: seedPassword,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "register %d failed: %v\n", acctNo, err)
			os.Exit(1)
		}
		pair, err := engine.AttemptLogin(ctx, acctNo, seedPassword, "loadtest")
		if err != nil {
			fmt.Fprintf(os.Stderr, "login %d failed: %v\n", acctNo, err)
			os.Exit(1)
		}
		tokens[i] = pair.AccessToken
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	// Resolve runs first: logins rebind fingerprints and revoke the seeded tokens.
	resolveStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) error {
		_, err := engine.ResolveCurrentAccount(ctx, tokens[r.Intn(len(tokens))])
		return err
	})
	loginStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand) error {
		acctNo := int64(r.Intn(len(tokens)) + 1)
		if r.Float64() < *failRatio {
			_, err := engine.AttemptLogin(ctx, acctNo, "wrong-password", "loadtest")
			if err == nil {
				return fmt.Errorf("wrong password accepted for %d", acctNo)
			}
			return nil
		}
		_, err := engine.AttemptLogin(ctx, acctNo, seedPassword, "loadtest")
		return err
	})

	fmt.Println("---- results ----")
	printStats("resolve", resolveStats)
	printStats("login", loginStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("counters: login_success=%d login_failure=%d resolve_success=%d resolve_failure=%d\n",
		snap.Counters[usersvc.MetricLoginSuccess],
		snap.Counters[usersvc.MetricLoginFailure],
		snap.Counters[usersvc.MetricResolveSuccess],
		snap.Counters[usersvc.MetricResolveFailure],
	)
}

func runPhase(ops, concurrency int, seedStep int64, op func(r *rand.Rand) error) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seedStep))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
