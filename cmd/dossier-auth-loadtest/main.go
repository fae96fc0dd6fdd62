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

	"github.com/alicebob/miniredis/v2"
	"github.com/dossier-crm/teamauth"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// account is one seeded user. mu serializes refreshes so each worker rotates the
// latest token instead of racing on a consumed one.
type account struct {
	access  string
	refresh string
	mu      sync.Mutex
}

func main() {
	var (
		users       = flag.Int("users", 2000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase")
		dsn         = flag.String("dsn", "", "postgres DSN; if empty, DATABASE_URL env or in-memory sqlite is used")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	db, closeDB, err := openDatabase(ctx, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer closeDB()

	client, closeRedis, err := openRedis(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open redis: %v\n", err)
		os.Exit(1)
	}
	defer closeRedis()

	cfg := teamauth.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("loadtest-access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("loadtest-refresh-secret-0123456789abcdef")
	cfg.Password.Cost = 4
	cfg.Audit.Enabled = false
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := teamauth.New().
		WithConfig(cfg).
		WithDatabase(db).
		WithRedis(client).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d accounts...\n", *users)
	startSeed := time.Now()
	accounts, err := seed(ctx, engine, *users, *concurrency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	jwtStats := runPhase(accounts, *ops, *concurrency, func(a *account) error {
		_, err := engine.ValidateAccess(ctx, a.access, teamauth.ModeJWTOnly)
		return err
	})
	strictStats := runPhase(accounts, *ops, *concurrency, func(a *account) error {
		_, err := engine.ValidateAccess(ctx, a.access, teamauth.ModeStrict)
		return err
	})
	refreshStats := runPhase(accounts, *ops, *concurrency, func(a *account) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		pair, err := engine.Refresh(ctx, a.refresh)
		if err != nil {
			return err
		}
		a.access, a.refresh = pair.AccessToken, pair.RefreshToken
		return nil
	})

	fmt.Println("---- results ----")
	printStats("validate/jwt-only", jwtStats)
	printStats("validate/strict", strictStats)
	printStats("refresh", refreshStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("refresh success=%d failure=%d\n",
		snap.Counters[teamauth.MetricRefreshSuccess],
		snap.Counters[teamauth.MetricRefreshFailure],
	)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func(), error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn != "" {
		db, err := teamauth.OpenPostgres(ctx, dsn, teamauth.DefaultPoolOptions())
		if err != nil {
			return nil, nil, err
		}
		if err := teamauth.Migrate(ctx, db); err != nil {
			return nil, nil, err
		}
		fmt.Println("using postgres")
		return db, func() { _ = teamauth.CloseDatabase(db) }, nil
	}

	db, err := gorm.Open(sqlite.Open("file:loadtest?mode=memory&cache=shared&_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := teamauth.Migrate(ctx, db); err != nil {
		return nil, nil, err
	}
	fmt.Println("using in-memory sqlite")
	return db, func() { _ = sqlDB.Close() }, nil
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func seed(ctx context.Context, engine *teamauth.Engine, users, concurrency int) ([]*account, error) {
	accounts := make([]*account, users)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range users {
		g.Go(func() error {
			resp, err := engine.Register(gctx, teamauth.RegisterRequest{
				Email:    fmt.Sprintf("load-%d@example.com", i),
				Password: "Loadtest-passw0rd",
				Name:     fmt.Sprintf("Load %d", i),
				TeamName: fmt.Sprintf("Team %d", i),
			})
			if err != nil {
				return fmt.Errorf("register %d: %w", i, err)
			}
			accounts[i] = &account{access: resp.Tokens.AccessToken, refresh: resp.Tokens.RefreshToken}
			return nil
		})
	}
	return accounts, g.Wait()
}

func runPhase(accounts []*account, ops, concurrency int, op func(*account) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := range concurrency {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				a := accounts[r.Intn(len(accounts))]
				t0 := time.Now()
				err := op(a)
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
	switch {
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
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
