package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/authdb"
	"github.com/MrEthical07/authdb/permission"
)

type userState struct {
	name string
	sid  string
}

func main() {
	var (
		users       = flag.Int("users", 1000, "number of users to seed, each with one session")
		hot         = flag.Int("hot", 4, "users targeted by the racing update phase")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "authdb-load", "key prefix")
	)
	flag.Parse()

	if *users <= 0 || *hot <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, hot, concurrency, and ops must be > 0")
		os.Exit(2)
	}
	if *hot > *users {
		*hot = *users
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := authdb.DefaultConfig()
	cfg.Keys.Prefix = *prefix
	cfg.Password.Iterations = 1000
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	db, err := authdb.New().WithConfig(cfg).WithRedis(client).WithLogger(log).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if _, err := db.Roles.Create(ctx, authdb.RoleInput{
		Name: "member",
		ACL:  []permission.Rule{{Resource: "posts", Methods: []string{"GET"}}},
	}); err != nil && !errors.Is(err, authdb.ErrRoleExists) {
		fmt.Fprintf(os.Stderr, "seed role failed: %v\n", err)
		os.Exit(1)
	}

	states := make([]userState, *users)
	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	for i := 0; i < *users; i++ {
		name := "user-" + strconv.Itoa(i)
		_, err := db.Users.Create(ctx, authdb.UserInput{
			Username: name,
			Password: "load-test-password",
			Roles:    []string{"member"},
		})
		if err != nil && !errors.Is(err, authdb.ErrUsernameTaken) {
			fmt.Fprintf(os.Stderr, "seed user failed: %v\n", err)
			os.Exit(1)
		}
		sess, err := db.Sessions.Create(ctx, name, nil, time.Hour)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed session failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = userState{name: name, sid: sess.ID}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		s := states[r.Intn(len(states))]
		return db.Sessions.Validate(ctx, s.name, s.sid, 0)
	})
	permissionStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		_, err := db.Roles.HasPermission(ctx, []string{"member"}, "posts", "GET")
		return err
	})
	updateStats := runPhase(*ops, *concurrency, func(r *rand.Rand, i int) error {
		s := states[r.Intn(*hot)]
		_, err := db.Users.Update(ctx, authdb.UserPatch{
			Profile: map[string]string{"counter": strconv.Itoa(i)},
		}, s.name)
		return err
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("permission", permissionStats)
	printStats("update", updateStats)

	snap := db.MetricsSnapshot()
	fmt.Printf("racing updates: committed=%d lock_conflicts=%d\n",
		snap.Counters[authdb.MetricUserUpdated], snap.Counters[authdb.MetricLockConflict])
}

// runPhase spreads ops calls of op across concurrency workers. Lock conflicts
// are counted apart from other failures; nothing is retried.
func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		conflicts int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				switch {
				case err == nil:
				case errors.Is(err, authdb.ErrLockConflict):
					atomic.AddInt64(&conflicts, 1)
				default:
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
	s := computeStats(total, latencies, failures)
	s.conflicts = conflicts
	return s
}

type phaseStats struct {
	total     time.Duration
	ops       int
	failures  int64
	conflicts int64
	p50       time.Duration
	p95       time.Duration
	p99       time.Duration
	opsPerS   float64
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
	fmt.Printf("%s: ops=%d failures=%d conflicts=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.conflicts,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
