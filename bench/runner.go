// Package bench drives concurrent mixed workloads against a
// ConcurrentOrderedSet. It is a plain caller of the set's public
// contract, useful for contention experiments and as a coarse
// correctness audit: every counted success moves the set size by
// exactly one, so the report must reconcile with the final Len.
package bench

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xtree/lib/infra"
	"github.com/benz9527/xtree/lib/tree"
)

// Config shapes one run. Percentages are out of 100, the remainder of
// the mix is Contains.
type Config struct {
	Logger     *zap.Logger
	Goroutines int
	OpsPerG    int
	KeySpace   uint64 // keys are drawn from [0, KeySpace), at most MaxInt32
	Preload    int    // distinct keys inserted before the clock starts
	InsertPct  int
	RemovePct  int
	Seed       int64
}

func (cfg *Config) validate() error {
	switch {
	case cfg.Goroutines <= 0:
		return infra.NewErrorStack("[bench] goroutines must be positive")
	case cfg.OpsPerG <= 0:
		return infra.NewErrorStack("[bench] ops per goroutine must be positive")
	case cfg.KeySpace == 0:
		return infra.NewErrorStack("[bench] key space must not be empty")
	// Drawn keys pass through int and int64, keep the universe inside
	// both on every platform.
	case cfg.KeySpace > uint64(math.MaxInt32):
		return infra.NewErrorStack("[bench] key space too large")
	case cfg.Preload < 0 || uint64(cfg.Preload) > cfg.KeySpace:
		return infra.NewErrorStack("[bench] preload out of key space")
	case cfg.InsertPct < 0 || cfg.RemovePct < 0 || cfg.InsertPct+cfg.RemovePct > 100:
		return infra.NewErrorStack("[bench] op mix percentages out of range")
	}
	return nil
}

// Report tallies one run. When the context stays alive the six counters
// sum to Goroutines*OpsPerG; cancellation cuts workers short.
type Report struct {
	Inserted, Rejected int64
	Removed, Missed    int64
	Hit, Absent        int64
	Elapsed            time.Duration
}

func (r *Report) Total() int64 {
	return r.Inserted + r.Rejected + r.Removed + r.Missed + r.Hit + r.Absent
}

// Run preloads the set, then hammers it from a goroutine pool with a
// deterministic per-worker op stream.
func Run(ctx context.Context, cfg Config, set tree.ConcurrentOrderedSet[uint64]) (*Report, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	keys := lo.Shuffle(lo.Range(int(cfg.KeySpace)))
	for _, k := range keys[:cfg.Preload] {
		set.Insert(uint64(k))
	}

	pool, err := ants.NewPool(cfg.Goroutines)
	if err != nil {
		return nil, infra.WrapErrorStack(err, "[bench] pool setup")
	}
	defer pool.Release()

	var (
		rep  Report
		wg   sync.WaitGroup
		errs error
	)
	start := time.Now()
	for g := 0; g < cfg.Goroutines; g++ {
		seed := cfg.Seed + int64(g)
		wg.Add(1)
		if submitErr := pool.Submit(func() {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < cfg.OpsPerG; i++ {
				select {
				case <-ctx.Done():
					return
				default:
				}
				k := uint64(rng.Int63n(int64(cfg.KeySpace)))
				switch pick := rng.Intn(100); {
				case pick < cfg.InsertPct:
					if set.Insert(k) {
						atomic.AddInt64(&rep.Inserted, 1)
					} else {
						atomic.AddInt64(&rep.Rejected, 1)
					}
				case pick < cfg.InsertPct+cfg.RemovePct:
					if _, ok := set.Remove(k); ok {
						atomic.AddInt64(&rep.Removed, 1)
					} else {
						atomic.AddInt64(&rep.Missed, 1)
					}
				default:
					if set.Contains(k) {
						atomic.AddInt64(&rep.Hit, 1)
					} else {
						atomic.AddInt64(&rep.Absent, 1)
					}
				}
			}
		}); submitErr != nil {
			wg.Done()
			errs = multierr.Append(errs, submitErr)
		}
	}
	wg.Wait()
	rep.Elapsed = time.Since(start)
	if errs != nil {
		return nil, infra.WrapErrorStack(errs, "[bench] worker submission")
	}

	logger.Info("bench run finished",
		zap.Duration("elapsed", rep.Elapsed),
		zap.Int64("inserted", rep.Inserted),
		zap.Int64("rejected", rep.Rejected),
		zap.Int64("removed", rep.Removed),
		zap.Int64("missed", rep.Missed),
		zap.Int64("hit", rep.Hit),
		zap.Int64("absent", rep.Absent),
		zap.Int64("finalLen", set.Len()),
	)
	return &rep, nil
}
