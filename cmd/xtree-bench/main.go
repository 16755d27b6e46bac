// xtree-bench stresses the lock-free ordered set with a configurable
// mixed workload and reports the tallies.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/benz9527/xtree/bench"
	"github.com/benz9527/xtree/lib/tree"
	"github.com/benz9527/xtree/observability"
)

func main() {
	var (
		goroutines = flag.Int("goroutines", 8, "concurrent workers")
		ops        = flag.Int("ops", 100000, "operations per worker")
		keySpace   = flag.Uint64("keyspace", 1<<16, "distinct key universe")
		preload    = flag.Int("preload", 1<<12, "keys inserted before the run")
		insertPct  = flag.Int("insert-pct", 40, "insert share of the mix, percent")
		removePct  = flag.Int("remove-pct", 30, "remove share of the mix, percent")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "workload seed")
		metrics    = flag.Bool("metrics", false, "export runtime metrics to stdout")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *metrics {
		shutdown, err := observability.NewConsoleMetricsExporter(5*time.Second, time.Second)
		if err != nil {
			logger.Fatal("metrics exporter setup", zap.Error(err))
		}
		defer func() { _ = shutdown(context.Background()) }()
		observability.InitRuntimeStats("xtree-bench")
	}

	set := tree.NewXConcBSTByOrder[uint64]()
	rep, err := bench.Run(ctx, bench.Config{
		Logger:     logger,
		Goroutines: *goroutines,
		OpsPerG:    *ops,
		KeySpace:   *keySpace,
		Preload:    *preload,
		InsertPct:  *insertPct,
		RemovePct:  *removePct,
		Seed:       *seed,
	}, set)
	if err != nil {
		logger.Fatal("bench run", zap.Error(err))
	}
	logger.Info("throughput",
		zap.Float64("mops", float64(rep.Total())/rep.Elapsed.Seconds()/1e6),
		zap.Int64("finalLen", set.Len()),
	)
}
