package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/tuannm99/novabuf/internal/bufferpool"
	"github.com/tuannm99/novabuf/internal/config"
	"github.com/tuannm99/novabuf/internal/storage"
	"github.com/tuannm99/novabuf/internal/workload"
)

func main() {
	if err := run(); err != nil {
		slog.Error("novabuf", "err", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("novabuf", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	fresh := flags.Bool("fresh", false, "remove existing segment files before starting")
	flags.String("storage.mode", "", "storage mode: disk or memory")
	flags.String("storage.workdir", "", "directory holding segment files")
	flags.Int("bufferpool.pool_size", 0, "number of frames")
	flags.String("bufferpool.replacer", "", "replacement policy: lru or clock")
	flags.String("log.level", "", "debug, info, warn or error")
	flags.Int("workload.pages", 0, "pages to create")
	flags.Int("workload.workers", 0, "concurrent workers")
	flags.Int("workload.rounds", 0, "fetches per worker")
	_ = flags.Parse(os.Args[1:])

	v := config.New()
	// Only flags given on the command line override file and env values.
	flags.Visit(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})
	cfg, err := config.LoadConfig(v, *configPath)
	if err != nil {
		return err
	}

	level, _ := cfg.LogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	mode, _ := storage.GetStorageMode(cfg.Storage.Mode)
	lfs := storage.LocalFileSet{Dir: cfg.Storage.Workdir, Base: cfg.Storage.Base}
	if *fresh && mode == storage.Disk {
		if err := storage.RemoveAllSegments(lfs); err != nil {
			return fmt.Errorf("remove segments: %w", err)
		}
	}

	store, err := storage.Open(mode, lfs.Dir, lfs.Base)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("close store", "err", err)
		}
	}()

	repl, err := bufferpool.NewReplacer(cfg.BufferPool.Replacer, cfg.BufferPool.PoolSize)
	if err != nil {
		return err
	}
	pool := bufferpool.NewBufferPoolManagerWithReplacer(cfg.BufferPool.PoolSize, store, nil, repl)

	slog.Info("novabuf started",
		"mode", mode,
		"workdir", lfs.Dir,
		"frames", pool.PoolSize(),
		"memory", humanize.IBytes(uint64(pool.PoolSize())*storage.PageSize),
		"replacer", cfg.BufferPool.Replacer,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := workload.Run(ctx, pool, workload.Options{
		Pages:   cfg.Workload.Pages,
		Workers: cfg.Workload.Workers,
		Rounds:  cfg.Workload.Rounds,
		Seed:    uint64(os.Getpid()),
	})
	if err != nil {
		return err
	}

	// Run ends with FlushAll; make the written pages durable before reporting.
	if err := store.Sync(); err != nil {
		return fmt.Errorf("sync store: %w", err)
	}

	printResult(res)
	return nil
}

func printResult(res *workload.Result) {
	s := res.Stats
	ops := res.Reads + res.Writes
	fmt.Printf("pages:       %s (%s)\n", humanize.Comma(int64(len(res.PageIDs))),
		humanize.IBytes(uint64(len(res.PageIDs))*storage.PageSize))
	fmt.Printf("operations:  %s reads, %s writes in %s\n",
		humanize.Comma(int64(res.Reads)), humanize.Comma(int64(res.Writes)), res.Elapsed)
	if secs := res.Elapsed.Seconds(); secs > 0 {
		fmt.Printf("throughput:  %s ops/s\n", humanize.CommafWithDigits(float64(ops)/secs, 0))
	}
	fmt.Printf("hit rate:    %.2f%% (%s hits, %s misses)\n",
		100*s.HitRate(), humanize.Comma(int64(s.Hits)), humanize.Comma(int64(s.Misses)))
	fmt.Printf("evictions:   %s, write-backs: %s (%s)\n",
		humanize.Comma(int64(s.Evictions)), humanize.Comma(int64(s.WriteBacks)),
		humanize.IBytes(s.WriteBacks*storage.PageSize))
	fmt.Printf("frames:      %d total, %d free, %d resident\n", s.PoolSize, s.FreeFrames, s.Resident)
}
