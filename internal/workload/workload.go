// Package workload drives a buffer pool with concurrent pin/unpin traffic and
// checks that every page reads back what was written to it.
package workload

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tuannm99/novabuf/internal/bufferpool"
	"github.com/tuannm99/novabuf/internal/storage"
)

// Page layout used by the workload.
const (
	offPageID  = 0 // uint32
	offCounter = 8 // uint64, bumped by every write
)

var ErrCorruptPage = errors.New("workload: page image mismatch")

type Options struct {
	Pages   int
	Workers int
	Rounds  int // fetches per worker
	Seed    uint64
}

type Result struct {
	PageIDs []storage.PageID
	Reads   uint64
	Writes  uint64
	Elapsed time.Duration
	Stats   bufferpool.Stats
}

// Run creates opts.Pages pages, then lets opts.Workers goroutines fetch,
// check and sometimes bump the counter of random pages. Worker w only touches
// pages at positions p with p % Workers == w, so no page is ever pinned by
// two workers at once.
func Run(ctx context.Context, pool *bufferpool.BufferPoolManager, opts Options) (*Result, error) {
	if opts.Workers <= 0 || opts.Pages < opts.Workers {
		return nil, fmt.Errorf("workload: need 0 < workers (%d) <= pages (%d)", opts.Workers, opts.Pages)
	}

	start := time.Now()
	ids, err := seed(pool, opts.Pages)
	if err != nil {
		return nil, err
	}
	slog.Info("workload: seeded pages", "pages", len(ids))

	reads := make([]uint64, opts.Workers)
	writes := make([]uint64, opts.Workers)
	expect := make([]uint64, len(ids))
	// UnpinPage overwrites the dirty flag, so once a page has been written
	// every later unpin of it must keep reporting it dirty.
	written := make([]bool, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	for w := range opts.Workers {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(opts.Seed, uint64(w)))
			owned := (len(ids) - w + opts.Workers - 1) / opts.Workers
			for range opts.Rounds {
				if err := ctx.Err(); err != nil {
					return err
				}
				pos := w + rng.IntN(owned)*opts.Workers
				write := rng.IntN(4) == 0
				if err := touch(pool, ids[pos], write, written[pos]); err != nil {
					return err
				}
				if write {
					written[pos] = true
					expect[pos]++
					writes[w]++
				} else {
					reads[w]++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := pool.FlushAll(); err != nil {
		return nil, err
	}
	if err := verify(pool, ids, expect); err != nil {
		return nil, err
	}

	res := &Result{PageIDs: ids, Elapsed: time.Since(start), Stats: pool.Stats()}
	for w := range opts.Workers {
		res.Reads += reads[w]
		res.Writes += writes[w]
	}
	return res, nil
}

func seed(pool *bufferpool.BufferPoolManager, n int) ([]storage.PageID, error) {
	ids := make([]storage.PageID, 0, n)
	for range n {
		id, f, err := pool.NewPage()
		if err != nil {
			return nil, fmt.Errorf("new page: %w", err)
		}
		binary.LittleEndian.PutUint32(f.Data()[offPageID:], uint32(id))
		if err := pool.UnpinPage(id, true); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, pool.FlushAll()
}

func touch(pool *bufferpool.BufferPoolManager, id storage.PageID, write, dirty bool) error {
	f, err := pool.FetchPage(id)
	if err != nil {
		return fmt.Errorf("fetch page %s: %w", id, err)
	}
	data := f.Data()
	if got := storage.PageID(binary.LittleEndian.Uint32(data[offPageID:])); got != id {
		_ = pool.UnpinPage(id, dirty)
		return fmt.Errorf("%w: page %s holds %s", ErrCorruptPage, id, got)
	}
	if write {
		n := binary.LittleEndian.Uint64(data[offCounter:])
		binary.LittleEndian.PutUint64(data[offCounter:], n+1)
	}
	return pool.UnpinPage(id, write || dirty)
}

func verify(pool *bufferpool.BufferPoolManager, ids []storage.PageID, expect []uint64) error {
	for i, id := range ids {
		f, err := pool.FetchPage(id)
		if err != nil {
			return fmt.Errorf("fetch page %s: %w", id, err)
		}
		got := binary.LittleEndian.Uint64(f.Data()[offCounter:])
		if err := pool.UnpinPage(id, false); err != nil {
			return err
		}
		if got != expect[i] {
			return fmt.Errorf("%w: page %s counter %d, want %d", ErrCorruptPage, id, got, expect[i])
		}
	}
	return nil
}
