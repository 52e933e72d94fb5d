package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/pointstore/model"
)

// Loader fronts a Cache and deduplicates concurrent loads of the same key.
//
// A shared load runs under its own context, which is canceled only once every
// caller waiting on it has gone away. A caller that gives up returns its own
// ctx.Err() without affecting the others.
type Loader struct {
	cache Cache
	group singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

type flight struct {
	ctx    context.Context
	cancel context.CancelFunc
	refs   int
}

// NewLoader wraps c. A nil cache disables caching but keeps deduplication.
func NewLoader(c Cache) *Loader {
	return &Loader{cache: c, flights: make(map[string]*flight)}
}

// Cache returns the wrapped cache, which may be nil.
func (l *Loader) Cache() Cache { return l.cache }

// Load returns the cached points for key or calls fn once for all concurrent
// callers. fn receives the context of the shared load. hit reports whether
// the points came from the cache.
func (l *Loader) Load(ctx context.Context, key Key, fn func(context.Context) ([]model.Point, error)) (points []model.Point, hit bool, err error) {
	if l.cache != nil {
		if pts, ok := l.cache.Get(key); ok {
			return pts, true, nil
		}
	}
	fk := flightKey(key)
	f := l.join(ctx, fk)
	defer l.leave(fk, f)

	for {
		ch := l.group.DoChan(fk, func() (any, error) {
			pts, err := fn(f.ctx)
			if err != nil {
				return nil, err
			}
			if l.cache != nil {
				l.cache.Set(key, pts)
			}
			return pts, nil
		})
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case res := <-ch:
			if res.Err == nil {
				return res.Val.([]model.Point), false, nil
			}
			// A flight started by callers that have all left was canceled
			// under us; load again on behalf of the callers still waiting.
			if isCanceled(res.Err) && ctx.Err() == nil {
				continue
			}
			return nil, false, res.Err
		}
	}
}

func (l *Loader) join(ctx context.Context, fk string) *flight {
	l.mu.Lock()
	defer l.mu.Unlock()
	f := l.flights[fk]
	if f == nil {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		l.flights[fk] = f
	}
	f.refs++
	return f
}

func (l *Loader) leave(fk string, f *flight) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f.refs--
	if f.refs > 0 {
		return
	}
	f.cancel()
	if l.flights[fk] == f {
		delete(l.flights, fk)
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func flightKey(k Key) string {
	s := k.Dataset.String() + "/" + strconv.FormatUint(uint64(k.NodeID), 10)
	if k.CoordsOnly {
		s += "/c"
	}
	return s
}
