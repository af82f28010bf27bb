// Package gate bounds how many engine calls run at once and turns away
// requests that waited too long for a slot.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fmueller/voxserve/internal/transcript"
	"github.com/fmueller/voxserve/internal/whisper"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrUnavailable means the request was not admitted; callers may retry later.
	ErrUnavailable = errors.New("service unavailable")
	ErrClosed      = fmt.Errorf("%w: server is shutting down", ErrUnavailable)

	errWaitExceeded = fmt.Errorf("%w: timed out waiting for a free engine slot", ErrUnavailable)
)

type Options struct {
	// Capacity is the number of engine calls allowed to run at once.
	Capacity int
	// MaxWait bounds how long a request may queue for a slot. Negative
	// disables the bound.
	MaxWait time.Duration
	Logger  *zap.Logger
	Now     func() time.Time
}

type Stats struct {
	Capacity int   `json:"capacity"`
	InFlight int64 `json:"in_flight"`
	Waiting  int64 `json:"waiting"`
}

// Gate is created once at startup and shared by every request.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int
	maxWait  time.Duration
	logger   *zap.Logger
	now      func() time.Time

	closing context.Context
	close   context.CancelFunc

	inFlight atomic.Int64
	waiting  atomic.Int64
}

func New(opts Options) (*Gate, error) {
	if opts.Capacity <= 0 {
		return nil, fmt.Errorf("gate capacity must be positive, got %d", opts.Capacity)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	closing, closeFn := context.WithCancel(context.Background())
	return &Gate{
		sem:      semaphore.NewWeighted(int64(opts.Capacity)),
		capacity: opts.Capacity,
		maxWait:  opts.MaxWait,
		logger:   opts.Logger,
		now:      opts.Now,
		closing:  closing,
		close:    closeFn,
	}, nil
}

// Run waits for a slot and calls engine.Generate while holding it.
//
// A request that had to queue is checked again once it holds a slot and is
// rejected with ErrUnavailable if it waited longer than MaxWait; the engine
// is not called for it. The engine runs on its own goroutine and is never
// interrupted: if ctx ends first, Run returns ctx.Err() and the slot stays
// taken until the engine finishes.
func (g *Gate) Run(ctx context.Context, engine whisper.Engine, req whisper.Request) (transcript.Result, error) {
	enqueued := g.now()

	queued, err := g.acquire(ctx)
	if err != nil {
		return transcript.Result{}, err
	}

	if queued && g.maxWait >= 0 {
		if waited := g.now().Sub(enqueued); waited > g.maxWait {
			g.sem.Release(1)
			g.logger.Warn("rejecting stale request after slot acquisition", zap.Duration("waited", waited), zap.Duration("max_wait", g.maxWait))
			return transcript.Result{}, fmt.Errorf("%w: waited %s for a slot, client has likely abandoned the request", ErrUnavailable, waited.Round(time.Millisecond))
		}
	}

	type outcome struct {
		result transcript.Result
		err    error
	}
	done := make(chan outcome, 1)

	g.inFlight.Add(1)
	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out = outcome{err: fmt.Errorf("%w: engine panicked: %v", whisper.ErrEngine, r)}
			}
			g.inFlight.Add(-1)
			g.sem.Release(1)
			done <- out
		}()

		out.result, out.err = engine.Generate(context.WithoutCancel(ctx), req)
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		g.logger.Info("caller went away during inference; engine call continues", zap.Error(ctx.Err()))
		return transcript.Result{}, ctx.Err()
	}
}

// acquire takes one slot. queued reports whether the caller had to wait.
func (g *Gate) acquire(ctx context.Context) (queued bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if g.closing.Err() != nil {
		return false, ErrClosed
	}
	if g.sem.TryAcquire(1) {
		return false, nil
	}

	g.waiting.Add(1)
	defer g.waiting.Add(-1)

	waitCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stopClose := context.AfterFunc(g.closing, func() { cancel(ErrClosed) })
	defer stopClose()

	if g.maxWait >= 0 {
		timer := time.AfterFunc(g.maxWait, func() { cancel(errWaitExceeded) })
		defer timer.Stop()
	}

	if err := g.sem.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return true, ctxErr
		}
		if cause := context.Cause(waitCtx); cause != nil && errors.Is(cause, ErrUnavailable) {
			return true, cause
		}
		return true, err
	}

	return true, nil
}

// Stats is a point-in-time snapshot; the counters move independently.
func (g *Gate) Stats() Stats {
	return Stats{
		Capacity: g.capacity,
		InFlight: g.inFlight.Load(),
		Waiting:  g.waiting.Load(),
	}
}

// Close rejects current and future waiters. Engine calls already running are
// left to finish.
func (g *Gate) Close() {
	g.close()
}
