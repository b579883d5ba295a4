package ucci

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	"go.uber.org/zap"
)

// ErrBusy is returned by RequestMove when a previous request is still queued.
var ErrBusy = errors.New("engine busy")

// MoveRequest is one search job. Moves is the space separated history in
// square notation; zero Depth, MoveTime or Elo leave that limit unset.
type MoveRequest struct {
	Moves    string
	Depth    int
	MoveTime time.Duration
	Elo      int
}

func (req MoveRequest) Limits() Limits {
	return Limits{Depth: req.Depth, MoveTime: req.MoveTime}
}

// Result is the outcome of one MoveRequest.
type Result struct {
	Move string
	Err  error
}

// Handle owns a worker goroutine that owns the engine process. Callers only
// enqueue requests and poll results; neither call blocks.
type Handle struct {
	requests chan MoveRequest
	results  chan Result
	cancel   context.CancelFunc
	done     chan struct{}

	closeOnce sync.Once
}

// NewHandle starts the engine and blocks until the handshake finishes. On
// failure the worker has already exited when the error is returned.
func NewHandle(path string, opt Options) (*Handle, error) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		requests: make(chan MoveRequest, 1),
		results:  make(chan Result, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	initErr := make(chan error, 1)
	go h.run(ctx, path, opt, initErr)

	if err := <-initErr; err != nil {
		cancel()
		<-h.done
		return nil, err
	}
	return h, nil
}

func (h *Handle) run(ctx context.Context, path string, opt Options, initErr chan<- error) {
	defer close(h.done)

	client, err := Start(path, opt)
	if err != nil {
		initErr <- err
		return
	}
	defer client.Close()

	if err := client.Handshake(ctx); err != nil {
		obslog.L().Warn("engine_handshake_failed", zap.String("path", path), zap.Error(err))
		initErr <- err
		return
	}
	initErr <- nil
	obslog.L().Info("engine_ready", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-h.requests:
			started := time.Now()
			move, err := client.BestMove(ctx, req)
			if err != nil {
				obslog.L().Warn("engine_search_failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
			} else {
				obslog.L().Debug("engine_bestmove", zap.String("move", move), zap.Duration("elapsed", time.Since(started)))
			}
			select {
			case h.results <- Result{Move: move, Err: err}:
			case <-ctx.Done():
				return
			}
			if errors.Is(err, ErrClosed) || errors.Is(err, ErrWrite) {
				// the process is gone; later requests fail fast with ErrClosed
				obslog.L().Warn("engine_lost", zap.String("path", path), zap.Error(err))
				return
			}
		}
	}
}

// RequestMove enqueues req without waiting. Only one request may be
// outstanding; the result must be consumed before the next request. After the
// engine process has died it returns ErrClosed.
func (h *Handle) RequestMove(req MoveRequest) error {
	select {
	case <-h.done:
		return ErrClosed
	default:
	}
	select {
	case h.requests <- req:
		return nil
	default:
		return ErrBusy
	}
}

// TryResult returns the next result if one is ready.
func (h *Handle) TryResult() (Result, bool) {
	select {
	case r := <-h.results:
		return r, true
	default:
		return Result{}, false
	}
}

// Close stops the worker and tears down the engine process. A search in
// flight is abandoned.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		h.cancel()
		<-h.done
	})
}
