package ucci

import (
	"errors"
	"runtime"
	"testing"
	"time"
)

func waitResult(t *testing.T, h *Handle, within time.Duration) Result {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if r, ok := h.TryResult(); ok {
			return r
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no result within %s", within)
	return Result{}
}

func TestHandleRequestAndPoll(t *testing.T) {
	fe := newFakeEngine(t, modeNormal, "FAKE_ENGINE_BESTMOVE=h7e7")
	h, err := NewHandle(fe.path, fe.opt)
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}
	defer h.Close()

	if _, ok := h.TryResult(); ok {
		t.Fatalf("result before any request")
	}
	if err := h.RequestMove(MoveRequest{Moves: "h2e2", Depth: 10, MoveTime: time.Second}); err != nil {
		t.Fatalf("request: %v", err)
	}
	r := waitResult(t, h, 3*time.Second)
	if r.Err != nil || r.Move != "h7e7" {
		t.Fatalf("result = %+v", r)
	}

	// A second round on the same process.
	if err := h.RequestMove(MoveRequest{Moves: "h2e2 h7e7", Depth: 1}); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if r := waitResult(t, h, 3*time.Second); r.Err != nil {
		t.Fatalf("second result err: %v", r.Err)
	}
}

func TestHandleRequestDoesNotBlock(t *testing.T) {
	fe := newFakeEngine(t, modeSilentGo)
	h, err := NewHandle(fe.path, fe.opt)
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}
	defer h.Close()

	start := time.Now()
	if err := h.RequestMove(MoveRequest{Depth: 1}); err != nil {
		t.Fatalf("request: %v", err)
	}
	// Give the worker time to pick up the first request, then fill the queue.
	time.Sleep(100 * time.Millisecond)
	_ = h.RequestMove(MoveRequest{Depth: 1})
	if err := h.RequestMove(MoveRequest{Depth: 1}); !errors.Is(err, ErrBusy) {
		t.Fatalf("third request err = %v, want ErrBusy", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("RequestMove blocked for %s", time.Since(start))
	}
}

func TestHandleSearchTimeout(t *testing.T) {
	fe := newFakeEngine(t, modeSilentGo)
	fe.opt.SearchTimeout = 300 * time.Millisecond
	h, err := NewHandle(fe.path, fe.opt)
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}
	defer h.Close()

	start := time.Now()
	if err := h.RequestMove(MoveRequest{Depth: 1}); err != nil {
		t.Fatalf("request: %v", err)
	}
	r := waitResult(t, h, 3*time.Second)
	elapsed := time.Since(start)
	if !errors.Is(r.Err, ErrNotReady) {
		t.Fatalf("result err = %v, want ErrNotReady", r.Err)
	}
	if elapsed < fe.opt.SearchTimeout {
		t.Fatalf("timed out early after %s", elapsed)
	}
	if elapsed > fe.opt.SearchTimeout+2*time.Second {
		t.Fatalf("timed out late after %s", elapsed)
	}
}

func TestHandleMissingBinary(t *testing.T) {
	before := runtime.NumGoroutine()
	h, err := NewHandle("/nonexistent/xiangqi-engine", Options{})
	if err == nil {
		h.Close()
		t.Fatalf("expected construction error")
	}
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("err = %v, want ErrSpawn", err)
	}
	time.Sleep(50 * time.Millisecond)
	if after := runtime.NumGoroutine(); after > before {
		t.Fatalf("goroutines leaked: before %d after %d", before, after)
	}
}

func TestHandleHandshakeFailure(t *testing.T) {
	fe := newFakeEngine(t, modeNoUCIOK)
	fe.opt.HandshakeTimeout = 200 * time.Millisecond
	h, err := NewHandle(fe.path, fe.opt)
	if err == nil {
		h.Close()
		t.Fatalf("expected handshake error")
	}
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}

func TestHandleClosed(t *testing.T) {
	fe := newFakeEngine(t, modeNormal)
	h, err := NewHandle(fe.path, fe.opt)
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}
	h.Close()
	h.Close()
	if err := h.RequestMove(MoveRequest{Depth: 1}); !errors.Is(err, ErrClosed) {
		t.Fatalf("request after close = %v, want ErrClosed", err)
	}
}

func TestHandleEngineDiesMidGame(t *testing.T) {
	fe := newFakeEngine(t, modeExitOnGo)
	h, err := NewHandle(fe.path, fe.opt)
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}
	defer h.Close()

	if err := h.RequestMove(MoveRequest{Depth: 1}); err != nil {
		t.Fatalf("request: %v", err)
	}
	r := waitResult(t, h, 3*time.Second)
	if !errors.Is(r.Err, ErrClosed) {
		t.Fatalf("result err = %v, want ErrClosed", r.Err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		err := h.RequestMove(MoveRequest{Depth: 1})
		if errors.Is(err, ErrClosed) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("request after engine exit = %v, want ErrClosed", err)
		}
		// a request that slipped in before the worker exited is never answered
		time.Sleep(10 * time.Millisecond)
	}
}
