package watch

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/domain"
)

func TestHubKeepsLatest(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("m1")
	defer cancel()

	h.Publish(domain.MatchSnapshot{ID: "m1", Turn: "red"})
	h.Publish(domain.MatchSnapshot{ID: "m1", Turn: "black"})
	h.Publish(domain.MatchSnapshot{ID: "other", Turn: "red"})

	select {
	case s := <-ch:
		if s.Turn != "black" {
			t.Fatalf("got stale snapshot %q", s.Turn)
		}
	default:
		t.Fatalf("no snapshot delivered")
	}
	select {
	case s := <-ch:
		t.Fatalf("unexpected extra snapshot %+v", s)
	default:
	}

	cancel()
	cancel()
	if n := h.Subscribers("m1"); n != 0 {
		t.Fatalf("subscribers after cancel = %d", n)
	}
}

func TestWatcherReceivesSnapshots(t *testing.T) {
	hub := NewHub()
	load := func(_ context.Context, id string) (domain.MatchSnapshot, error) {
		if id != "m1" {
			return domain.MatchSnapshot{}, errors.New("match not found")
		}
		return domain.MatchSnapshot{ID: id, Turn: "red"}, nil
	}
	srv := httptest.NewServer(NewHandler(hub, load))
	defer srv.Close()

	got := make(chan domain.MatchSnapshot, 4)
	w := NewWatcher("ws"+strings.TrimPrefix(srv.URL, "http")+"/watch/m1", 0, 0)
	w.OnSnapshot(func(s domain.MatchSnapshot) { got <- s })
	if err := w.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if w.State() != StateConnected {
		t.Fatalf("state = %s", w.State())
	}

	first := waitSnapshot(t, got)
	if first.Turn != "red" {
		t.Fatalf("initial snapshot = %+v", first)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("m1") == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	hub.Publish(domain.MatchSnapshot{ID: "m1", Turn: "black", Moves: []string{"h2e2"}})
	next := waitSnapshot(t, got)
	if next.Turn != "black" || len(next.Moves) != 1 {
		t.Fatalf("update = %+v", next)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestWatchUnknownMatch(t *testing.T) {
	srv := httptest.NewServer(NewHandler(NewHub(), func(context.Context, string) (domain.MatchSnapshot, error) {
		return domain.MatchSnapshot{}, errors.New("match not found")
	}))
	defer srv.Close()

	w := NewWatcher("ws"+strings.TrimPrefix(srv.URL, "http")+"/watch/nope", 0, 0)
	if err := w.Connect(context.Background()); err == nil {
		t.Fatalf("expected dial failure for unknown match")
	}
	if w.State() != StateFailed {
		t.Fatalf("state = %s", w.State())
	}
}

func waitSnapshot(t *testing.T, ch <-chan domain.MatchSnapshot) domain.MatchSnapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(3 * time.Second):
		t.Fatalf("no snapshot within timeout")
		return domain.MatchSnapshot{}
	}
}
