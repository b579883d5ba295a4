package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/domain"
)

func TestMemoryRepositoryUpsert(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	rec := &domain.GameRecord{MatchUUID: "m1", Result: "red_wins", Moves: []string{"h2e2"}}
	if err := repo.SaveGame(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.ID != 1 {
		t.Fatalf("id = %d", rec.ID)
	}
	again := &domain.GameRecord{MatchUUID: "m1", Result: "black_wins"}
	if err := repo.SaveGame(ctx, again); err != nil {
		t.Fatalf("save again: %v", err)
	}
	if again.ID != 1 {
		t.Fatalf("upsert changed id to %d", again.ID)
	}
	got, err := repo.GetGame(ctx, "m1")
	if err != nil || got.Result != "black_wins" {
		t.Fatalf("get = %+v %v", got, err)
	}
	if _, err := repo.GetGame(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}

func TestMemoryRepositoryRecent(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := repo.SaveGame(ctx, &domain.GameRecord{MatchUUID: id, EndedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	recent, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].MatchUUID != "c" || recent[1].MatchUUID != "b" {
		t.Fatalf("recent = %v, %v", recent[0].MatchUUID, recent[1].MatchUUID)
	}
}

func TestOpenRequiresURL(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty DATABASE_URL")
	}
}

func TestNormalizeMoves(t *testing.T) {
	if got := normalizeMoves(nil); got == nil || len(got) != 0 {
		t.Fatalf("nil moves should become an empty list")
	}
}
