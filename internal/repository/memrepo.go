package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/park285/Cheese-Xiangqi/internal/domain"
)

// memrepo is used when no database is configured.
type memrepo struct {
	mu     sync.RWMutex
	nextID int64
	games  map[string]*domain.GameRecord
}

func NewMemoryRepository() Repository {
	return &memrepo{games: make(map[string]*domain.GameRecord)}
}

func (m *memrepo) SaveGame(_ context.Context, rec *domain.GameRecord) error {
	if rec == nil {
		return fmt.Errorf("nil game record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	cp.Moves = append([]string{}, rec.Moves...)
	if prev, ok := m.games[rec.MatchUUID]; ok {
		cp.ID = prev.ID
	} else {
		m.nextID++
		cp.ID = m.nextID
	}
	m.games[rec.MatchUUID] = &cp
	rec.ID = cp.ID
	return nil
}

func (m *memrepo) GetGame(_ context.Context, matchUUID string) (*domain.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[matchUUID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memrepo) Recent(_ context.Context, limit int) ([]*domain.GameRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	out := make([]*domain.GameRecord, 0, len(m.games))
	for _, g := range m.games {
		cp := *g
		out = append(out, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EndedAt.Equal(out[j].EndedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].EndedAt.After(out[j].EndedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memrepo) Close() error { return nil }
