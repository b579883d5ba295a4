package match

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/park285/Cheese-Xiangqi/internal/domain"
	"github.com/park285/Cheese-Xiangqi/internal/engine"
	"github.com/park285/Cheese-Xiangqi/internal/msgcat"
	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("match not found")

// SnapshotStore persists live matches. Load returns nil, nil for unknown ids.
type SnapshotStore interface {
	Save(ctx context.Context, snap *domain.MatchSnapshot) error
	Load(ctx context.Context, id string) (*domain.MatchSnapshot, error)
	Delete(ctx context.Context, id string) error
}

// Archive stores finished games.
type Archive interface {
	SaveGame(ctx context.Context, rec *domain.GameRecord) error
}

// EngineFactory starts a fresh engine session for one match.
type EngineFactory func() (Engine, error)

type ManagerConfig struct {
	Store      SnapshotStore
	Archive    Archive
	NewEngine  EngineFactory
	Catalog    *msgcat.Catalog
	Preset     engine.StrengthPreset
	// EngineSide is used when Create is called without a side.
	EngineSide xiangqi.Side
	// OnChange is called with every persisted snapshot, under the match lock.
	OnChange   func(domain.MatchSnapshot)
}

type entry struct {
	mu       sync.Mutex
	m        *Match
	archived bool
}

// Manager keeps live matches in memory, one lock per match, and mirrors every
// change to the snapshot store.
type Manager struct {
	cfg ManagerConfig

	mu      sync.Mutex
	matches map[string]*entry
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Preset.Name == "" {
		cfg.Preset, _ = engine.GetPreset("")
	}
	return &Manager{cfg: cfg, matches: make(map[string]*entry)}
}

// EngineAvailable reports whether engine matches can be created.
func (mg *Manager) EngineAvailable() bool { return mg.cfg.NewEngine != nil }

func (mg *Manager) startEngine() (Engine, error) {
	if mg.cfg.NewEngine == nil {
		return nil, ErrEngineUnavailable
	}
	eng, err := mg.cfg.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	return eng, nil
}

// Create starts a match and persists its first snapshot.
func (mg *Manager) Create(ctx context.Context, mode Mode, engineSide xiangqi.Side, preset string) (domain.MatchSnapshot, error) {
	if engineSide == 0 {
		engineSide = mg.cfg.EngineSide
	}
	opt := Options{
		Mode:       mode,
		EngineSide: engineSide,
		Preset:     mg.cfg.Preset,
		Catalog:    mg.cfg.Catalog,
	}
	if preset != "" {
		p, err := engine.GetPreset(preset)
		if err != nil {
			return domain.MatchSnapshot{}, err
		}
		opt.Preset = p
	}
	if mode == PlayerVsEngine {
		eng, err := mg.startEngine()
		if err != nil {
			return domain.MatchSnapshot{}, err
		}
		opt.Engine = eng
	}
	m, err := New(opt)
	if err != nil {
		if opt.Engine != nil {
			opt.Engine.Close()
		}
		return domain.MatchSnapshot{}, err
	}
	snap := m.Snapshot()
	if err := mg.save(ctx, &snap); err != nil {
		m.Close()
		return domain.MatchSnapshot{}, err
	}
	mg.mu.Lock()
	mg.matches[m.ID()] = &entry{m: m}
	mg.mu.Unlock()

	obslog.L().Info("match_create",
		zap.String("match_id", m.ID()),
		zap.String("mode", mode.String()),
		zap.String("engine_side", snap.EngineSide),
		zap.String("preset", opt.Preset.Name),
	)
	return snap, nil
}

func (mg *Manager) lookup(ctx context.Context, id string) (*entry, error) {
	mg.mu.Lock()
	e, ok := mg.matches[id]
	mg.mu.Unlock()
	if ok {
		return e, nil
	}
	if mg.cfg.Store == nil {
		return nil, ErrNotFound
	}
	snap, err := mg.cfg.Store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrNotFound
	}
	opt := Options{Catalog: mg.cfg.Catalog, Preset: mg.cfg.Preset}
	if snap.Mode == PlayerVsEngine.String() && snap.Status == xiangqi.InProgress.String() {
		if eng, err := mg.startEngine(); err == nil {
			opt.Engine = eng
		} else {
			obslog.L().Warn("match_restore_without_engine", zap.String("match_id", id), zap.Error(err))
		}
	}
	m, err := Restore(*snap, opt)
	if err != nil {
		if opt.Engine != nil {
			opt.Engine.Close()
		}
		return nil, fmt.Errorf("restore match %s: %w", id, err)
	}

	mg.mu.Lock()
	defer mg.mu.Unlock()
	if cur, ok := mg.matches[id]; ok {
		m.Close()
		return cur, nil
	}
	e = &entry{m: m, archived: snap.Status != xiangqi.InProgress.String()}
	mg.matches[id] = e
	obslog.L().Info("match_restore", zap.String("match_id", id), zap.Int("plies", len(snap.Moves)))
	return e, nil
}

// Do runs fn with exclusive access to the match, then persists the result.
// The snapshot is returned even when fn fails so callers can report state.
func (mg *Manager) Do(ctx context.Context, id string, fn func(*Match) error) (domain.MatchSnapshot, error) {
	e, err := mg.lookup(ctx, id)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ferr := fn(e.m)
	if e.m.EngineLost() {
		mg.replaceEngine(e.m)
	}
	snap := e.m.Snapshot()
	if err := mg.save(ctx, &snap); err != nil {
		return snap, err
	}
	mg.archiveIfFinished(ctx, e)
	return snap, ferr
}

// View returns the current snapshot without changing anything.
func (mg *Manager) View(ctx context.Context, id string) (domain.MatchSnapshot, error) {
	e, err := mg.lookup(ctx, id)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.m.Snapshot(), nil
}

// Inspect runs fn under the match lock without persisting.
func (mg *Manager) Inspect(ctx context.Context, id string, fn func(*Match)) error {
	e, err := mg.lookup(ctx, id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.m)
	return nil
}

// SetMode switches a match between two-player and engine play, starting an
// engine when needed.
func (mg *Manager) SetMode(ctx context.Context, id string, mode Mode, engineSide xiangqi.Side) (domain.MatchSnapshot, error) {
	return mg.Do(ctx, id, func(m *Match) error {
		var eng Engine
		if mode == PlayerVsEngine && !m.HasEngine() {
			started, err := mg.startEngine()
			if err != nil {
				return err
			}
			eng = started
		}
		return m.SetMode(mode, engineSide, eng)
	})
}

// Remove closes a match and deletes its snapshot.
func (mg *Manager) Remove(ctx context.Context, id string) error {
	mg.mu.Lock()
	e, ok := mg.matches[id]
	delete(mg.matches, id)
	mg.mu.Unlock()
	if ok {
		e.mu.Lock()
		e.m.Close()
		e.mu.Unlock()
	}
	if mg.cfg.Store != nil {
		return mg.cfg.Store.Delete(ctx, id)
	}
	return nil
}

// Close releases every engine. Snapshots stay in the store.
func (mg *Manager) Close() {
	mg.mu.Lock()
	entries := make([]*entry, 0, len(mg.matches))
	for _, e := range mg.matches {
		entries = append(entries, e)
	}
	mg.matches = make(map[string]*entry)
	mg.mu.Unlock()
	for _, e := range entries {
		e.mu.Lock()
		e.m.Close()
		e.mu.Unlock()
	}
}

func (mg *Manager) save(ctx context.Context, snap *domain.MatchSnapshot) error {
	if mg.cfg.Store != nil {
		if err := mg.cfg.Store.Save(ctx, snap); err != nil {
			return fmt.Errorf("save match %s: %w", snap.ID, err)
		}
	}
	if mg.cfg.OnChange != nil {
		mg.cfg.OnChange(*snap)
	}
	return nil
}

// replaceEngine attaches a fresh engine to a match whose engine died. When
// none can be started the match continues as two-player.
func (mg *Manager) replaceEngine(m *Match) {
	eng, err := mg.startEngine()
	if err != nil {
		obslog.L().Warn("match_engine_replace_failed", zap.String("match_id", m.ID()), zap.Error(err))
		_ = m.SetMode(PlayerVsPlayer, 0, nil)
		m.lastMessage = m.render("engine.unavailable", map[string]any{"Reason": err.Error()}, err.Error())
		return
	}
	if err := m.SetMode(PlayerVsEngine, 0, eng); err != nil {
		eng.Close()
		return
	}
	obslog.L().Info("match_engine_replaced", zap.String("match_id", m.ID()))
}

func (mg *Manager) archiveIfFinished(ctx context.Context, e *entry) {
	if e.archived {
		if e.m.Game().Status == xiangqi.InProgress {
			// an undo reopened the game
			e.archived = false
		}
		return
	}
	rec, ok := e.m.Record()
	if !ok {
		return
	}
	e.archived = true
	if mg.cfg.Archive == nil {
		return
	}
	if err := mg.cfg.Archive.SaveGame(ctx, &rec); err != nil {
		obslog.L().Warn("match_archive_failed", zap.String("match_id", rec.MatchUUID), zap.Error(err))
		return
	}
	obslog.L().Info("match_archived",
		zap.String("match_id", rec.MatchUUID),
		zap.String("result", rec.Result),
		zap.String("method", rec.ResultMethod),
		zap.Int("plies", len(rec.Moves)),
	)
}
