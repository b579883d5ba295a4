package match

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/park285/Cheese-Xiangqi/internal/domain"
	"github.com/park285/Cheese-Xiangqi/internal/engine"
	"github.com/park285/Cheese-Xiangqi/internal/engine/ucci"
	"github.com/park285/Cheese-Xiangqi/internal/msgcat"
	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"go.uber.org/zap"
)

var (
	ErrGameOver          = errors.New("game over")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrEngineThinking    = errors.New("engine is thinking")
	ErrEngineUnavailable = errors.New("engine unavailable")
)

// Engine is the part of a ucci.Handle a match needs.
type Engine interface {
	RequestMove(req ucci.MoveRequest) error
	TryResult() (ucci.Result, bool)
	Close()
}

type Mode uint8

const (
	PlayerVsPlayer Mode = iota
	PlayerVsEngine
)

func (m Mode) String() string {
	if m == PlayerVsEngine {
		return "pve"
	}
	return "pvp"
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pvp", "player_vs_player":
		return PlayerVsPlayer, nil
	case "pve", "ai", "player_vs_engine":
		return PlayerVsEngine, nil
	}
	return PlayerVsPlayer, fmt.Errorf("unknown mode: %s", s)
}

// Event is one applied or rejected move, with the rendered popup message.
type Event struct {
	Move     xiangqi.Move
	Side     xiangqi.Side
	Result   xiangqi.MoveResult
	ByEngine bool
	Message  string
}

type Options struct {
	ID         string
	Mode       Mode
	EngineSide xiangqi.Side
	Preset     engine.StrengthPreset
	Engine     Engine
	Catalog    *msgcat.Catalog
	Now        func() time.Time
}

// Match is one game plus its engine delegation. It is not safe for concurrent
// use; Manager serializes access.
type Match struct {
	id         string
	mode       Mode
	engineSide xiangqi.Side
	preset     engine.StrengthPreset
	eng        Engine
	cat        *msgcat.Catalog
	now        func() time.Time

	game    *xiangqi.GameState
	pending bool
	// results still owed by the engine for requests that were abandoned
	stale int

	lastMessage  string
	engineMoves  int
	engineErrors int
	startedAt    time.Time
	updatedAt    time.Time
}

func New(opt Options) (*Match, error) {
	if opt.ID == "" {
		opt.ID = uuid.NewString()
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.EngineSide == 0 {
		opt.EngineSide = xiangqi.Black
	}
	if opt.Preset.Name == "" {
		p, err := engine.GetPreset("")
		if err != nil {
			return nil, err
		}
		opt.Preset = p
	}
	if opt.Mode == PlayerVsEngine && opt.Engine == nil {
		return nil, ErrEngineUnavailable
	}
	now := opt.Now()
	m := &Match{
		id:         opt.ID,
		mode:       opt.Mode,
		engineSide: opt.EngineSide,
		preset:     opt.Preset,
		eng:        opt.Engine,
		cat:        opt.Catalog,
		now:        opt.Now,
		game:       xiangqi.NewGameState(),
		startedAt:  now,
		updatedAt:  now,
	}
	m.lastMessage = m.render("game.new", map[string]any{"Side": m.game.Turn.String()}, "")
	return m, nil
}

func (m *Match) ID() string { return m.id }

func (m *Match) Mode() Mode { return m.mode }

func (m *Match) EngineSide() xiangqi.Side { return m.engineSide }

func (m *Match) Game() *xiangqi.GameState { return m.game }

func (m *Match) Pending() bool { return m.pending }

func (m *Match) LastMessage() string { return m.lastMessage }

func (m *Match) Preset() engine.StrengthPreset { return m.preset }

func (m *Match) enginesTurn() bool {
	return m.mode == PlayerVsEngine && m.game.Status == xiangqi.InProgress && m.game.Turn == m.engineSide
}

// Play applies a human move. An illegal move is reported through the event
// result, not as an error.
func (m *Match) Play(from, to xiangqi.Square) (Event, error) {
	if m.game.Status != xiangqi.InProgress {
		return Event{}, ErrGameOver
	}
	if m.pending {
		return Event{}, ErrEngineThinking
	}
	if m.enginesTurn() {
		return Event{}, ErrNotYourTurn
	}
	return m.apply(xiangqi.Move{From: from, To: to}, false), nil
}

// Click routes a board click through the selection flow. It returns an event
// only when the click completed a move.
func (m *Match) Click(sq xiangqi.Square) (Event, bool, error) {
	if m.game.Status != xiangqi.InProgress {
		return Event{}, false, ErrGameOver
	}
	if m.pending || m.enginesTurn() {
		return Event{}, false, ErrNotYourTurn
	}
	side := m.game.Turn
	from := m.game.Selected
	res := m.game.Select(sq)
	if !res.Accepted() {
		return Event{}, false, nil
	}
	ev := m.finish(xiangqi.Move{From: *from, To: sq}, side, res, false)
	return ev, true, nil
}

// Poll drives the engine side. It sends a request when the engine is to move
// and none is outstanding, and applies a finished result through the same
// validation as human moves. It never blocks.
func (m *Match) Poll() (Event, bool) {
	if m.eng == nil {
		return Event{}, false
	}
	if m.stale > 0 {
		if _, ok := m.eng.TryResult(); ok {
			m.stale--
		}
		return Event{}, false
	}
	if !m.enginesTurn() {
		return Event{}, false
	}
	if !m.pending {
		req := m.preset.Request(m.game.HistoryNotation())
		if err := m.eng.RequestMove(req); err != nil {
			m.engineErrors++
			m.lastMessage = m.render("engine.error", map[string]any{"Reason": err.Error()}, err.Error())
			obslog.L().Warn("match_engine_request_failed", zap.String("match_id", m.id), zap.Error(err))
			m.dropDeadEngine(err)
			return Event{}, false
		}
		m.pending = true
		m.lastMessage = m.render("engine.thinking", nil, "")
		return Event{}, false
	}

	res, ok := m.eng.TryResult()
	if !ok {
		return Event{}, false
	}
	m.pending = false
	if res.Err != nil {
		m.engineErrors++
		m.lastMessage = m.render("engine.error", map[string]any{"Reason": res.Err.Error()}, res.Err.Error())
		obslog.L().Warn("match_engine_failed", zap.String("match_id", m.id), zap.Error(res.Err))
		m.dropDeadEngine(res.Err)
		return Event{}, false
	}
	mv, err := xiangqi.NotationToMove(res.Move)
	if err != nil {
		m.engineErrors++
		m.lastMessage = m.render("engine.dropped", map[string]any{"Token": res.Move}, "")
		obslog.L().Warn("match_engine_bad_token", zap.String("match_id", m.id), zap.String("token", res.Move))
		return Event{}, false
	}
	ev := m.apply(mv, true)
	if !ev.Result.Accepted() {
		m.engineErrors++
		obslog.L().Warn("match_engine_illegal_move", zap.String("match_id", m.id), zap.String("move", res.Move))
		return ev, false
	}
	m.engineMoves++
	return ev, true
}

func (m *Match) apply(mv xiangqi.Move, byEngine bool) Event {
	side := m.game.Turn
	res := m.game.MakeMove(mv.From, mv.To)
	return m.finish(mv, side, res, byEngine)
}

func (m *Match) finish(mv xiangqi.Move, side xiangqi.Side, res xiangqi.MoveResult, byEngine bool) Event {
	ev := Event{Move: mv, Side: side, Result: res, ByEngine: byEngine}
	ev.Message = m.describe(ev)
	m.lastMessage = ev.Message
	if res.Accepted() {
		m.updatedAt = m.now()
		obslog.L().Debug("match_move",
			zap.String("match_id", m.id),
			zap.String("move", mv.String()),
			zap.String("side", side.String()),
			zap.String("result", res.Kind.String()),
			zap.Bool("engine", byEngine),
		)
	}
	if res.Terminal() {
		obslog.L().Info("match_finished",
			zap.String("match_id", m.id),
			zap.String("status", m.game.Status.String()),
			zap.Int("plies", len(m.game.History)),
		)
	}
	return ev
}

// Undo takes back moves. Against the engine it removes the engine reply and
// the human move together so the human is to move again. An outstanding
// engine request is discarded.
func (m *Match) Undo() int {
	m.discardPending()
	n := 0
	if m.mode == PlayerVsEngine {
		if m.game.Turn == m.engineSide && len(m.game.History) > 0 {
			if m.game.UndoLastMove() {
				n = 1
			}
		} else {
			n = m.game.UndoLastTwoMoves()
		}
	} else if m.game.UndoLastMove() {
		n = 1
	}
	if n > 0 {
		m.updatedAt = m.now()
		m.lastMessage = m.render("game.undo", map[string]any{"Count": n}, "")
	}
	return n
}

// NewGame resets the board, keeping mode and engine.
func (m *Match) NewGame() {
	m.discardPending()
	m.game = xiangqi.NewGameState()
	m.engineMoves, m.engineErrors = 0, 0
	m.startedAt = m.now()
	m.updatedAt = m.startedAt
	m.lastMessage = m.render("game.new", map[string]any{"Side": m.game.Turn.String()}, "")
}

// SetMode switches between two-player and engine play. eng replaces the
// current engine when non-nil.
func (m *Match) SetMode(mode Mode, engineSide xiangqi.Side, eng Engine) error {
	if eng != nil && eng != m.eng {
		if m.eng != nil {
			m.eng.Close()
		}
		m.eng = eng
		m.pending = false
		m.stale = 0
	}
	if mode == PlayerVsEngine && m.eng == nil {
		return ErrEngineUnavailable
	}
	m.discardPending()
	m.mode = mode
	if engineSide != 0 {
		m.engineSide = engineSide
	}
	return nil
}

func (m *Match) SetPreset(p engine.StrengthPreset) error {
	if err := engine.ValidatePreset(p); err != nil {
		return err
	}
	m.preset = p
	return nil
}

// discardPending forgets the outstanding request. A search cannot be
// interrupted, so its result is counted as stale and dropped by Poll.
func (m *Match) discardPending() {
	if !m.pending {
		return
	}
	m.pending = false
	if m.eng == nil {
		return
	}
	if _, ok := m.eng.TryResult(); !ok {
		m.stale++
	}
}

// dropDeadEngine releases the engine when err shows its process is gone, so
// the owner can attach a fresh one.
func (m *Match) dropDeadEngine(err error) {
	if !errors.Is(err, ucci.ErrClosed) && !errors.Is(err, ucci.ErrWrite) {
		return
	}
	m.eng.Close()
	m.eng = nil
	m.pending = false
	m.stale = 0
	obslog.L().Warn("match_engine_lost", zap.String("match_id", m.id))
}

// EngineLost reports an engine match whose engine has been dropped.
func (m *Match) EngineLost() bool { return m.mode == PlayerVsEngine && m.eng == nil }

// Close releases the engine.
func (m *Match) Close() {
	if m.eng != nil {
		m.eng.Close()
		m.eng = nil
	}
	m.pending = false
	m.stale = 0
}

// HasEngine reports whether the match currently holds an engine.
func (m *Match) HasEngine() bool { return m.eng != nil }

func (m *Match) Snapshot() domain.MatchSnapshot {
	moves := make([]string, 0, len(m.game.History))
	for _, mv := range m.game.Moves() {
		moves = append(moves, xiangqi.MoveToNotation(mv))
	}
	s := domain.MatchSnapshot{
		ID:           m.id,
		Mode:         m.mode.String(),
		EnginePreset: m.preset.Name,
		Moves:        moves,
		FEN:          m.game.Board.FEN(),
		Turn:         m.game.Turn.String(),
		Status:       m.game.Status.String(),
		LastMessage:  m.lastMessage,
		EngineMoves:  m.engineMoves,
		EngineErrors: m.engineErrors,
		StartedAt:    m.startedAt,
		UpdatedAt:    m.updatedAt,
	}
	if m.mode == PlayerVsEngine {
		s.EngineSide = m.engineSide.String()
	}
	return s
}

// Restore rebuilds a match by replaying a snapshot's moves. opt supplies the
// engine and catalog; its ID and mode are taken from the snapshot.
func Restore(s domain.MatchSnapshot, opt Options) (*Match, error) {
	mode, err := ParseMode(s.Mode)
	if err != nil {
		return nil, err
	}
	opt.ID = s.ID
	opt.Mode = mode
	if s.EngineSide != "" {
		side, err := xiangqi.ParseSide(s.EngineSide)
		if err != nil {
			return nil, err
		}
		opt.EngineSide = side
	}
	if s.EnginePreset != "" {
		p, err := engine.GetPreset(s.EnginePreset)
		if err == nil {
			opt.Preset = p
		}
	}
	if mode == PlayerVsEngine && opt.Engine == nil {
		// Without an engine the game stays playable as two-player.
		opt.Mode = PlayerVsPlayer
	}
	m, err := New(opt)
	if err != nil {
		return nil, err
	}
	for i, tok := range s.Moves {
		mv, err := xiangqi.NotationToMove(tok)
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i+1, err)
		}
		if res := m.game.MakeMove(mv.From, mv.To); !res.Accepted() {
			return nil, fmt.Errorf("move %d: illegal %s", i+1, tok)
		}
	}
	m.lastMessage = s.LastMessage
	m.engineMoves = s.EngineMoves
	m.engineErrors = s.EngineErrors
	if !s.StartedAt.IsZero() {
		m.startedAt = s.StartedAt
	}
	if !s.UpdatedAt.IsZero() {
		m.updatedAt = s.UpdatedAt
	}
	return m, nil
}

// Record returns the archive row for a finished match.
func (m *Match) Record() (domain.GameRecord, bool) {
	if m.game.Status == xiangqi.InProgress {
		return domain.GameRecord{}, false
	}
	s := m.Snapshot()
	method := "checkmate"
	if xiangqi.IsStalemate(&m.game.Board, m.game.Turn) {
		method = "stalemate"
	}
	return domain.GameRecord{
		MatchUUID:    m.id,
		Mode:         s.Mode,
		EngineSide:   s.EngineSide,
		EnginePreset: s.EnginePreset,
		Result:       s.Status,
		ResultMethod: method,
		Moves:        s.Moves,
		FinalFEN:     s.FEN,
		StartedAt:    m.startedAt,
		EndedAt:      m.updatedAt,
		Duration:     m.updatedAt.Sub(m.startedAt),
		EngineMoves:  m.engineMoves,
		EngineErrors: m.engineErrors,
	}, true
}
