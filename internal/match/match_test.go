package match

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/engine/ucci"
	"github.com/park285/Cheese-Xiangqi/internal/msgcat"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
)

// scriptedEngine answers requests from a fixed list of tokens. With hold set
// results are withheld until release is called.
type scriptedEngine struct {
	replies  []ucci.Result
	requests []ucci.MoveRequest
	ready    []ucci.Result
	hold     bool
	closed   bool
}

func (e *scriptedEngine) RequestMove(req ucci.MoveRequest) error {
	if e.closed {
		return ucci.ErrClosed
	}
	e.requests = append(e.requests, req)
	var r ucci.Result
	if len(e.replies) > 0 {
		r, e.replies = e.replies[0], e.replies[1:]
	} else {
		r = ucci.Result{Err: ucci.ErrNotReady}
	}
	e.ready = append(e.ready, r)
	return nil
}

func (e *scriptedEngine) TryResult() (ucci.Result, bool) {
	if e.hold || len(e.ready) == 0 {
		return ucci.Result{}, false
	}
	r := e.ready[0]
	e.ready = e.ready[1:]
	return r, true
}

func (e *scriptedEngine) Close() { e.closed = true }

func sq(t *testing.T, code string) xiangqi.Square {
	t.Helper()
	s, err := xiangqi.NotationToSquare(code)
	if err != nil {
		t.Fatalf("square %s: %v", code, err)
	}
	return s
}

func newCatalog(t *testing.T) *msgcat.Catalog {
	t.Helper()
	c, err := msgcat.New("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

// pollUntil calls Poll until an event is produced or n polls pass.
func pollUntil(m *Match, n int) (Event, bool) {
	for i := 0; i < n; i++ {
		if ev, ok := m.Poll(); ok {
			return ev, true
		}
	}
	return Event{}, false
}

func TestPlayerVsPlayerAlternates(t *testing.T) {
	m, err := New(Options{Catalog: newCatalog(t)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ev, err := m.Play(sq(t, "h2"), sq(t, "e2"))
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if ev.Result.Kind != xiangqi.ResultSuccess || ev.Side != xiangqi.Red {
		t.Fatalf("event = %+v", ev)
	}
	if !strings.Contains(ev.Message, "h2e2") {
		t.Fatalf("message = %q", ev.Message)
	}
	if m.Game().Turn != xiangqi.Black {
		t.Fatalf("turn = %v", m.Game().Turn)
	}
	// Red cannot move twice.
	ev, err = m.Play(sq(t, "b2"), sq(t, "e2"))
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if ev.Result.Accepted() {
		t.Fatalf("red moved out of turn")
	}
	if ev.Message != "Illegal move." {
		t.Fatalf("invalid message = %q", ev.Message)
	}
}

func TestEngineMoveAppliedThroughPoll(t *testing.T) {
	eng := &scriptedEngine{replies: []ucci.Result{{Move: "h9g7"}}}
	m, err := New(Options{Mode: PlayerVsEngine, Engine: eng, Catalog: newCatalog(t)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := m.Poll(); ok {
		t.Fatalf("engine moved on red's turn")
	}
	if len(eng.requests) != 0 {
		t.Fatalf("request sent on red's turn")
	}
	if _, err := m.Play(sq(t, "h2"), sq(t, "e2")); err != nil {
		t.Fatalf("play: %v", err)
	}
	if _, err := m.Play(sq(t, "a9"), sq(t, "a8")); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("human played engine side: %v", err)
	}

	eng.hold = true
	if _, ok := m.Poll(); ok {
		t.Fatalf("event before the engine answered")
	}
	if !m.Pending() {
		t.Fatalf("request not outstanding")
	}
	if _, err := m.Play(sq(t, "a0"), sq(t, "a1")); !errors.Is(err, ErrEngineThinking) {
		t.Fatalf("play while thinking: %v", err)
	}
	if got := eng.requests[0]; got.Moves != "h2e2" || got.Depth != 10 || got.MoveTime != 2*time.Second || got.Elo != 3000 {
		t.Fatalf("request = %+v", got)
	}

	eng.hold = false
	ev, ok := m.Poll()
	if !ok {
		t.Fatalf("engine result not applied")
	}
	if !ev.ByEngine || ev.Side != xiangqi.Black || xiangqi.MoveToNotation(ev.Move) != "h9g7" {
		t.Fatalf("event = %+v", ev)
	}
	if m.Game().Turn != xiangqi.Red || m.Pending() {
		t.Fatalf("turn = %v pending = %v", m.Game().Turn, m.Pending())
	}
	if got := m.Game().HistoryNotation(); got != "h2e2 h9g7" {
		t.Fatalf("history = %q", got)
	}
}

func TestEngineBadTokensAreDropped(t *testing.T) {
	eng := &scriptedEngine{replies: []ucci.Result{
		{Move: "z9z9"},
		{Move: "a0a1"}, // red piece, illegal for black
		{Err: ucci.ErrNotReady},
		{Move: "h9g7"},
	}}
	m, err := New(Options{Mode: PlayerVsEngine, Engine: eng, Catalog: newCatalog(t)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := m.Play(sq(t, "h2"), sq(t, "e2")); err != nil {
		t.Fatalf("play: %v", err)
	}
	ev, ok := pollUntil(m, 10)
	if !ok {
		t.Fatalf("engine never produced a legal move")
	}
	if xiangqi.MoveToNotation(ev.Move) != "h9g7" {
		t.Fatalf("applied %s", xiangqi.MoveToNotation(ev.Move))
	}
	if len(eng.requests) != 4 {
		t.Fatalf("requests = %d, want 4", len(eng.requests))
	}
	if s := m.Snapshot(); s.EngineErrors != 3 || s.EngineMoves != 1 {
		t.Fatalf("engine counters = %d/%d", s.EngineErrors, s.EngineMoves)
	}
	if len(m.Game().History) != 2 {
		t.Fatalf("history length = %d", len(m.Game().History))
	}
}

func TestUndoAgainstEngineRetractsPair(t *testing.T) {
	eng := &scriptedEngine{replies: []ucci.Result{{Move: "h9g7"}}}
	m, err := New(Options{Mode: PlayerVsEngine, Engine: eng, Catalog: newCatalog(t)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := m.Play(sq(t, "h2"), sq(t, "e2")); err != nil {
		t.Fatalf("play: %v", err)
	}
	if _, ok := pollUntil(m, 3); !ok {
		t.Fatalf("engine reply missing")
	}
	if n := m.Undo(); n != 2 {
		t.Fatalf("undo removed %d plies, want 2", n)
	}
	if m.Game().Turn != xiangqi.Red || len(m.Game().History) != 0 {
		t.Fatalf("after undo turn=%v history=%d", m.Game().Turn, len(m.Game().History))
	}
	if m.Game().Board != xiangqi.InitialBoard() {
		t.Fatalf("board not restored")
	}
}

func TestUndoDiscardsOutstandingRequest(t *testing.T) {
	eng := &scriptedEngine{replies: []ucci.Result{{Move: "h9g7"}, {Move: "b9c7"}}, hold: true}
	m, err := New(Options{Mode: PlayerVsEngine, Engine: eng})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := m.Play(sq(t, "h2"), sq(t, "e2")); err != nil {
		t.Fatalf("play: %v", err)
	}
	m.Poll()
	if !m.Pending() {
		t.Fatalf("expected outstanding request")
	}
	if n := m.Undo(); n != 1 {
		t.Fatalf("undo removed %d plies, want 1", n)
	}
	if m.Pending() {
		t.Fatalf("request still pending after undo")
	}

	// The abandoned result lands late and must not be applied.
	eng.hold = false
	if _, err := m.Play(sq(t, "b2"), sq(t, "e2")); err != nil {
		t.Fatalf("play: %v", err)
	}
	ev, ok := pollUntil(m, 5)
	if !ok {
		t.Fatalf("fresh engine reply missing")
	}
	if got := xiangqi.MoveToNotation(ev.Move); got != "b9c7" {
		t.Fatalf("applied %s, want the fresh reply b9c7", got)
	}
	if got := eng.requests[1].Moves; got != "b2e2" {
		t.Fatalf("second request history = %q", got)
	}
}

func TestEngineAsRedMovesFirst(t *testing.T) {
	eng := &scriptedEngine{replies: []ucci.Result{{Move: "b2e2"}}}
	m, err := New(Options{Mode: PlayerVsEngine, EngineSide: xiangqi.Red, Engine: eng})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := pollUntil(m, 3); !ok {
		t.Fatalf("engine did not open")
	}
	if eng.requests[0].Moves != "" {
		t.Fatalf("opening request history = %q", eng.requests[0].Moves)
	}
	if m.Game().Turn != xiangqi.Black {
		t.Fatalf("turn = %v", m.Game().Turn)
	}
}

func TestNewRequiresEngineForPvE(t *testing.T) {
	if _, err := New(Options{Mode: PlayerVsEngine}); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestSetModeAndNewGame(t *testing.T) {
	m, err := New(Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := m.SetMode(PlayerVsEngine, xiangqi.Black, nil); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("set mode without engine: %v", err)
	}
	eng := &scriptedEngine{}
	if err := m.SetMode(PlayerVsEngine, xiangqi.Red, eng); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if m.Mode() != PlayerVsEngine || m.EngineSide() != xiangqi.Red {
		t.Fatalf("mode = %v side = %v", m.Mode(), m.EngineSide())
	}
	m.Game().MakeMove(sq(t, "h2"), sq(t, "e2"))
	m.NewGame()
	if len(m.Game().History) != 0 || m.Game().Turn != xiangqi.Red {
		t.Fatalf("new game not reset")
	}
	m.Close()
	if !eng.closed {
		t.Fatalf("engine not closed")
	}
}

func TestClickFlow(t *testing.T) {
	m, err := New(Options{Catalog: newCatalog(t)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, done, err := m.Click(sq(t, "b0")); done || err != nil {
		t.Fatalf("selecting a piece should not move: %v %v", done, err)
	}
	if len(m.Game().Highlights) != 2 {
		t.Fatalf("horse highlights = %v", m.Game().Highlights)
	}
	ev, done, err := m.Click(sq(t, "c2"))
	if err != nil || !done {
		t.Fatalf("click move: %v %v", done, err)
	}
	if xiangqi.MoveToNotation(ev.Move) != "b0c2" {
		t.Fatalf("moved %s", xiangqi.MoveToNotation(ev.Move))
	}
}

func TestCheckmateMessageAndRecord(t *testing.T) {
	eng := &scriptedEngine{}
	m, err := New(Options{Mode: PlayerVsEngine, Engine: eng, Catalog: newCatalog(t)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b, err := xiangqi.ParseBoard("4k4/8R/9/9/9/R8/9/9/9/3K5")
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	*m.Game() = *xiangqi.NewGameStateFrom(b, xiangqi.Red)

	if _, ok := m.Record(); ok {
		t.Fatalf("record for an unfinished game")
	}
	ev, err := m.Play(xiangqi.Sq(5, 0), xiangqi.Sq(0, 0))
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if ev.Result.Kind != xiangqi.ResultCheckmate {
		t.Fatalf("result = %v", ev.Result.Kind)
	}
	if !strings.HasPrefix(ev.Message, "胜") {
		t.Fatalf("message = %q", ev.Message)
	}
	rec, ok := m.Record()
	if !ok || rec.Result != "red_wins" || rec.ResultMethod != "checkmate" {
		t.Fatalf("record = %+v", rec)
	}
	if _, err := m.Play(xiangqi.Sq(0, 0), xiangqi.Sq(0, 1)); !errors.Is(err, ErrGameOver) {
		t.Fatalf("play after mate: %v", err)
	}
	if _, ok := m.Poll(); ok || len(eng.requests) != 0 {
		t.Fatalf("engine asked to move after mate")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	eng := &scriptedEngine{replies: []ucci.Result{{Move: "h9g7"}}}
	m, err := New(Options{Mode: PlayerVsEngine, Engine: eng})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := m.Play(sq(t, "h2"), sq(t, "e2")); err != nil {
		t.Fatalf("play: %v", err)
	}
	pollUntil(m, 3)
	snap := m.Snapshot()
	if snap.Mode != "pve" || snap.EngineSide != "black" || len(snap.Moves) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}

	r, err := Restore(snap, Options{Engine: &scriptedEngine{}})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if r.ID() != m.ID() || r.Game().Board != m.Game().Board || r.Game().Turn != m.Game().Turn {
		t.Fatalf("restored state differs")
	}
	if r.Mode() != PlayerVsEngine {
		t.Fatalf("restored mode = %v", r.Mode())
	}

	noEngine, err := Restore(snap, Options{})
	if err != nil {
		t.Fatalf("restore without engine: %v", err)
	}
	if noEngine.Mode() != PlayerVsPlayer {
		t.Fatalf("mode without engine = %v", noEngine.Mode())
	}

	snap.Moves = append(snap.Moves, "a0a5")
	if _, err := Restore(snap, Options{}); err == nil {
		t.Fatalf("restore accepted an illegal move")
	}
}

func TestDeadEngineIsDropped(t *testing.T) {
	eng := &scriptedEngine{replies: []ucci.Result{{Err: fmt.Errorf("wait bestmove: %w", ucci.ErrClosed)}}}
	m, err := New(Options{Mode: PlayerVsEngine, Engine: eng})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := m.Play(sq(t, "h2"), sq(t, "e2")); err != nil {
		t.Fatalf("play: %v", err)
	}
	if _, ok := pollUntil(m, 3); ok {
		t.Fatalf("a dead engine produced a move")
	}
	if !eng.closed || m.HasEngine() || !m.EngineLost() {
		t.Fatalf("closed=%v has=%v lost=%v", eng.closed, m.HasEngine(), m.EngineLost())
	}
	if m.Pending() {
		t.Fatalf("request still pending after engine loss")
	}

	// a timeout is not fatal to the engine
	eng2 := &scriptedEngine{replies: []ucci.Result{{Err: ucci.ErrNotReady}}}
	if err := m.SetMode(PlayerVsEngine, 0, eng2); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	pollUntil(m, 3)
	if eng2.closed || !m.HasEngine() {
		t.Fatalf("engine dropped after a timeout")
	}
}
