package xiangqi

import (
	"encoding/json"
	"fmt"
)

// Move is a from/to pair.
type Move struct {
	From Square `json:"from"`
	To   Square `json:"to"`
}

func (m Move) String() string { return m.From.String() + m.To.String() }

// Status is the game lifecycle. Once it leaves InProgress no move is accepted
// until an undo resets it.
type Status uint8

const (
	InProgress Status = iota
	RedWins
	BlackWins
	Draw
)

var statusNames = [...]string{"in_progress", "red_wins", "black_wins", "draw"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for i, n := range statusNames {
		if n == raw {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", raw)
}

// Winner returns the winning side of a finished game.
func (s Status) Winner() (Side, bool) {
	switch s {
	case RedWins:
		return Red, true
	case BlackWins:
		return Black, true
	}
	return 0, false
}

func winsFor(side Side) Status {
	if side == Red {
		return RedWins
	}
	return BlackWins
}

// ResultKind classifies an attempted move.
type ResultKind uint8

const (
	ResultInvalid ResultKind = iota
	ResultSuccess
	ResultCapture
	ResultCheck
	ResultCaptureAndCheck
	ResultCheckmate
	ResultStalemate
)

var resultNames = [...]string{"invalid", "success", "capture", "check", "capture_and_check", "checkmate", "stalemate"}

func (k ResultKind) String() string {
	if int(k) < len(resultNames) {
		return resultNames[k]
	}
	return "unknown"
}

// MoveResult is computed once per attempt and never stored. Captured is set for
// Capture and CaptureAndCheck; Winner for Checkmate and Stalemate.
type MoveResult struct {
	Kind     ResultKind
	Captured Piece
	Winner   Side
}

func (r MoveResult) Accepted() bool { return r.Kind != ResultInvalid }

func (r MoveResult) Terminal() bool {
	return r.Kind == ResultCheckmate || r.Kind == ResultStalemate
}

// Ply is one history entry. Captured keeps the taken piece so undo can put it back.
type Ply struct {
	Move     Move  `json:"move"`
	Moved    Piece `json:"moved"`
	Captured Piece `json:"captured"`
}

// GameState owns the board, turn, status and history of one game.
type GameState struct {
	Board   Board
	Turn    Side
	Status  Status
	History []Ply

	// Selection state for the interactive collaborator. It has no effect on legality.
	Selected   *Square
	Highlights []Square
}

func NewGameState() *GameState {
	return &GameState{Board: InitialBoard(), Turn: Red, Status: InProgress}
}

// NewGameStateFrom starts from an arbitrary position with turn to move.
func NewGameStateFrom(b Board, turn Side) *GameState {
	return &GameState{Board: b, Turn: turn, Status: InProgress}
}

// MakeMove applies from -> to for the side to move if it is legal.
func (g *GameState) MakeMove(from, to Square) MoveResult {
	if g.Status != InProgress {
		return MoveResult{Kind: ResultInvalid}
	}
	if !IsValidMove(&g.Board, from, to, g.Turn) {
		return MoveResult{Kind: ResultInvalid}
	}

	moved := g.Board.At(from)
	captured := g.Board.At(to)
	g.History = append(g.History, Ply{Move: Move{From: from, To: to}, Moved: moved, Captured: captured})
	g.Board.Clear(from)
	g.Board.Set(to, moved)
	g.clearSelection()

	mover := g.Turn
	g.Turn = mover.Opponent()

	switch {
	case IsCheckmate(&g.Board, g.Turn):
		g.Status = winsFor(mover)
		return MoveResult{Kind: ResultCheckmate, Winner: mover}
	case IsStalemate(&g.Board, g.Turn):
		// Stalemate loses for the side that cannot move.
		g.Status = winsFor(mover)
		return MoveResult{Kind: ResultStalemate, Winner: mover}
	}

	check := IsInCheck(&g.Board, g.Turn)
	switch {
	case !captured.IsZero() && check:
		return MoveResult{Kind: ResultCaptureAndCheck, Captured: captured}
	case !captured.IsZero():
		return MoveResult{Kind: ResultCapture, Captured: captured}
	case check:
		return MoveResult{Kind: ResultCheck}
	}
	return MoveResult{Kind: ResultSuccess}
}

// UndoLastMove retracts the most recent ply. It returns false on an empty history.
func (g *GameState) UndoLastMove() bool {
	n := len(g.History)
	if n == 0 {
		return false
	}
	ply := g.History[n-1]
	g.History = g.History[:n-1]
	g.Board.Set(ply.Move.From, ply.Moved)
	g.Board.Set(ply.Move.To, ply.Captured)
	g.Turn = g.Turn.Opponent()
	g.Status = InProgress
	g.clearSelection()
	return true
}

// UndoLastTwoMoves retracts a move and its reply. With a single ply in the
// history only that one is undone. It returns the number of plies removed.
func (g *GameState) UndoLastTwoMoves() int {
	n := 0
	for i := 0; i < 2; i++ {
		if !g.UndoLastMove() {
			break
		}
		n++
	}
	return n
}

// Moves returns the history as plain moves.
func (g *GameState) Moves() []Move {
	out := make([]Move, len(g.History))
	for i, p := range g.History {
		out[i] = p.Move
	}
	return out
}

// LastMove returns the most recent move, if any.
func (g *GameState) LastMove() (Move, bool) {
	if len(g.History) == 0 {
		return Move{}, false
	}
	return g.History[len(g.History)-1].Move, true
}

// LegalDestinations lists where the piece on from may go for the side to move.
func (g *GameState) LegalDestinations(from Square) []Square {
	if g.Status != InProgress {
		return nil
	}
	return ValidMoves(&g.Board, from, g.Turn)
}

// Select handles a click on sq. Clicking a highlighted destination plays the
// move and returns its result; any other click updates the selection and
// returns an Invalid result.
func (g *GameState) Select(sq Square) MoveResult {
	if !IsWithinBoard(sq) || g.Status != InProgress {
		g.clearSelection()
		return MoveResult{Kind: ResultInvalid}
	}
	if g.Selected != nil {
		from := *g.Selected
		for _, h := range g.Highlights {
			if h == sq {
				return g.MakeMove(from, sq)
			}
		}
		if from == sq {
			g.clearSelection()
			return MoveResult{Kind: ResultInvalid}
		}
	}
	if p := g.Board.At(sq); !p.IsZero() && p.Side == g.Turn {
		s := sq
		g.Selected = &s
		g.Highlights = ValidMoves(&g.Board, sq, g.Turn)
		return MoveResult{Kind: ResultInvalid}
	}
	g.clearSelection()
	return MoveResult{Kind: ResultInvalid}
}

func (g *GameState) clearSelection() {
	g.Selected = nil
	g.Highlights = nil
}

// Clone returns a deep copy without the selection state.
func (g *GameState) Clone() *GameState {
	c := &GameState{Board: g.Board, Turn: g.Turn, Status: g.Status}
	c.History = append([]Ply(nil), g.History...)
	return c
}
