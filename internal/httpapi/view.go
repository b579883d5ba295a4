package httpapi

import (
	"github.com/park285/Cheese-Xiangqi/internal/domain"
	"github.com/park285/Cheese-Xiangqi/internal/match"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"github.com/park285/Cheese-Xiangqi/pkg/xiangqidto"
)

func summaryView(s *domain.MatchSnapshot) *xiangqidto.GameSummary {
	return &xiangqidto.GameSummary{
		ID:           s.ID,
		Mode:         s.Mode,
		EngineSide:   s.EngineSide,
		EnginePreset: s.EnginePreset,
		Turn:         s.Turn,
		Status:       s.Status,
		Plies:        len(s.Moves),
		UpdatedAt:    s.UpdatedAt,
	}
}

func stateView(m *match.Match) *xiangqidto.GameState {
	snap := m.Snapshot()
	g := m.Game()
	out := &xiangqidto.GameState{
		ID:           snap.ID,
		Mode:         snap.Mode,
		EngineSide:   snap.EngineSide,
		EnginePreset: snap.EnginePreset,
		EngineBusy:   m.Pending(),
		Turn:         snap.Turn,
		Status:       snap.Status,
		InCheck:      g.Status == xiangqi.InProgress && xiangqi.IsInCheck(&g.Board, g.Turn),
		FEN:          snap.FEN,
		Moves:        snap.Moves,
		Message:      snap.LastMessage,
		StartedAt:    snap.StartedAt,
		UpdatedAt:    snap.UpdatedAt,
	}
	if mv, ok := g.LastMove(); ok {
		out.LastMove = xiangqi.MoveToNotation(mv)
	}
	for r := 0; r < xiangqi.Rows; r++ {
		for c := 0; c < xiangqi.Cols; c++ {
			sq := xiangqi.Sq(r, c)
			p := g.Board.At(sq)
			if p.IsZero() {
				continue
			}
			out.Pieces = append(out.Pieces, xiangqidto.PieceView{
				Square: xiangqi.SquareToNotation(sq),
				Row:    r,
				Col:    c,
				Side:   p.Side.String(),
				Kind:   p.Kind.String(),
			})
		}
	}
	return out
}

func resultView(ev match.Event) *xiangqidto.MoveResult {
	out := &xiangqidto.MoveResult{
		Move:     xiangqi.MoveToNotation(ev.Move),
		Side:     ev.Side.String(),
		Kind:     ev.Result.Kind.String(),
		ByEngine: ev.ByEngine,
		Message:  ev.Message,
	}
	if !ev.Result.Captured.IsZero() {
		out.Captured = ev.Result.Captured.String()
	}
	if ev.Result.Terminal() {
		out.Winner = ev.Result.Winner.String()
	}
	return out
}

func recordView(r *domain.GameRecord) *xiangqidto.GameRecord {
	return &xiangqidto.GameRecord{
		MatchID:      r.MatchUUID,
		Mode:         r.Mode,
		EnginePreset: r.EnginePreset,
		Result:       r.Result,
		ResultMethod: r.ResultMethod,
		Moves:        r.Moves,
		StartedAt:    r.StartedAt,
		EndedAt:      r.EndedAt,
		Duration:     r.Duration,
	}
}
