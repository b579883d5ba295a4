package xiangqidto

import "time"

// PieceView is one occupied cell.
type PieceView struct {
	Square string `json:"square"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Side   string `json:"side"`
	Kind   string `json:"kind"`
}

type GameState struct {
	ID           string      `json:"id"`
	Mode         string      `json:"mode"`
	EngineSide   string      `json:"engine_side,omitempty"`
	EnginePreset string      `json:"engine_preset,omitempty"`
	EngineBusy   bool        `json:"engine_busy"`
	Turn         string      `json:"turn"`
	Status       string      `json:"status"`
	InCheck      bool        `json:"in_check"`
	FEN          string      `json:"fen"`
	Pieces       []PieceView `json:"pieces"`
	Moves        []string    `json:"moves"`
	LastMove     string      `json:"last_move,omitempty"`
	Message      string      `json:"message,omitempty"`
	StartedAt    time.Time   `json:"started_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// MoveResult is the classified outcome popup data for one move.
type MoveResult struct {
	Move     string `json:"move"`
	Side     string `json:"side"`
	Kind     string `json:"kind"`
	Captured string `json:"captured,omitempty"`
	Winner   string `json:"winner,omitempty"`
	ByEngine bool   `json:"by_engine"`
	Message  string `json:"message"`
}

type LegalMoves struct {
	From         string   `json:"from"`
	Destinations []string `json:"destinations"`
}

type GameRecord struct {
	MatchID      string        `json:"match_id"`
	Mode         string        `json:"mode"`
	EnginePreset string        `json:"engine_preset,omitempty"`
	Result       string        `json:"result"`
	ResultMethod string        `json:"result_method"`
	Moves        []string      `json:"moves"`
	StartedAt    time.Time     `json:"started_at"`
	EndedAt      time.Time     `json:"ended_at"`
	Duration     time.Duration `json:"duration_ns"`
}
