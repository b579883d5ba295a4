package domain

import "time"

// GameRecord is a finished game as stored in the archive.
type GameRecord struct {
	ID           int64
	MatchUUID    string
	Mode         string
	EngineSide   string
	EnginePreset string
	Result       string
	ResultMethod string
	Moves        []string
	FinalFEN     string
	StartedAt    time.Time
	EndedAt      time.Time
	Duration     time.Duration
	EngineMoves  int
	EngineErrors int
}

// MatchSnapshot is the persisted form of a live match. The board is rebuilt by
// replaying Moves from the start position.
type MatchSnapshot struct {
	ID           string    `json:"id"`
	Mode         string    `json:"mode"`
	EngineSide   string    `json:"engine_side,omitempty"`
	EnginePreset string    `json:"engine_preset,omitempty"`
	Moves        []string  `json:"moves"`
	FEN          string    `json:"fen"`
	Turn         string    `json:"turn"`
	Status       string    `json:"status"`
	LastMessage  string    `json:"last_message,omitempty"`
	EngineMoves  int       `json:"engine_moves"`
	EngineErrors int       `json:"engine_errors"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
