package xiangqidto

import "time"

type CreateGameRequest struct {
	Mode       string `json:"mode"`
	EngineSide string `json:"engine_side,omitempty"`
	Preset     string `json:"preset,omitempty"`
}

type MoveRequest struct {
	// Move is a 4 character token such as "h2e2". From/To are used when it is empty.
	Move string `json:"move,omitempty"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

type ModeRequest struct {
	Mode       string `json:"mode"`
	EngineSide string `json:"engine_side,omitempty"`
	Preset     string `json:"preset,omitempty"`
}

type MoveResponse struct {
	Result *MoveResult `json:"result,omitempty"`
	State  *GameState  `json:"state"`
}

type UndoResponse struct {
	Undone int        `json:"undone"`
	State  *GameState `json:"state"`
}

// GameSummary is one live match in a listing.
type GameSummary struct {
	ID           string    `json:"id"`
	Mode         string    `json:"mode"`
	EngineSide   string    `json:"engine_side,omitempty"`
	EnginePreset string    `json:"engine_preset,omitempty"`
	Turn         string    `json:"turn"`
	Status       string    `json:"status"`
	Plies        int       `json:"plies"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type GameListResponse struct {
	Games []*GameSummary `json:"games"`
}

type HistoryResponse struct {
	Games []*GameRecord `json:"games"`
}
