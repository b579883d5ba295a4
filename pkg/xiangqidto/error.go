package xiangqidto

// DomainError is the error body of every failed API call.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "xiangqi service error"
}

const (
	CodeBadRequest        = "bad_request"
	CodeNotFound          = "not_found"
	CodeGameOver          = "game_over"
	CodeNotYourTurn       = "not_your_turn"
	CodeEngineThinking    = "engine_thinking"
	CodeEngineUnavailable = "engine_unavailable"
	CodeInternal          = "internal"
)
