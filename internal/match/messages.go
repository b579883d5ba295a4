package match

import (
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
)

func (m *Match) render(key string, data any, fallback string) string {
	if m.cat == nil {
		return fallback
	}
	return m.cat.RenderOr(key, data, fallback)
}

var resultKeys = map[xiangqi.ResultKind]string{
	xiangqi.ResultInvalid:         "result.invalid",
	xiangqi.ResultSuccess:         "result.success",
	xiangqi.ResultCapture:         "result.capture",
	xiangqi.ResultCheck:           "result.check",
	xiangqi.ResultCaptureAndCheck: "result.capture_check",
	xiangqi.ResultCheckmate:       "result.checkmate",
	xiangqi.ResultStalemate:       "result.stalemate",
}

// describe renders the popup text for ev. Terminal results in engine games
// are phrased from the human's point of view.
func (m *Match) describe(ev Event) string {
	data := map[string]any{
		"Side":     ev.Side.String(),
		"Move":     xiangqi.MoveToNotation(ev.Move),
		"Captured": ev.Result.Captured.String(),
		"Winner":   ev.Result.Winner.String(),
	}
	fallback := ev.Result.Kind.String()
	if ev.Result.Terminal() && m.mode == PlayerVsEngine {
		key := "outcome.win"
		if ev.Result.Winner == m.engineSide {
			key = "outcome.loss"
		}
		return m.render(key, data, fallback)
	}
	return m.render(resultKeys[ev.Result.Kind], data, fallback)
}
