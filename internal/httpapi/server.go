package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/domain"
	"github.com/park285/Cheese-Xiangqi/internal/engine"
	"github.com/park285/Cheese-Xiangqi/internal/match"
	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"github.com/park285/Cheese-Xiangqi/pkg/xiangqidto"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// HistorySource lists archived games.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]*domain.GameRecord, error)
}

// LiveSource lists matches that are still stored, newest first.
type LiveSource interface {
	List(ctx context.Context, limit int) ([]*domain.MatchSnapshot, error)
}

// Server exposes match control to a local GUI over HTTP/JSON.
type Server struct {
	mgr     *match.Manager
	history HistorySource
	live    LiveSource
	timeout time.Duration
	limit   int
	srv     *fasthttp.Server
}

func NewServer(mgr *match.Manager, history HistorySource, live LiveSource) *Server {
	s := &Server{mgr: mgr, history: history, live: live, timeout: 10 * time.Second, limit: 10}
	s.srv = &fasthttp.Server{
		Handler:            s.Handle,
		Name:               "xiangqi",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		MaxRequestBodySize: 64 * 1024,
	}
	return s
}

// SetHistoryLimit sets the default page size of GET /history.
func (s *Server) SetHistoryLimit(n int) {
	if n > 0 && n <= 100 {
		s.limit = n
	}
}

func (s *Server) ListenAndServe(addr string) error { return s.srv.ListenAndServe(addr) }

func (s *Server) Serve(ln net.Listener) error { return s.srv.Serve(ln) }

func (s *Server) Shutdown() error { return s.srv.Shutdown() }

// Handle routes:
//
//	POST /games                    create
//	GET  /games?limit=20           live matches
//	GET  /games/{id}               state
//	GET  /games/{id}/moves?from=e3 legal destinations
//	POST /games/{id}/move          play
//	POST /games/{id}/undo
//	POST /games/{id}/poll          drive the engine
//	POST /games/{id}/new
//	POST /games/{id}/mode
//	DELETE /games/{id}
//	GET  /history?limit=10
func (s *Server) Handle(ctx *fasthttp.RequestCtx) {
	started := time.Now()
	defer func() {
		obslog.L().Debug("http_request",
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()),
			zap.Int("status", ctx.Response.StatusCode()),
			zap.Duration("elapsed", time.Since(started)),
		)
	}()

	parts := splitPath(string(ctx.Path()))
	method := string(ctx.Method())
	switch {
	case len(parts) == 1 && parts[0] == "healthz":
		writeJSON(ctx, fasthttp.StatusOK, map[string]any{"ok": true, "engine": s.mgr.EngineAvailable()})
	case len(parts) == 1 && parts[0] == "history" && method == fasthttp.MethodGet:
		s.handleHistory(ctx)
	case len(parts) == 1 && parts[0] == "games" && method == fasthttp.MethodPost:
		s.handleCreate(ctx)
	case len(parts) == 1 && parts[0] == "games" && method == fasthttp.MethodGet:
		s.handleList(ctx)
	case len(parts) == 2 && parts[0] == "games":
		switch method {
		case fasthttp.MethodGet:
			s.handleState(ctx, parts[1])
		case fasthttp.MethodDelete:
			s.handleDelete(ctx, parts[1])
		default:
			writeError(ctx, fasthttp.StatusMethodNotAllowed, xiangqidto.DomainError{Code: xiangqidto.CodeBadRequest, Message: "method not allowed"})
		}
	case len(parts) == 3 && parts[0] == "games":
		id, action := parts[1], parts[2]
		if action == "moves" && method == fasthttp.MethodGet {
			s.handleLegalMoves(ctx, id)
			return
		}
		if method != fasthttp.MethodPost {
			writeError(ctx, fasthttp.StatusMethodNotAllowed, xiangqidto.DomainError{Code: xiangqidto.CodeBadRequest, Message: "method not allowed"})
			return
		}
		switch action {
		case "move":
			s.handleMove(ctx, id)
		case "undo":
			s.handleUndo(ctx, id)
		case "poll":
			s.handlePoll(ctx, id)
		case "new":
			s.handleNewGame(ctx, id)
		case "mode":
			s.handleMode(ctx, id)
		default:
			writeError(ctx, fasthttp.StatusNotFound, xiangqidto.DomainError{Code: xiangqidto.CodeNotFound, Message: "unknown action"})
		}
	default:
		writeError(ctx, fasthttp.StatusNotFound, xiangqidto.DomainError{Code: xiangqidto.CodeNotFound, Message: "not found"})
	}
}

func (s *Server) reqContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Server) handleCreate(ctx *fasthttp.RequestCtx) {
	var req xiangqidto.CreateGameRequest
	if !decodeBody(ctx, &req) {
		return
	}
	mode, err := match.ParseMode(req.Mode)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, badRequest(err))
		return
	}
	side, ok := parseOptionalSide(ctx, req.EngineSide)
	if !ok {
		return
	}
	if req.Preset != "" {
		if _, err := engine.GetPreset(req.Preset); err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, badRequest(err))
			return
		}
	}
	c, cancel := s.reqContext()
	defer cancel()
	snap, err := s.mgr.Create(c, mode, side, req.Preset)
	if err != nil {
		writeMatchError(ctx, err)
		return
	}
	s.respondState(c, ctx, snap.ID, fasthttp.StatusCreated)
}

func (s *Server) respondState(c context.Context, ctx *fasthttp.RequestCtx, id string, status int) {
	var view *xiangqidto.GameState
	if err := s.mgr.Inspect(c, id, func(m *match.Match) { view = stateView(m) }); err != nil {
		writeMatchError(ctx, err)
		return
	}
	writeJSON(ctx, status, view)
}

func (s *Server) handleState(ctx *fasthttp.RequestCtx, id string) {
	c, cancel := s.reqContext()
	defer cancel()
	s.respondState(c, ctx, id, fasthttp.StatusOK)
}

func (s *Server) handleDelete(ctx *fasthttp.RequestCtx, id string) {
	c, cancel := s.reqContext()
	defer cancel()
	if err := s.mgr.Remove(c, id); err != nil {
		writeMatchError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) handleLegalMoves(ctx *fasthttp.RequestCtx, id string) {
	from, err := xiangqi.NotationToSquare(string(ctx.QueryArgs().Peek("from")))
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, badRequest(err))
		return
	}
	c, cancel := s.reqContext()
	defer cancel()
	out := xiangqidto.LegalMoves{From: xiangqi.SquareToNotation(from), Destinations: []string{}}
	if err := s.mgr.Inspect(c, id, func(m *match.Match) {
		for _, sq := range m.Game().LegalDestinations(from) {
			out.Destinations = append(out.Destinations, xiangqi.SquareToNotation(sq))
		}
	}); err != nil {
		writeMatchError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) handleMove(ctx *fasthttp.RequestCtx, id string) {
	var req xiangqidto.MoveRequest
	if !decodeBody(ctx, &req) {
		return
	}
	mv, err := parseMoveRequest(req)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, badRequest(err))
		return
	}
	c, cancel := s.reqContext()
	defer cancel()
	var resp xiangqidto.MoveResponse
	_, err = s.mgr.Do(c, id, func(m *match.Match) error {
		ev, err := m.Play(mv.From, mv.To)
		if err != nil {
			return err
		}
		resp.Result = resultView(ev)
		resp.State = stateView(m)
		return nil
	})
	if err != nil {
		writeMatchError(ctx, err)
		return
	}
	status := fasthttp.StatusOK
	if resp.Result.Kind == xiangqi.ResultInvalid.String() {
		status = fasthttp.StatusUnprocessableEntity
	}
	writeJSON(ctx, status, resp)
}

func (s *Server) handleUndo(ctx *fasthttp.RequestCtx, id string) {
	c, cancel := s.reqContext()
	defer cancel()
	var resp xiangqidto.UndoResponse
	if _, err := s.mgr.Do(c, id, func(m *match.Match) error {
		resp.Undone = m.Undo()
		resp.State = stateView(m)
		return nil
	}); err != nil {
		writeMatchError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (s *Server) handlePoll(ctx *fasthttp.RequestCtx, id string) {
	c, cancel := s.reqContext()
	defer cancel()
	var resp xiangqidto.MoveResponse
	if _, err := s.mgr.Do(c, id, func(m *match.Match) error {
		if ev, ok := m.Poll(); ok {
			resp.Result = resultView(ev)
		}
		resp.State = stateView(m)
		return nil
	}); err != nil {
		writeMatchError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (s *Server) handleNewGame(ctx *fasthttp.RequestCtx, id string) {
	c, cancel := s.reqContext()
	defer cancel()
	var view *xiangqidto.GameState
	if _, err := s.mgr.Do(c, id, func(m *match.Match) error {
		m.NewGame()
		view = stateView(m)
		return nil
	}); err != nil {
		writeMatchError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, view)
}

func (s *Server) handleMode(ctx *fasthttp.RequestCtx, id string) {
	var req xiangqidto.ModeRequest
	if !decodeBody(ctx, &req) {
		return
	}
	mode, err := match.ParseMode(req.Mode)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, badRequest(err))
		return
	}
	side, ok := parseOptionalSide(ctx, req.EngineSide)
	if !ok {
		return
	}
	var preset *engine.StrengthPreset
	if req.Preset != "" {
		p, err := engine.GetPreset(req.Preset)
		if err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, badRequest(err))
			return
		}
		preset = &p
	}
	c, cancel := s.reqContext()
	defer cancel()
	if _, err := s.mgr.SetMode(c, id, mode, side); err != nil {
		writeMatchError(ctx, err)
		return
	}
	if preset != nil {
		if _, err := s.mgr.Do(c, id, func(m *match.Match) error { return m.SetPreset(*preset) }); err != nil {
			writeMatchError(ctx, err)
			return
		}
	}
	s.respondState(c, ctx, id, fasthttp.StatusOK)
}

func (s *Server) queryLimit(ctx *fasthttp.RequestCtx, def int) int {
	if v := string(ctx.QueryArgs().Peek("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			return n
		}
	}
	return def
}

func (s *Server) handleList(ctx *fasthttp.RequestCtx) {
	resp := xiangqidto.GameListResponse{Games: []*xiangqidto.GameSummary{}}
	if s.live != nil {
		c, cancel := s.reqContext()
		defer cancel()
		snaps, err := s.live.List(c, s.queryLimit(ctx, 20))
		if err != nil {
			obslog.L().Warn("http_list_failed", zap.Error(err))
			writeError(ctx, fasthttp.StatusInternalServerError, xiangqidto.DomainError{Code: xiangqidto.CodeInternal, Message: "listing unavailable", Retryable: true})
			return
		}
		for _, snap := range snaps {
			resp.Games = append(resp.Games, summaryView(snap))
		}
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (s *Server) handleHistory(ctx *fasthttp.RequestCtx) {
	limit := s.queryLimit(ctx, s.limit)
	resp := xiangqidto.HistoryResponse{Games: []*xiangqidto.GameRecord{}}
	if s.history != nil {
		c, cancel := s.reqContext()
		defer cancel()
		recs, err := s.history.Recent(c, limit)
		if err != nil {
			obslog.L().Warn("http_history_failed", zap.Error(err))
			writeError(ctx, fasthttp.StatusInternalServerError, xiangqidto.DomainError{Code: xiangqidto.CodeInternal, Message: "history unavailable", Retryable: true})
			return
		}
		for _, r := range recs {
			resp.Games = append(resp.Games, recordView(r))
		}
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func parseMoveRequest(req xiangqidto.MoveRequest) (xiangqi.Move, error) {
	if strings.TrimSpace(req.Move) != "" {
		return xiangqi.NotationToMove(req.Move)
	}
	return xiangqi.NotationToMove(strings.TrimSpace(req.From) + strings.TrimSpace(req.To))
}

func parseOptionalSide(ctx *fasthttp.RequestCtx, raw string) (xiangqi.Side, bool) {
	if strings.TrimSpace(raw) == "" {
		return 0, true
	}
	side, err := xiangqi.ParseSide(raw)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, badRequest(err))
		return 0, false
	}
	return side, true
}

func splitPath(p string) []string {
	var out []string
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func decodeBody(ctx *fasthttp.RequestCtx, v any) bool {
	body := ctx.PostBody()
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, xiangqidto.DomainError{Code: xiangqidto.CodeBadRequest, Message: "invalid json: " + err.Error()})
		return false
	}
	return true
}

func badRequest(err error) xiangqidto.DomainError {
	return xiangqidto.DomainError{Code: xiangqidto.CodeBadRequest, Message: err.Error()}
}

func writeMatchError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, match.ErrNotFound):
		writeError(ctx, fasthttp.StatusNotFound, xiangqidto.DomainError{Code: xiangqidto.CodeNotFound, Message: err.Error()})
	case errors.Is(err, match.ErrGameOver):
		writeError(ctx, fasthttp.StatusConflict, xiangqidto.DomainError{Code: xiangqidto.CodeGameOver, Message: err.Error()})
	case errors.Is(err, match.ErrNotYourTurn):
		writeError(ctx, fasthttp.StatusConflict, xiangqidto.DomainError{Code: xiangqidto.CodeNotYourTurn, Message: err.Error(), Retryable: true})
	case errors.Is(err, match.ErrEngineThinking):
		writeError(ctx, fasthttp.StatusConflict, xiangqidto.DomainError{Code: xiangqidto.CodeEngineThinking, Message: err.Error(), Retryable: true})
	case errors.Is(err, match.ErrEngineUnavailable):
		writeError(ctx, fasthttp.StatusServiceUnavailable, xiangqidto.DomainError{Code: xiangqidto.CodeEngineUnavailable, Message: err.Error()})
	default:
		obslog.L().Error("http_internal_error", zap.Error(err))
		writeError(ctx, fasthttp.StatusInternalServerError, xiangqidto.DomainError{Code: xiangqidto.CodeInternal, Message: "internal error", Retryable: true})
	}
}

func writeError(ctx *fasthttp.RequestCtx, status int, e xiangqidto.DomainError) {
	writeJSON(ctx, status, e)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		ctx.Error("encode response", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(raw)
}
