package ucci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	"go.uber.org/zap"
)

const (
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultSearchTimeout    = 30 * time.Second
	quitGrace               = 2 * time.Second
	lineBuffer              = 256
	// output must stay quiet this long after a bestmove before it is final
	bestMoveQuiet           = 100 * time.Millisecond
)

var (
	ErrSpawn    = errors.New("engine spawn failed")
	ErrWrite    = errors.New("engine write failed")
	ErrNotReady = errors.New("engine not ready")
	ErrClosed   = errors.New("engine closed")
)

// Options controls how the engine process is started and how long the client
// waits for replies. Zero timeouts fall back to the defaults.
type Options struct {
	Args             []string
	Env              []string
	HandshakeTimeout time.Duration
	SearchTimeout    time.Duration
}

func (o Options) handshakeTimeout() time.Duration {
	if o.HandshakeTimeout > 0 {
		return o.HandshakeTimeout
	}
	return DefaultHandshakeTimeout
}

func (o Options) searchTimeout() time.Duration {
	if o.SearchTimeout > 0 {
		return o.SearchTimeout
	}
	return DefaultSearchTimeout
}

// Limits bounds a single search. Zero values are omitted from the go command.
type Limits struct {
	Depth    int
	MoveTime time.Duration
}

// Client drives one engine process. It is not safe for concurrent use; the
// session handle's worker is its only caller.
type Client struct {
	path  string
	opt   Options
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan string
	done  chan struct{}

	mu        sync.Mutex
	closeOnce sync.Once
}

// Start spawns the engine with piped stdin/stdout and starts the line reader.
func Start(path string, opt Options) (*Client, error) {
	cmd := exec.Command(path, opt.Args...)
	if len(opt.Env) > 0 {
		cmd.Env = append(os.Environ(), opt.Env...)
	}
	cmd.WaitDelay = quitGrace

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: create stdin pipe: %w", ErrSpawn, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("%w: create stdout pipe: %w", ErrSpawn, err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	c := &Client{
		path:  path,
		opt:   opt,
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan string, lineBuffer),
		done:  make(chan struct{}),
	}
	go c.readLoop(stdout)
	obslog.L().Debug("engine_spawn", zap.String("path", path), zap.Int("pid", cmd.Process.Pid))
	return c, nil
}

// readLoop frames stdout into lines. The channel is closed when the process
// output ends, which callers observe as ErrClosed.
func (c *Client) readLoop(r io.Reader) {
	defer close(c.lines)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		select {
		case c.lines <- line:
		case <-c.done:
			return
		}
	}
}

// Send writes one command line and flushes it.
func (c *Client) Send(command string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.stdin, command+"\n"); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrWrite, command, err)
	}
	return nil
}

// ReadUntil collects lines until match accepts one or timeout elapses. The
// returned slice includes the matching line.
func (c *Client) ReadUntil(ctx context.Context, match func(string) bool, timeout time.Duration) ([]string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var collected []string
	for {
		select {
		case <-ctx.Done():
			return collected, ctx.Err()
		case <-timer.C:
			return collected, ErrNotReady
		case line, ok := <-c.lines:
			if !ok {
				return collected, ErrClosed
			}
			if line == "" {
				continue
			}
			collected = append(collected, line)
			if match(line) {
				return collected, nil
			}
		}
	}
}

// drain discards output that is already queued, returning it.
func (c *Client) drain() []string {
	var out []string
	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				return out
			}
			if line != "" {
				out = append(out, line)
			}
		default:
			return out
		}
	}
}

func (c *Client) awaitToken(ctx context.Context, command, token string) error {
	if err := c.Send(command); err != nil {
		return err
	}
	if _, err := c.ReadUntil(ctx, func(l string) bool { return l == token }, c.opt.handshakeTimeout()); err != nil {
		return fmt.Errorf("wait %s: %w", token, err)
	}
	return nil
}

// Handshake negotiates the protocol and waits for the engine to be ready.
func (c *Client) Handshake(ctx context.Context) error {
	if err := c.awaitToken(ctx, "uci", "uciok"); err != nil {
		return err
	}
	return c.WaitReady(ctx)
}

func (c *Client) WaitReady(ctx context.Context) error {
	return c.awaitToken(ctx, "isready", "readyok")
}

// NewGame resets engine state between searches.
func (c *Client) NewGame(ctx context.Context) error {
	if stale := c.drain(); len(stale) > 0 {
		obslog.L().Debug("engine_stale_output", zap.Strings("lines", stale))
	}
	if err := c.Send("ucinewgame"); err != nil {
		return err
	}
	return c.WaitReady(ctx)
}

// LimitStrength configures the strength target. elo <= 0 removes the limit.
func (c *Client) LimitStrength(elo int) error {
	for _, cmd := range StrengthCommands(elo) {
		if err := c.Send(cmd); err != nil {
			return err
		}
	}
	return nil
}

// SetPosition sets the start position followed by the space separated moves.
func (c *Client) SetPosition(moves string) error {
	return c.Send(PositionCommand(moves))
}

// Go starts a search and waits for the best move token.
func (c *Client) Go(ctx context.Context, l Limits) (string, error) {
	if err := c.Send(GoCommand(l)); err != nil {
		return "", err
	}
	lines, err := c.ReadUntil(ctx, isBestMoveLine, c.opt.searchTimeout())
	if err != nil {
		return "", fmt.Errorf("wait bestmove: %w", err)
	}
	// Some engines stream a provisional bestmove first. Keep reading until the
	// output goes quiet so the last one wins.
	settle := time.Now().Add(c.opt.searchTimeout())
	for time.Now().Before(settle) {
		more, err := c.ReadUntil(ctx, func(string) bool { return true }, bestMoveQuiet)
		lines = append(lines, more...)
		if err != nil {
			break
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if isBestMoveLine(lines[i]) {
			return parseBestMove(lines[i])
		}
	}
	return "", ErrNotReady
}

// BestMove runs the full per-move protocol for req.
func (c *Client) BestMove(ctx context.Context, req MoveRequest) (string, error) {
	if err := c.NewGame(ctx); err != nil {
		return "", err
	}
	if err := c.LimitStrength(req.Elo); err != nil {
		return "", err
	}
	if err := c.SetPosition(req.Moves); err != nil {
		return "", err
	}
	return c.Go(ctx, req.Limits())
}

// Close asks the engine to quit and waits for it to exit, killing it after a
// grace period. It is safe to call more than once; errors are only logged.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		_ = c.Send("quit")
		c.mu.Lock()
		_ = c.stdin.Close()
		c.mu.Unlock()
		close(c.done)

		exited := make(chan error, 1)
		go func() { exited <- c.cmd.Wait() }()
		select {
		case err := <-exited:
			if err != nil {
				obslog.L().Debug("engine_exit", zap.String("path", c.path), zap.Error(err))
			}
		case <-time.After(quitGrace):
			_ = c.cmd.Process.Kill()
			<-exited
			obslog.L().Warn("engine_killed", zap.String("path", c.path))
		}
	})
	return nil
}

func isBestMoveLine(line string) bool {
	return line == "bestmove" || strings.HasPrefix(line, "bestmove ")
}

func parseBestMove(line string) (string, error) {
	parts := strings.Fields(line)
	if len(parts) < 2 || parts[0] != "bestmove" {
		return "", fmt.Errorf("%w: malformed %q", ErrNotReady, line)
	}
	return parts[1], nil
}

// Commands returns every line BestMove sends for req after the new-game reset.
func (req MoveRequest) Commands() []string {
	out := StrengthCommands(req.Elo)
	return append(out, PositionCommand(req.Moves), GoCommand(req.Limits()))
}

// StrengthCommands returns the setoption lines for an Elo target.
func StrengthCommands(elo int) []string {
	if elo <= 0 {
		return []string{"setoption name UCI_LimitStrength value false"}
	}
	return []string{
		"setoption name UCI_LimitStrength value true",
		"setoption name UCI_Elo value " + strconv.Itoa(elo),
	}
}

func PositionCommand(moves string) string {
	moves = strings.TrimSpace(moves)
	if moves == "" {
		return "position startpos"
	}
	return "position startpos moves " + moves
}

// GoCommand formats the search command; zero limits are omitted.
func GoCommand(l Limits) string {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if ms := l.MoveTime.Milliseconds(); ms > 0 {
		args = append(args, "movetime", strconv.FormatInt(ms, 10))
	}
	return strings.Join(args, " ")
}
