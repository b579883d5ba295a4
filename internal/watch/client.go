package watch

import (
	"context"
	"sync"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/domain"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

type SnapshotCallback func(snap domain.MatchSnapshot)

type StateCallback func(state State)

// Watcher follows one match's snapshot stream and reconnects on failure.
type Watcher struct {
	url string

	connM sync.Mutex
	conn  *websocket.Conn

	state  State
	stateM sync.RWMutex

	onSnap  SnapshotCallback
	onState StateCallback

	maxReconnectAttempts int
	reconnectDelay       time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func NewWatcher(url string, maxReconnectAttempts int, reconnectDelay time.Duration) *Watcher {
	return &Watcher{
		url:                  url,
		state:                StateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		reconnectDelay:       reconnectDelay,
		stopCh:               make(chan struct{}),
	}
}

// OnSnapshot and OnStateChange must be set before Connect.
func (w *Watcher) OnSnapshot(cb SnapshotCallback) { w.onSnap = cb }

func (w *Watcher) OnStateChange(cb StateCallback) { w.onState = cb }

func (w *Watcher) State() State {
	w.stateM.RLock()
	defer w.stateM.RUnlock()
	return w.state
}

func (w *Watcher) Connect(ctx context.Context) error {
	if s := w.State(); s == StateConnected || s == StateConnecting {
		return nil
	}
	w.rootCtx, w.rootCancel = context.WithCancel(context.Background())
	w.setState(StateConnecting)

	conn, err := w.dial(ctx)
	if err != nil {
		w.setState(StateFailed)
		w.scheduleReconnect()
		return err
	}
	w.attach(conn)
	return nil
}

func (w *Watcher) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, w.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	return conn, err
}

func (w *Watcher) attach(conn *websocket.Conn) {
	w.connM.Lock()
	w.conn = conn
	w.connM.Unlock()
	w.setState(StateConnected)
	w.wg.Add(1)
	go w.listen(conn)
}

func (w *Watcher) listen(conn *websocket.Conn) {
	defer w.wg.Done()
	for {
		var snap domain.MatchSnapshot
		if err := wsjson.Read(w.rootCtx, conn, &snap); err != nil {
			if w.isStopping() {
				return
			}
			w.setState(StateDisconnected)
			w.closeConn(websocket.StatusGoingAway, "reconnect")
			w.scheduleReconnect()
			return
		}
		if w.onSnap != nil {
			w.onSnap(snap)
		}
	}
}

func (w *Watcher) scheduleReconnect() {
	if w.maxReconnectAttempts <= 0 {
		return
	}
	w.setState(StateReconnecting)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for attempt := 1; attempt <= w.maxReconnectAttempts; attempt++ {
			select {
			case <-w.stopCh:
				return
			case <-time.After(time.Duration(attempt) * w.reconnectDelay):
			}
			conn, err := w.dial(w.rootCtx)
			if err != nil {
				continue
			}
			w.attach(conn)
			return
		}
		w.setState(StateFailed)
	}()
}

func (w *Watcher) setState(s State) {
	w.stateM.Lock()
	w.state = s
	w.stateM.Unlock()
	if w.onState != nil {
		w.onState(s)
	}
}

// Close stops reconnecting and waits for the reader to exit or ctx to end.
func (w *Watcher) Close(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.closeConn(websocket.StatusNormalClosure, "close")

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if w.rootCancel != nil {
			w.rootCancel()
		}
		return nil
	}
}

func (w *Watcher) closeConn(code websocket.StatusCode, reason string) {
	w.connM.Lock()
	conn := w.conn
	w.conn = nil
	w.connM.Unlock()
	if conn != nil {
		_ = conn.Close(code, reason)
	}
}

func (w *Watcher) isStopping() bool {
	select {
	case <-w.stopCh:
		return true
	default:
		return false
	}
}
