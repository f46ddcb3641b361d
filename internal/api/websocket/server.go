package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fortuna/matatena/internal/catalog"
	"github.com/fortuna/matatena/internal/service"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Status values sent to the processing page
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusNotFound   = "not_found"
	StatusError      = "error"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 24
	writeWait           = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Counter reports how many games a user owns
type Counter interface {
	Count(ctx context.Context, username string) (int, error)
}

// StatusMessage is one update pushed to the client
type StatusMessage struct {
	Status   string `json:"status"`
	Username string `json:"username"`
	Attempt  int    `json:"attempt"`
	Games    int    `json:"games,omitempty"`
}

// Watcher re-polls BGG for a queued collection and tells the browser when
// it is ready. Each connection is served by its own goroutine until the
// status is terminal, the attempts run out or the client goes away.
type Watcher struct {
	counter     Counter
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
}

// NewWatcher creates a new collection status watcher
func NewWatcher(counter Counter, interval time.Duration, maxAttempts int, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		counter:     counter,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger.With(slog.String("component", "websocket")),
	}
}

// ServeHTTP upgrades the request and streams status messages
func (w *Watcher) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(mux.Vars(r)["username"])
	if username == "" {
		http.Error(rw, "Username required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.WarnContext(r.Context(), "failed to upgrade connection", slog.Any("err", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Drain reads so a client close cancels polling.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	w.watch(ctx, conn, username)
}

func (w *Watcher) watch(ctx context.Context, conn *websocket.Conn, username string) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		msg := w.check(ctx, username, attempt)
		if msg.Status == StatusProcessing && attempt >= w.maxAttempts {
			msg.Status = StatusError
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			w.logger.DebugContext(ctx, "status write failed", slog.String("username", username), slog.Any("err", err))
			return
		}
		if msg.Status != StatusProcessing {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, msg.Status))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) check(ctx context.Context, username string, attempt int) StatusMessage {
	msg := StatusMessage{Username: username, Attempt: attempt}

	count, err := w.counter.Count(ctx, username)
	switch {
	case err == nil:
		msg.Status = StatusReady
		msg.Games = count
	case errors.Is(err, catalog.ErrRetryLater):
		msg.Status = StatusProcessing
	case errors.Is(err, catalog.ErrNoSuchUser), errors.Is(err, service.ErrEmptyCollection):
		msg.Status = StatusNotFound
	default:
		w.logger.WarnContext(ctx, "collection status check failed", slog.String("username", username), slog.Any("err", err))
		msg.Status = StatusError
	}
	return msg
}
