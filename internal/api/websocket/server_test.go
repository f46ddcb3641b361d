package websocket

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fortuna/matatena/internal/catalog"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCounter struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (c *scriptedCounter) Count(_ context.Context, _ string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := min(c.calls, len(c.results)-1)
	c.calls++
	if err := c.results[i]; err != nil {
		return 0, err
	}
	return 42, nil
}

func dial(t *testing.T, watcher *Watcher, username string) *websocket.Conn {
	t.Helper()
	router := mux.NewRouter()
	router.Handle("/ws/collection/{username}", watcher)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/collection/" + username
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readStatus(t *testing.T, conn *websocket.Conn) StatusMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg StatusMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWatcherReportsReadyAfterProcessing(t *testing.T) {
	counter := &scriptedCounter{results: []error{catalog.ErrRetryLater, catalog.ErrRetryLater, nil}}
	conn := dial(t, NewWatcher(counter, 10*time.Millisecond, 10, nil), "alice")

	assert.Equal(t, StatusProcessing, readStatus(t, conn).Status)
	assert.Equal(t, StatusProcessing, readStatus(t, conn).Status)

	ready := readStatus(t, conn)
	assert.Equal(t, StatusReady, ready.Status)
	assert.Equal(t, "alice", ready.Username)
	assert.Equal(t, 3, ready.Attempt)
	assert.Equal(t, 42, ready.Games)
}

func TestWatcherReportsUnknownUser(t *testing.T) {
	counter := &scriptedCounter{results: []error{catalog.ErrNoSuchUser}}
	conn := dial(t, NewWatcher(counter, 10*time.Millisecond, 10, nil), "nobody")

	assert.Equal(t, StatusNotFound, readStatus(t, conn).Status)
}

func TestWatcherGivesUpAfterMaxAttempts(t *testing.T) {
	counter := &scriptedCounter{results: []error{catalog.ErrRetryLater}}
	conn := dial(t, NewWatcher(counter, 5*time.Millisecond, 2, nil), "alice")

	assert.Equal(t, StatusProcessing, readStatus(t, conn).Status)
	last := readStatus(t, conn)
	assert.Equal(t, StatusError, last.Status)
	assert.Equal(t, 2, last.Attempt)
}

func TestWatcherUpstreamFailureIsError(t *testing.T) {
	counter := &scriptedCounter{results: []error{errors.New("connection reset")}}
	conn := dial(t, NewWatcher(counter, 10*time.Millisecond, 10, nil), "alice")

	assert.Equal(t, StatusError, readStatus(t, conn).Status)
}
