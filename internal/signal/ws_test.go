package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type serverFrame struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// newTestServer runs a websocket endpoint whose behavior per inbound
// frame is decided by handle, which may write responses on conn.
func newTestServer(t *testing.T, handle func(conn *websocket.Conn, frame serverFrame)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame serverFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				continue
			}
			handle(conn, frame)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialTest(t *testing.T, url string, timeout time.Duration) *WSChannel {
	t.Helper()
	ch, err := Dial(context.Background(), url, Options{
		RequestTimeout: timeout,
		DialTimeout:    5 * time.Second,
		Logger:         zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close() })
	return ch
}

func writeResponse(conn *websocket.Conn, id uint64, result string) {
	frame := map[string]any{"id": id, "result": json.RawMessage(result)}
	payload, _ := json.Marshal(frame)
	conn.WriteMessage(websocket.TextMessage, payload)
}

func TestRequestResponseRoundTrip(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn, frame serverFrame) {
		if frame.Method == "echo" {
			writeResponse(conn, frame.ID, string(frame.Params))
		}
	})
	ch := dialTest(t, url, time.Second)

	var result struct {
		Value int `json:"value"`
	}
	err := ch.Request(context.Background(), "echo", map[string]int{"value": 42}, &result)
	require.NoError(t, err)
	assert.Equal(t, 42, result.Value)
}

func TestOutOfOrderResponsesCorrelate(t *testing.T) {
	var mu sync.Mutex
	var held *serverFrame
	var heldConn *websocket.Conn

	url := newTestServer(t, func(conn *websocket.Conn, frame serverFrame) {
		if frame.Method != "echo" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if held == nil {
			// Park the first request; answer it after the second.
			f := frame
			held = &f
			heldConn = conn
			return
		}
		writeResponse(conn, frame.ID, string(frame.Params))
		writeResponse(heldConn, held.ID, string(held.Params))
		held = nil
	})
	ch := dialTest(t, url, 2*time.Second)

	var wg sync.WaitGroup
	results := make([]int, 2)
	for i := range results {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			var result struct {
				Value int `json:"value"`
			}
			err := ch.Request(context.Background(), "echo", map[string]int{"value": n + 1}, &result)
			assert.NoError(t, err)
			results[n] = result.Value
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []int{1, 2}, results, "each request must receive its own response")
}

func TestRequestDeadlineRejectsHungResponse(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn, frame serverFrame) {
		// Never respond.
	})
	ch := dialTest(t, url, 50*time.Millisecond)

	start := time.Now()
	err := ch.Request(context.Background(), "black-hole", map[string]int{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestServerErrorSurfaces(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn, frame serverFrame) {
		frame2 := map[string]any{
			"id":    frame.ID,
			"error": map[string]any{"code": 100, "message": "room not found"},
		}
		payload, _ := json.Marshal(frame2)
		conn.WriteMessage(websocket.TextMessage, payload)
	})
	ch := dialTest(t, url, time.Second)

	err := ch.Request(context.Background(), "join-mediasoup-room", map[string]string{"roomId": "nope"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room not found")
}

func TestNotificationDispatch(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn, frame serverFrame) {
		if frame.Method == "ping" {
			push := map[string]any{
				"method": "new-producer",
				"params": map[string]string{"producerId": "p1"},
			}
			payload, _ := json.Marshal(push)
			conn.WriteMessage(websocket.TextMessage, payload)
		}
	})
	ch := dialTest(t, url, time.Second)

	got := make(chan string, 1)
	ch.On("new-producer", func(params json.RawMessage) {
		var n NewProducerNotification
		if err := json.Unmarshal(params, &n); err == nil {
			got <- n.ProducerID
		}
	})

	require.NoError(t, ch.Notify("ping", map[string]string{}))

	select {
	case id := <-got:
		assert.Equal(t, "p1", id)
	case <-time.After(time.Second):
		t.Fatal("notification handler never ran")
	}
}

func TestOffRemovesHandler(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn, frame serverFrame) {
		if frame.Method == "ping" {
			push := map[string]any{"method": "new-producer", "params": map[string]string{"producerId": "p1"}}
			payload, _ := json.Marshal(push)
			conn.WriteMessage(websocket.TextMessage, payload)
		}
	})
	ch := dialTest(t, url, time.Second)

	fired := make(chan struct{}, 1)
	ch.On("new-producer", func(json.RawMessage) { fired <- struct{}{} })
	ch.Off("new-producer")

	require.NoError(t, ch.Notify("ping", map[string]string{}))

	select {
	case <-fired:
		t.Fatal("handler ran after Off")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloseFailsPendingAndDisconnects(t *testing.T) {
	url := newTestServer(t, func(conn *websocket.Conn, frame serverFrame) {})
	ch := dialTest(t, url, 5*time.Second)

	done := make(chan error, 1)
	go func() {
		done <- ch.Request(context.Background(), "black-hole", map[string]int{}, nil)
	}()

	// Give the request a moment to register as pending.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, ch.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("pending request not failed by Close")
	}

	assert.False(t, ch.Connected())
	assert.ErrorIs(t, ch.Notify("ping", nil), ErrClosed)
}
