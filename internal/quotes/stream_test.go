package quotes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_DeliversTicksAndReplaysSubscriptions(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var msg subscribeMsg
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "subscribe", msg.Op)
		subscribed <- msg.Symbol

		require.NoError(t, conn.WriteJSON(map[string]any{
			"symbol":    msg.Symbol,
			"price":     178.25,
			"timestamp": time.Now().UnixMilli(),
		}))

		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	stream := NewStream(url, nil)
	stream.SetSymbols([]string{"AAPL"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = stream.Run(ctx)
		close(done)
	}()

	select {
	case sym := <-subscribed:
		assert.Equal(t, "AAPL", sym)
	case <-time.After(5 * time.Second):
		t.Fatal("no subscription received")
	}

	select {
	case tick := <-stream.Ticks():
		assert.Equal(t, "AAPL", tick.Symbol)
		assert.Equal(t, "178.25", tick.Price.String())
		assert.False(t, tick.Timestamp.IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("no tick received")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop on cancel")
	}
}

func TestStream_DecodeTick(t *testing.T) {
	s := NewStream("ws://unused", nil)

	tick, ok := s.decodeTick([]byte(`{"symbol":"MSFT","price":"310.75","timestamp":1770000000}`))
	require.True(t, ok)
	assert.Equal(t, "MSFT", tick.Symbol)
	assert.Equal(t, "310.75", tick.Price.String())
	assert.Equal(t, time.Unix(1770000000, 0).UTC(), tick.Timestamp)

	// garbage, missing symbol and non-positive prices are all skipped
	_, ok = s.decodeTick([]byte(`not json`))
	assert.False(t, ok)
	_, ok = s.decodeTick([]byte(`{"price":100}`))
	assert.False(t, ok)
	_, ok = s.decodeTick([]byte(`{"symbol":"MSFT","price":0}`))
	assert.False(t, ok)
	_, ok = s.decodeTick([]byte(`{"symbol":"MSFT","price":-1}`))
	assert.False(t, ok)
}

func TestStream_DecodeTickDefaultsTimestamp(t *testing.T) {
	s := NewStream("ws://unused", nil)
	before := time.Now().UTC()
	tick, ok := s.decodeTick([]byte(`{"symbol":"AAPL","price":1}`))
	require.True(t, ok)
	assert.False(t, tick.Timestamp.Before(before))
}

func TestParseEpoch(t *testing.T) {
	secs, err := parseEpoch(json.Number("1770000000"))
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1770000000, 0).UTC(), secs)

	millis, err := parseEpoch(json.Number("1770000000000"))
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1770000000000).UTC(), millis)

	_, err = parseEpoch(json.Number("nope"))
	assert.Error(t, err)
}
