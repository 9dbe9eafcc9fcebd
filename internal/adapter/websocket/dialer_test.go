package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer replies to every text message with a ticker built from it
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, append([]byte("echo:"), msg...)); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestDialer_RoundTrip(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	conn, err := NewDialer(time.Second, time.Second).Dial(context.Background(), wsURL(server))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(context.Background(), []byte(`{"event":"subscribe"}`)))
	msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `echo:{"event":"subscribe"}`, string(msg))
}

func TestDialer_ReadTimeout(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	conn, err := NewDialer(time.Second, 50*time.Millisecond).Dial(context.Background(), wsURL(server))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestDialer_CloseUnblocksRead(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	conn, err := NewDialer(time.Second, 0).Dial(context.Background(), wsURL(server))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := conn.ReadMessage()
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, conn.Close())

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("read was not unblocked by close")
	}
}

func TestDialer_DialFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := NewDialer(time.Second, 0).Dial(context.Background(), wsURL(server))
	assert.ErrorContains(t, err, "status 404")
}
