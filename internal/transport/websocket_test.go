package transport

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu   sync.Mutex
	cmds []Command
}

func (h *recordingHandler) HandleCommand(cmd Command) (any, error) {
	h.mu.Lock()
	h.cmds = append(h.cmds, cmd)
	h.mu.Unlock()
	if cmd.Type == "bogus" {
		return nil, errors.New("unknown command")
	}
	return Message{Type: MessageState, Data: cmd.Field}, nil
}

func (h *recordingHandler) State() any {
	return map[string]int{"segments": 12}
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cmds)
}

func newTestServer(t *testing.T, h CommandHandler) (*WebSocketTransport, *httptest.Server) {
	t.Helper()
	wst := NewWebSocketTransport("127.0.0.1:0", 80, h)
	srv := httptest.NewServer(wst.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = wst.Close()
	})
	return wst, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var v map[string]any
	require.NoError(t, conn.ReadJSON(&v))
	return v
}

func TestViewerPageServed(t *testing.T) {
	_, srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	missing, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestClientReceivesStateOnConnect(t *testing.T) {
	wst, srv := newTestServer(t, &recordingHandler{})
	conn := dial(t, srv)

	msg := readJSON(t, conn)
	assert.Equal(t, MessageState, msg["type"])
	assert.Equal(t, 1, wst.Clients())
	assert.True(t, wst.Visible())
}

func TestSendBroadcastsJSON(t *testing.T) {
	wst, srv := newTestServer(t, nil)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return wst.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, wst.Send(Message{Type: MessageBands, Data: map[string]float64{"bass": 0.5}}))
	msg := readJSON(t, conn)
	assert.Equal(t, MessageBands, msg["type"])
	assert.InDelta(t, 0.5, msg["data"].(map[string]any)["bass"], 1e-9)
}

func TestSendWithoutClientsIsNoop(t *testing.T) {
	wst, _ := newTestServer(t, nil)
	assert.NoError(t, wst.Send(Message{Type: MessageBands}))
	assert.False(t, wst.WantsFrame())
	assert.NoError(t, wst.SendFrame(image.NewRGBA(image.Rect(0, 0, 2, 2))))
	assert.Zero(t, wst.FramesSent())
}

func TestCommandsReachHandler(t *testing.T) {
	h := &recordingHandler{}
	_, srv := newTestServer(t, h)
	conn := dial(t, srv)
	readJSON(t, conn) // initial state

	require.NoError(t, conn.WriteJSON(Command{Type: CommandToggle, Field: "autoSpin"}))
	reply := readJSON(t, conn)
	assert.Equal(t, MessageState, reply["type"])
	assert.Equal(t, "autoSpin", reply["data"])

	require.NoError(t, conn.WriteJSON(Command{Type: "bogus"}))
	errMsg := readJSON(t, conn)
	assert.Equal(t, MessageError, errMsg["type"])
	assert.Equal(t, "unknown command", errMsg["data"])
	assert.Equal(t, 2, h.count())
}

func TestMalformedCommandReportsError(t *testing.T) {
	h := &recordingHandler{}
	_, srv := newTestServer(t, h)
	conn := dial(t, srv)
	readJSON(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := readJSON(t, conn)
	assert.Equal(t, MessageError, msg["type"])
	assert.Zero(t, h.count())
}

func TestSendFrameDeliversJPEG(t *testing.T) {
	wst, srv := newTestServer(t, nil)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return wst.WantsFrame() }, time.Second, 5*time.Millisecond)

	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	require.NoError(t, wst.SendFrame(img))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 8), decoded.Bounds())
	assert.Eventually(t, func() bool { return wst.FramesSent() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDisconnectUpdatesClientCount(t *testing.T) {
	wst, srv := newTestServer(t, nil)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return wst.Clients() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return wst.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestStartAndClose(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0", 200, nil)
	require.NoError(t, wst.Start())
	assert.NotEqual(t, "127.0.0.1:0", wst.Addr())

	resp, err := http.Get("http://" + wst.Addr() + "/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.NoError(t, wst.Close())
	assert.NoError(t, wst.Close())
}
