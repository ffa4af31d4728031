package transport

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	applog "kaleido/internal/log"

	"github.com/gorilla/websocket"
)

var wlog = applog.New("websocket")

//go:embed web/index.html
var viewerPage []byte

const writeWait = 2 * time.Second

// outbound is one queued write. A nil to means every client.
type outbound struct {
	to  *websocket.Conn
	msg any
}

// WebSocketTransport serves a viewer page on / and a WebSocket on /ws. It
// broadcasts JSON messages and JPEG frames and feeds incoming commands to a
// CommandHandler.
type WebSocketTransport struct {
	addr     string
	quality  int
	handler  CommandHandler
	upgrader websocket.Upgrader

	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	count     atomic.Int32

	broadcast chan outbound
	frames    chan *image.RGBA
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	jpegBuf bytes.Buffer // Owned by the broadcast goroutine.
	sent    atomic.Uint64
	dropped atomic.Uint64

	server   *http.Server
	listener net.Listener
}

// NewWebSocketTransport creates a transport for addr. Frames are encoded at
// the given JPEG quality. Call Start to listen, or mount Handler elsewhere.
func NewWebSocketTransport(addr string, quality int, handler CommandHandler) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr:    addr,
		quality: min(100, max(1, quality)),
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Viewers may be served from anywhere.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan outbound, 256),
		frames:    make(chan *image.RGBA, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go wst.handleBroadcasts()
	return wst
}

// Handler returns the HTTP handler serving the viewer and the socket.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(viewerPage)
	})
	return mux
}

// Start listens on the configured address and serves in the background.
func (wst *WebSocketTransport) Start() error {
	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return err
	}
	wst.listener = ln
	wst.server = &http.Server{
		Handler:           wst.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		wlog.Infof("viewer on http://%s/ (socket /ws)", ln.Addr())
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wlog.Errorf("server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address once started, else the configured one.
func (wst *WebSocketTransport) Addr() string {
	if wst.listener != nil {
		return wst.listener.Addr().String()
	}
	return wst.addr
}

// Clients returns the number of connected viewers.
func (wst *WebSocketTransport) Clients() int {
	return int(wst.count.Load())
}

// Visible reports whether anyone is watching.
func (wst *WebSocketTransport) Visible() bool {
	return wst.Clients() > 0
}

// FramesSent returns the number of frames broadcast.
func (wst *WebSocketTransport) FramesSent() uint64 {
	return wst.sent.Load()
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wlog.Warnf("upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	wst.clientsMu.Unlock()
	total := wst.count.Add(1)
	wlog.Infof("client %s connected, total: %d", conn.RemoteAddr(), total)

	if wst.handler != nil {
		wst.queue(outbound{to: conn, msg: Message{Type: MessageState, Data: wst.handler.State()}})
	}

	go wst.readLoop(conn)
}

// readLoop decodes commands until the client goes away.
func (wst *WebSocketTransport) readLoop(conn *websocket.Conn) {
	defer wst.drop(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if wst.handler == nil {
			continue
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			wst.queue(outbound{to: conn, msg: Message{Type: MessageError, Data: "malformed command"}})
			continue
		}
		reply, err := wst.handler.HandleCommand(cmd)
		if err != nil {
			wlog.Debugf("command %q rejected: %v", cmd.Type, err)
			wst.queue(outbound{to: conn, msg: Message{Type: MessageError, Data: err.Error()}})
			continue
		}
		if reply != nil {
			wst.queue(outbound{msg: reply})
		}
	}
}

// drop unregisters and closes a client. It is safe to call twice.
func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	wst.clientsMu.Unlock()

	if ok {
		total := wst.count.Add(-1)
		conn.Close()
		wlog.Infof("client %s disconnected, total: %d", conn.RemoteAddr(), total)
	}
}

func (wst *WebSocketTransport) queue(o outbound) {
	select {
	case wst.broadcast <- o:
	default:
		wst.dropped.Add(1)
	}
}

// handleBroadcasts performs every write, so each connection has one writer.
func (wst *WebSocketTransport) handleBroadcasts() {
	defer close(wst.done)
	for {
		select {
		case <-wst.stop:
			return
		case o := <-wst.broadcast:
			if o.to != nil {
				wst.write(o.to, func(c *websocket.Conn) error { return c.WriteJSON(o.msg) })
				continue
			}
			wst.each(func(c *websocket.Conn) error { return c.WriteJSON(o.msg) })
		case img := <-wst.frames:
			wst.jpegBuf.Reset()
			if err := jpeg.Encode(&wst.jpegBuf, img, &jpeg.Options{Quality: wst.quality}); err != nil {
				wlog.Errorf("jpeg encode: %v", err)
				continue
			}
			payload := wst.jpegBuf.Bytes()
			wst.each(func(c *websocket.Conn) error { return c.WriteMessage(websocket.BinaryMessage, payload) })
			wst.sent.Add(1)
		}
	}
}

func (wst *WebSocketTransport) each(fn func(*websocket.Conn) error) {
	wst.clientsMu.Lock()
	conns := make([]*websocket.Conn, 0, len(wst.clients))
	for c := range wst.clients {
		conns = append(conns, c)
	}
	wst.clientsMu.Unlock()

	for _, c := range conns {
		wst.write(c, fn)
	}
}

func (wst *WebSocketTransport) write(c *websocket.Conn, fn func(*websocket.Conn) error) {
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	if err := fn(c); err != nil {
		wlog.Warnf("error sending to client %s: %v", c.RemoteAddr(), err)
		wst.drop(c)
	}
}

// Send broadcasts data as JSON to all connected clients. Messages are
// dropped rather than queued without bound when clients are slow.
func (wst *WebSocketTransport) Send(data any) error {
	if wst.Clients() == 0 {
		return nil
	}
	wst.queue(outbound{msg: data})
	return nil
}

// WantsFrame reports whether a frame would be delivered now.
func (wst *WebSocketTransport) WantsFrame() bool {
	return wst.Clients() > 0 && len(wst.frames) == 0
}

// SendFrame queues img for JPEG encoding. A frame arriving while the previous
// one is still pending is dropped.
func (wst *WebSocketTransport) SendFrame(img *image.RGBA) error {
	if wst.Clients() == 0 {
		return nil
	}
	select {
	case wst.frames <- img:
	default:
		wst.dropped.Add(1)
	}
	return nil
}

// Close shuts down the WebSocket server
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		wlog.Infof("closing (%d frames sent, %d messages dropped)", wst.sent.Load(), wst.dropped.Load())
		close(wst.stop)
		<-wst.done

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.count.Store(0)
		wst.clientsMu.Unlock()

		if wst.server != nil {
			err = wst.server.Close()
		}
	})
	return err
}

// Ensure WebSocketTransport satisfies the interfaces
var (
	_ Transport = (*WebSocketTransport)(nil)
	_ FrameSink = (*WebSocketTransport)(nil)
)
