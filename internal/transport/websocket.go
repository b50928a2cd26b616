// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"biosignal/internal/buffer"
	applog "biosignal/internal/log"

	"github.com/gorilla/websocket"
)

const writeWait = 2 * time.Second

// WebSocketSink broadcasts events as JSON to every client connected to /ws.
type WebSocketSink struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	server    *http.Server
	listener  net.Listener
}

// NewWebSocketSink listens on addr and starts serving. An addr with port 0
// picks a free port, see Addr.
func NewWebSocketSink(addr string) (*WebSocketSink, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on '%s': %w", addr, err)
	}

	ws := &WebSocketSink{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, 256),
		done:      make(chan struct{}),
		listener:  ln,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ws.handleWebSocket)
	ws.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		applog.Infof("WebSocketSink: Serving on ws://%s/ws", ln.Addr())
		if err := ws.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketSink: Server error: %v", err)
		}
	}()
	go ws.handleBroadcasts()

	return ws, nil
}

// Addr is the address the server is listening on.
func (ws *WebSocketSink) Addr() net.Addr {
	return ws.listener.Addr()
}

// ClientCount is the number of connected clients.
func (ws *WebSocketSink) ClientCount() int {
	ws.clientsMu.Lock()
	defer ws.clientsMu.Unlock()
	return len(ws.clients)
}

func (ws *WebSocketSink) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketSink: Upgrade error: %v", err)
		return
	}

	ws.clientsMu.Lock()
	ws.clients[conn] = true
	n := len(ws.clients)
	ws.clientsMu.Unlock()
	applog.Infof("WebSocketSink: Client connected, total: %d", n)

	// Clients never send; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				ws.drop(conn)
				return
			}
		}
	}()
}

func (ws *WebSocketSink) drop(conn *websocket.Conn) {
	ws.clientsMu.Lock()
	_, ok := ws.clients[conn]
	delete(ws.clients, conn)
	n := len(ws.clients)
	ws.clientsMu.Unlock()
	if ok {
		conn.Close()
		applog.Infof("WebSocketSink: Client disconnected, total: %d", n)
	}
}

func (ws *WebSocketSink) handleBroadcasts() {
	for {
		select {
		case <-ws.done:
			return
		case msg := <-ws.broadcast:
			ws.clientsMu.Lock()
			for client := range ws.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteJSON(msg); err != nil {
					applog.Warnf("WebSocketSink: Error sending to client: %v", err)
					client.Close()
					delete(ws.clients, client)
				}
			}
			ws.clientsMu.Unlock()
		}
	}
}

func (ws *WebSocketSink) send(msg any) error {
	select {
	case <-ws.done:
		return errors.New("websocket sink is closed")
	default:
	}
	select {
	case ws.broadcast <- msg:
		return nil
	default:
		return errors.New("websocket broadcast queue full")
	}
}

func (ws *WebSocketSink) SendBlock(ev buffer.BlockEvent) error {
	return ws.send(NewBlockMessage(ev))
}

func (ws *WebSocketSink) SendError(ev buffer.ErrorEvent) error {
	return ws.send(NewErrorMessage(ev))
}

// Close disconnects every client and shuts the server down.
func (ws *WebSocketSink) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		applog.Infof("WebSocketSink: Closing server")
		close(ws.done)

		ws.clientsMu.Lock()
		for client := range ws.clients {
			client.Close()
		}
		ws.clients = make(map[*websocket.Conn]bool)
		ws.clientsMu.Unlock()

		err = ws.server.Close()
	})
	return err
}

// Ensure WebSocketSink satisfies the interface
var _ Sink = (*WebSocketSink)(nil)
