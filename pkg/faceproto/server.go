package faceproto

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// DefaultAddr is the listen address for the command channel.
const DefaultAddr = ":8080"

// DefaultPath is the WebSocket endpoint path.
const DefaultPath = "/ws"

// readCeiling is a hard transport-level limit well above MaxMessageBytes.
// Messages between the two are dropped by the dispatcher without a reply;
// anything beyond this closes the connection.
const readCeiling = 1 << 20

// Server accepts WebSocket connections and feeds each inbound message to
// the dispatcher. Connections are independent; a malformed or oversized
// message never tears down the connection that sent it.
type Server struct {
	Addr       string // listen address, defaults to DefaultAddr
	Path       string // endpoint path, defaults to DefaultPath
	Dispatcher *Dispatcher

	mu      sync.Mutex
	running atomic.Bool
	srv     *http.Server
	ln      net.Listener
	conns   sync.WaitGroup
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Start binds the listener and begins serving. A bind failure is returned
// so the caller can abort startup. Start is idempotent.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil
	}

	addr := s.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	path := s.Path
	if path == "" {
		path = DefaultPath
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+path, s.handleWS)

	s.ln = ln
	s.srv = &http.Server{Handler: mux}
	s.running.Store(true)

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("faceproto: serve failed", "error", err)
		}
	}()

	slog.Info("faceproto: listening", "addr", ln.Addr().String(), "path", path)
	return nil
}

// Stop closes the listener and waits for connection handlers to drain.
// Stop is idempotent.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return
	}
	s.running.Store(false)

	s.srv.Close()
	s.srv = nil
	s.ln = nil
	s.conns.Wait()
	slog.Info("faceproto: stopped")
}

// LocalAddr returns the bound listener address, or nil when stopped.
func (s *Server) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.conns.Add(1)
	go func() {
		defer s.conns.Done()
		defer ws.Close()
		s.readLoop(ws)
	}()
}

func (s *Server) readLoop(ws *websocket.Conn) {
	ws.SetReadLimit(readCeiling)
	remote := ws.RemoteAddr().String()
	slog.Info("faceproto: client connected", "remote", remote)

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			slog.Info("faceproto: client disconnected", "remote", remote, "error", err)
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		reply := s.Dispatcher.Dispatch(data)
		if reply == nil {
			slog.Warn("faceproto: oversized message dropped", "remote", remote, "bytes", len(data))
			continue
		}
		if err := ws.WriteMessage(websocket.TextMessage, reply); err != nil {
			slog.Warn("faceproto: write failed", "remote", remote, "error", err)
			return
		}
	}
}
