// Package status exposes machine telemetry over HTTP and WebSocket:
// the current cartesian position and the latest temperature readings.
// Diagnostic surface only; it never feeds back into the control path.
package status

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"printipi-go/pkg/kinematics"
	"printipi-go/pkg/log"
)

const writeTimeout = 10 * time.Second

// Source supplies the telemetry snapshot.
type Source interface {
	// Position returns the current effector position.
	Position() kinematics.Position

	// Temperatures returns the latest reading per sensor, in Celsius.
	Temperatures() map[string]float64
}

// Snapshot is one telemetry report.
type Snapshot struct {
	Time         time.Time           `json:"time"`
	Position     kinematics.Position `json:"position"`
	Temperatures map[string]float64  `json:"temperatures"`
}

// Server serves telemetry snapshots.
type Server struct {
	source Source
	logger *zap.SugaredLogger

	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[int64]*wsClient
	nextID  int64
}

// New returns a server reading from source.
func New(addr string, source Source, logger *zap.SugaredLogger) *Server {
	s := &Server{
		source:  source,
		logger:  log.OrNop(logger),
		clients: make(map[int64]*wsClient),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/websocket", s.handleWebSocket)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Stop. Blocks; run in its own goroutine.
func (s *Server) Start() error {
	s.logger.Infof("status server listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop closes the listener and every client connection.
func (s *Server) Stop() error {
	s.mu.Lock()
	for id, client := range s.clients {
		delete(s.clients, id)
		client.close()
	}
	s.mu.Unlock()
	return s.httpServer.Close()
}

// Broadcast queues the current snapshot to every connected client. Each
// client's messages go through its own send channel; slow clients drop
// snapshots rather than stalling the broadcast.
func (s *Server) Broadcast() {
	snap := s.snapshot()

	s.mu.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.Unlock()

	for _, client := range clients {
		client.send(snap)
	}
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) removeClient(c *wsClient) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
}

func (s *Server) snapshot() Snapshot {
	return Snapshot{
		Time:         time.Now(),
		Position:     s.source.Position(),
		Temperatures: s.source.Temperatures(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
		s.logger.Debugf("status encode: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("websocket upgrade: %v", err)
		return
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	client := &wsClient{
		id:     id,
		conn:   conn,
		server: s,
		sendCh: make(chan Snapshot, 16),
		done:   make(chan struct{}),
	}
	s.clients[id] = client
	s.mu.Unlock()

	go client.writePump()
	go client.readPump()

	// Initial snapshot so a client needn't wait for the next broadcast.
	client.send(s.snapshot())
}

// wsClient is one websocket connection. The connection supports only one
// concurrent writer, so every outgoing snapshot goes through sendCh and
// writePump is the sole goroutine touching the write side.
type wsClient struct {
	id     int64
	conn   *websocket.Conn
	server *Server
	sendCh chan Snapshot
	done   chan struct{}
	mu     sync.Mutex
}

// send queues a snapshot without blocking. Snapshots are periodic, so a
// full channel just drops this one.
func (c *wsClient) send(snap Snapshot) {
	select {
	case c.sendCh <- snap:
	case <-c.done:
	default:
		c.server.logger.Debugf("dropping snapshot to client %d (channel full)", c.id)
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.conn.Close()
}

// readPump drains the connection until the client disconnects. Incoming
// messages carry no meaning; reading is how the disconnect is observed.
func (c *wsClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump serializes all writes to the connection.
func (c *wsClient) writePump() {
	defer c.close()
	for {
		select {
		case snap := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(snap); err != nil {
				c.server.logger.Debugf("websocket write to client %d: %v", c.id, err)
				return
			}
		case <-c.done:
			return
		}
	}
}
