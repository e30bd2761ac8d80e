package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"MOTION_CAPTURE/go-backend/internal/models"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
	wsSendBuffer = 16
)

type WebSocketMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	ClientID  string      `json:"client_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type WebSocketClient struct {
	conn     *websocket.Conn
	clientID string
	send     chan WebSocketMessage
	done     chan struct{}
	once     sync.Once
}

func (c *WebSocketClient) close() {
	c.once.Do(func() { close(c.done) })
}

// enqueue drops the message when the client is slow or gone.
func (c *WebSocketClient) enqueue(msg WebSocketMessage) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

type WebSocketClients struct {
	mu      sync.RWMutex
	clients map[string]*WebSocketClient
}

func NewWebSocketClients() *WebSocketClients {
	return &WebSocketClients{clients: make(map[string]*WebSocketClient)}
}

func (wc *WebSocketClients) add(c *WebSocketClient) {
	wc.mu.Lock()
	wc.clients[c.clientID] = c
	wc.mu.Unlock()
}

func (wc *WebSocketClients) remove(c *WebSocketClient) {
	wc.mu.Lock()
	if wc.clients[c.clientID] == c {
		delete(wc.clients, c.clientID)
	}
	wc.mu.Unlock()
}

func (wc *WebSocketClients) Count() int {
	wc.mu.RLock()
	defer wc.mu.RUnlock()
	return len(wc.clients)
}

// CloseAll disconnects every client.
func (wc *WebSocketClients) CloseAll() int {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	n := len(wc.clients)
	for id, c := range wc.clients {
		c.close()
		delete(wc.clients, id)
	}
	return n
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.allowedOrigin(origin) != ""
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		s.metrics.IncrementWebSocketErrors()
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = "client-" + uuid.NewString()
	}

	client := &WebSocketClient{
		conn:     conn,
		clientID: clientID,
		send:     make(chan WebSocketMessage, wsSendBuffer),
		done:     make(chan struct{}),
	}
	s.clients.add(client)
	s.metrics.IncrementWebSocketConnections()
	s.logger.Info("WebSocket client connected", "client_id", clientID)

	client.enqueue(WebSocketMessage{
		Type:      "WELCOME",
		ClientID:  clientID,
		Timestamp: time.Now().Unix(),
		Payload: map[string]interface{}{
			"message": "Connected to motion capture server",
			"version": s.opts.Version,
		},
	})

	initial := s.jobs.Status()
	client.enqueue(s.statusMessage(clientID, initial))

	go s.writePump(client, initial)
	s.readPump(client)

	s.clients.remove(client)
	client.close()
	s.metrics.DecrementWebSocketConnections()
	s.logger.Info("WebSocket client disconnected", "client_id", clientID)
}

// readPump answers PING messages and returns when the connection drops.
func (s *Server) readPump(client *WebSocketClient) {
	client.conn.SetReadLimit(4096)
	client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg WebSocketMessage
		if err := client.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("WebSocket read error", "client_id", client.clientID, "error", err)
				s.metrics.IncrementWebSocketErrors()
			}
			return
		}
		s.metrics.IncrementWebSocketMessages()
		client.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		switch msg.Type {
		case "PING":
			client.enqueue(WebSocketMessage{
				Type:      "PONG",
				ClientID:  client.clientID,
				Timestamp: time.Now().Unix(),
			})
		case "STATUS":
			client.enqueue(s.statusMessage(client.clientID, s.jobs.Status()))
		default:
			s.logger.Debug("Unknown message type", "client_id", client.clientID, "type", msg.Type)
		}
	}
}

// writePump owns all writes to the connection and closes it on exit. It
// pushes a STATUS message whenever the job snapshot changes.
func (s *Server) writePump(client *WebSocketClient, last models.JobStatus) {
	poll := time.NewTicker(s.opts.WSPollInterval)
	ping := time.NewTicker(wsPingPeriod)
	defer func() {
		poll.Stop()
		ping.Stop()
		client.conn.Close()
	}()

	write := func(msg WebSocketMessage) bool {
		client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return client.conn.WriteJSON(msg) == nil
	}

	for {
		select {
		case <-client.done:
			client.conn.SetWriteDeadline(time.Now().Add(time.Second))
			client.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case msg := <-client.send:
			if !write(msg) {
				return
			}

		case <-poll.C:
			current := s.jobs.Status()
			if sameStatus(current, last) {
				continue
			}
			last = current
			if !write(s.statusMessage(client.clientID, current)) {
				return
			}

		case <-ping.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) statusMessage(clientID string, st models.JobStatus) WebSocketMessage {
	return WebSocketMessage{
		Type:      "STATUS",
		ClientID:  clientID,
		Timestamp: time.Now().Unix(),
		Payload:   st,
	}
}

func sameStatus(a, b models.JobStatus) bool {
	if a.JobID != b.JobID || a.State != b.State || a.Progress != b.Progress || a.Message != b.Message {
		return false
	}
	if (a.OutputFile == nil) != (b.OutputFile == nil) {
		return false
	}
	return a.OutputFile == nil || *a.OutputFile == *b.OutputFile
}
