package assistant

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// ConnectionRegistry tracks open chat sockets per portal session token.
type ConnectionRegistry struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Register adds conn under the portal token and connection ID.
func (m *ConnectionRegistry) Register(token, connID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[token]; !exists {
		m.active[token] = make(map[string]*websocket.Conn)
	}
	m.active[token][connID] = conn
	slog.Debug("Chat socket registered", "conn_id", connID)
}

// Unregister removes conn if it is still the one registered under connID.
func (m *ConnectionRegistry) Unregister(token, connID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, ok := m.active[token]
	if !ok {
		return
	}
	if current, exists := conns[connID]; exists && current == conn {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(m.active, token)
		}
		slog.Debug("Chat socket unregistered", "conn_id", connID)
	}
}

// count returns the number of open sockets for token.
func (m *ConnectionRegistry) count(token string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active[token])
}

// CloseSession closes every socket opened under token. The portal calls it
// on logout so a socket cannot outlive the login it was authorized by.
func (m *ConnectionRegistry) CloseSession(token string) {
	m.mu.Lock()
	conns := m.active[token]
	delete(m.active, token)
	m.mu.Unlock()

	for id, conn := range conns {
		_ = conn.Close(websocket.StatusPolicyViolation, "logged out")
		slog.Info("Chat socket closed", "conn_id", id)
	}
}

// CloseAll closes every tracked socket.
func (m *ConnectionRegistry) CloseAll() {
	m.mu.Lock()
	all := m.active
	m.active = make(map[string]map[string]*websocket.Conn)
	m.mu.Unlock()

	for _, conns := range all {
		for _, conn := range conns {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
	}
}
