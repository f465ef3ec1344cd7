package ws

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/audit"
)

// Table is the authoritative map from user id to that user's single live
// session. It is the one answer to "is this user reachable for direct relay".
type Table struct {
	mu       sync.RWMutex
	sessions map[string]Conn
}

func NewTable() *Table {
	return &Table{sessions: make(map[string]Conn)}
}

// Register installs the session as the one live connection for the user,
// evicting and closing any prior session. The close happens outside the lock;
// only the map swap is serialized.
func (t *Table) Register(userID string, conn Conn) (evicted Conn) {
	t.mu.Lock()
	evicted = t.sessions[userID]
	t.sessions[userID] = conn
	t.mu.Unlock()

	if evicted != nil {
		log.Info().
			Str("userId", userID).
			Str("oldSessionId", evicted.ID()).
			Str("newSessionId", conn.ID()).
			Msg("evicting prior session")
		audit.Log(context.Background(), audit.Event{
			Type:      audit.EventSessionEvicted,
			UserID:    userID,
			SessionID: evicted.ID(),
		})
		evicted.Close(websocket.CloseNormalClosure, "superseded by newer connection")
	}
	return evicted
}

func (t *Table) Lookup(userID string) (Conn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	conn, ok := t.sessions[userID]
	return conn, ok
}

// Remove deregisters only if the registered session still has the given
// session id. A slow-closing old session cannot evict the newer one it lost
// a reconnect race to.
func (t *Table) Remove(userID, sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.sessions[userID]
	if !ok || current.ID() != sessionID {
		return false
	}
	delete(t.sessions, userID)
	return true
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// LiveKey exposes the captured public key of a user's live session. It backs
// the middle tier of the key resolver: fresher than the TTL cache, cheaper
// than the durable store.
func (t *Table) LiveKey(userID string) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	conn, ok := t.sessions[userID]
	if !ok {
		return nil, false
	}
	return conn.PublicKey(), true
}
