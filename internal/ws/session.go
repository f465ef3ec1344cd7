package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/config"
)

// ErrSessionGone is returned by Send when the session is closed or its
// outbound buffer is full. The router treats it as "recipient absent" and
// falls back to the offline path.
var ErrSessionGone = errors.New("session closed or unreachable")

// Conn is one live authenticated connection. The connection table and router
// work against this interface; *Session is the production implementation.
type Conn interface {
	ID() string
	UserID() string
	DisplayName() string
	PublicKey() []byte
	PeerKey() []byte
	SetPeerKey(key []byte)
	Send(frame Frame) error
	Close(closeCode int, reason string)
}

// Session binds one websocket connection to an authenticated identity.
// Identity fields are set exactly once, after signature verification, before
// the session is registered anywhere.
type Session struct {
	id          string
	userID      string
	displayName string
	publicKey   []byte

	mu      sync.RWMutex
	peerKey []byte

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(conn *websocket.Conn) *Session {
	return &Session{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, config.SendBufferSize),
		done: make(chan struct{}),
	}
}

func (s *Session) ID() string          { return s.id }
func (s *Session) UserID() string      { return s.userID }
func (s *Session) DisplayName() string { return s.displayName }
func (s *Session) PublicKey() []byte   { return s.publicKey }

func (s *Session) PeerKey() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peerKey
}

func (s *Session) SetPeerKey(key []byte) {
	s.mu.Lock()
	s.peerKey = key
	s.mu.Unlock()
}

// bindIdentity is called by the router once authentication succeeds.
func (s *Session) bindIdentity(userID, displayName string, publicKey []byte) {
	s.userID = userID
	s.displayName = displayName
	s.publicKey = publicKey
}

// Send queues a frame for the write pump. Any failure means the recipient is
// effectively absent; callers fall back rather than retry.
func (s *Session) Send(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return ErrSessionGone
	default:
	}

	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return ErrSessionGone
	default:
		log.Warn().
			Str("sessionId", s.id).
			Str("userId", s.userID).
			Msg("session send buffer full, treating as unreachable")
		return ErrSessionGone
	}
}

// Close terminates the transport. Idempotent; safe to call from the table's
// eviction path and the router's defer concurrently.
func (s *Session) Close(closeCode int, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		deadline := time.Now().Add(config.WriteWait)
		msg := websocket.FormatCloseMessage(closeCode, reason)
		if err := s.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			log.Debug().Err(err).Str("sessionId", s.id).Msg("write close message")
		}
		s.conn.Close()
	})
}

// writePump serializes all writes to the underlying connection and keeps the
// peer alive with pings (gorilla single-writer requirement).
func (s *Session) writePump() {
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		s.Close(websocket.CloseNormalClosure, "")
	}()

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			return
		}
	}
}
