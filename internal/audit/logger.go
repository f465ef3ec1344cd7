package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventAuthSuccess        EventType = "auth_success"
	EventAuthFailure        EventType = "auth_failure"
	EventSessionRegister    EventType = "session_register"
	EventSessionEvicted     EventType = "session_evicted"
	EventSessionClose       EventType = "session_close"
	EventBlockedPair        EventType = "blocked_pair"
	EventKeyCacheInvalidate EventType = "key_cache_invalidate"
)

type Event struct {
	Type      EventType
	UserID    string
	PeerID    string
	SessionID string
	Details   map[string]interface{}
}

// Log writes a security audit event. Auth failures carry their detailed
// reason here only; clients receive a generic close reason.
func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.UserID != "" {
		logger = logger.With().Str("user_id", event.UserID).Logger()
	}
	if event.PeerID != "" {
		logger = logger.With().Str("peer_id", event.PeerID).Logger()
	}
	if event.SessionID != "" {
		logger = logger.With().Str("session_id", event.SessionID).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}
