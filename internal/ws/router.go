package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/audit"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/config"
	apperrors "github.com/martinsmelkis/bartering-app-backend-sub000/internal/errors"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/model"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/service"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/util"
)

// Narrow views of the service layer, one per concern the router touches.
// The concrete services satisfy these; tests substitute stubs.
type authenticator interface {
	Authenticate(ctx context.Context, req service.AuthRequest) (*service.Identity, error)
}

type keyResolver interface {
	Resolve(ctx context.Context, userID string) ([]byte, error)
}

type mailbox interface {
	Store(ctx context.Context, params model.CreateOfflineMessageParams) (*model.OfflineMessage, error)
	Pending(ctx context.Context, recipientID string) ([]model.OfflineMessage, error)
	MarkDelivered(ctx context.Context, id string) error
}

type receiptTracker interface {
	Track(ctx context.Context, messageID, recipientID, senderID string, status model.ReceiptStatus) error
}

type engagementTracker interface {
	RecordRelay(senderID, recipientID string, at time.Time)
	ClearUser(userID string)
}

type notifier interface {
	PushNotification(ctx context.Context, userID string, payload any)
	DrainPendingFiles(ctx context.Context, userID string) ([]json.RawMessage, error)
}

type taskPool interface {
	Submit(name string, task service.Task) bool
}

// Router owns the per-connection event loop: it authenticates the first
// frame, registers the session, flushes queued state, and relays everything
// after that. One goroutine per connection; side effects go to the pool.
type Router struct {
	table         *Table
	auth          authenticator
	keys          keyResolver
	mailbox       mailbox
	receipts      receiptTracker
	engagement    engagementTracker
	notifier      notifier
	pool          taskPool
	allowedOrigin string
	upgrader      websocket.Upgrader
}

// NewRouter builds the connection router. An empty allowedOrigin accepts any
// Origin header and delegates the check to the edge proxy.
func NewRouter(
	table *Table,
	auth authenticator,
	keys keyResolver,
	mailbox mailbox,
	receipts receiptTracker,
	engagement engagementTracker,
	notifier notifier,
	pool taskPool,
	allowedOrigin string,
) *Router {
	r := &Router{
		table:         table,
		auth:          auth,
		keys:          keys,
		mailbox:       mailbox,
		receipts:      receipts,
		engagement:    engagement,
		notifier:      notifier,
		pool:          pool,
		allowedOrigin: allowedOrigin,
	}
	r.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     r.checkOrigin,
	}
	return r
}

func (r *Router) checkOrigin(req *http.Request) bool {
	if r.allowedOrigin == "" {
		return true
	}
	origin := req.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients send no Origin header.
		return true
	}
	return strings.EqualFold(origin, r.allowedOrigin)
}

// ServeHTTP upgrades the connection and runs its read loop to completion.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	session := NewSession(conn)
	go session.writePump()
	r.serve(session)
}

func (r *Router) serve(s *Session) {
	ctx := context.Background()

	s.conn.SetReadLimit(config.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(config.PongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	if !r.handshake(ctx, s) {
		return
	}

	defer func() {
		if r.table.Remove(s.UserID(), s.ID()) {
			// Only the last session for the user clears conversation state; an
			// evicted session must not wipe state the successor is still using.
			r.engagement.ClearUser(s.UserID())
		}
		audit.Log(ctx, audit.Event{
			Type:      audit.EventSessionClose,
			UserID:    s.UserID(),
			SessionID: s.ID(),
		})
		s.Close(websocket.CloseNormalClosure, "")
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("sessionId", s.ID()).Msg("read loop ended")
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			r.sendError(s, apperrors.Protocol("malformed frame"))
			continue
		}

		r.dispatch(ctx, s, frame)
	}
}

// handshake reads and validates the auth frame. Any failure closes the
// transport with a policy-violation code and a non-descriptive reason; the
// specific cause goes to the audit log only.
func (r *Router) handshake(ctx context.Context, s *Session) bool {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		s.Close(websocket.CloseNormalClosure, "")
		return false
	}

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type != FrameAuth {
		r.rejectAuth(ctx, s, "", apperrors.Protocol("expected auth frame"))
		return false
	}

	var payload AuthPayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		r.rejectAuth(ctx, s, "", apperrors.Protocol("malformed auth frame"))
		return false
	}

	identity, err := r.auth.Authenticate(ctx, service.AuthRequest{
		UserID:     payload.UserID,
		PeerUserID: payload.PeerUserID,
		UserName:   payload.UserName,
		PublicKey:  payload.PublicKey,
		Timestamp:  payload.Timestamp,
		Signature:  payload.Signature,
	})
	if err != nil {
		if apperrors.IsAuthFailure(err) {
			r.rejectAuth(ctx, s, payload.UserID, err)
		} else {
			// A collaborator outage is not the peer's fault; close with an
			// internal code instead of branding it a policy violation.
			log.Error().Err(err).Str("userId", payload.UserID).Msg("handshake lookup failed")
			s.Close(websocket.CloseInternalServerErr, "")
		}
		return false
	}

	s.bindIdentity(identity.UserID, identity.DisplayName, identity.PublicKey)
	r.table.Register(identity.UserID, s)

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionRegister,
		UserID:    identity.UserID,
		PeerID:    identity.PeerID,
		SessionID: s.ID(),
	})

	r.sendFrame(s, FrameAuthOK, AuthOKPayload{SessionID: s.ID(), UserID: identity.UserID})
	r.announcePeerKey(ctx, s, identity.PeerID)
	r.flushMailbox(ctx, s)
	r.flushPendingFiles(ctx, s)
	return true
}

func (r *Router) rejectAuth(ctx context.Context, s *Session, userID string, err error) {
	audit.Log(ctx, audit.Event{
		Type:      audit.EventAuthFailure,
		UserID:    userID,
		SessionID: s.ID(),
		Details:   map[string]interface{}{"code": string(apperrors.GetCode(err))},
	})
	s.Close(websocket.ClosePolicyViolation, "policy violation")
}

// announcePeerKey resolves the declared peer's key so the client can encrypt
// without a separate round trip. A missing peer is not an error; the client
// falls back to asking later.
func (r *Router) announcePeerKey(ctx context.Context, s *Session, peerID string) {
	key, err := r.keys.Resolve(ctx, peerID)
	if err != nil {
		log.Error().Err(err).Str("peerId", peerID).Msg("peer key resolution failed")
		return
	}
	if key == nil {
		return
	}

	s.SetPeerKey(key)
	r.sendFrame(s, FramePeerKey, PeerKeyPayload{UserID: peerID, PublicKey: util.EncodeKey(key)})
}

// dispatch classifies one post-auth frame. Protocol errors are scoped to the
// frame; they never terminate the connection.
func (r *Router) dispatch(ctx context.Context, s Conn, frame Frame) {
	switch frame.Type {
	case FrameChat:
		var payload ChatPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			r.sendError(s, apperrors.Protocol("malformed chat frame"))
			return
		}
		r.handleChat(ctx, s, payload)

	case FrameReadReceipt:
		var payload ReadReceiptPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			r.sendError(s, apperrors.Protocol("malformed read receipt frame"))
			return
		}
		r.handleReadReceipt(ctx, s, payload)

	case FrameAuth:
		r.sendError(s, apperrors.Protocol("already authenticated"))

	default:
		r.sendError(s, apperrors.Protocol("unrecognized frame type"))
	}
}

// handleChat drives one message through Received -> Classified ->
// {Relayed | Queued} -> Acknowledged. Delivery is attempt-and-fallback: a
// failed send to a stale session takes the offline path, no liveness flag is
// consulted first.
func (r *Router) handleChat(ctx context.Context, sender Conn, payload ChatPayload) {
	if payload.RecipientID == "" || payload.EncryptedPayload == "" {
		r.sendError(sender, apperrors.InvalidInput("chat frame", "recipientId and encryptedPayload are required"))
		return
	}

	messageID := uuid.NewString()
	sentAt := time.Now()

	// The display name bound at auth is authoritative; the payload field only
	// covers sessions that authenticated without one.
	senderName := sender.DisplayName()
	if senderName == "" {
		senderName = payload.SenderName
	}

	if recipient, ok := r.table.Lookup(payload.RecipientID); ok {
		frame, err := NewFrame(FrameMessage, MessagePayload{
			SenderID:        sender.UserID(),
			Text:            payload.EncryptedPayload,
			Timestamp:       sentAt,
			RecipientID:     payload.RecipientID,
			ServerMessageID: messageID,
			SenderName:      senderName,
		})
		if err == nil && recipient.Send(frame) == nil {
			r.acknowledgeRelay(sender, messageID, payload.RecipientID, sentAt)
			return
		}
		// Send failed after a positive lookup: the session is stale or its
		// buffer is wedged. Fall through to the offline path.
	}

	r.queueOffline(ctx, sender, messageID, senderName, payload, sentAt)
}

// acknowledgeRelay handles the online branch: SENT to the sender now,
// receipts and delivery status off the hot path. A successful transport write
// is recorded as DELIVERED; this deliberately means "left the server", not
// "reached the client".
func (r *Router) acknowledgeRelay(sender Conn, messageID, recipientID string, sentAt time.Time) {
	r.sendFrame(sender, FrameStatus, StatusPayload{MessageID: messageID, Status: model.ReceiptStatusSent})

	senderID := sender.UserID()
	r.pool.Submit("relay-receipts", func(ctx context.Context) {
		if err := r.receipts.Track(ctx, messageID, recipientID, senderID, model.ReceiptStatusSent); err != nil {
			log.Error().Err(err).Str("messageId", messageID).Msg("failed to track sent receipt")
		}
		if err := r.receipts.Track(ctx, messageID, recipientID, senderID, model.ReceiptStatusDelivered); err != nil {
			log.Error().Err(err).Str("messageId", messageID).Msg("failed to track delivered receipt")
			return
		}
		r.pushStatus(senderID, messageID, model.ReceiptStatusDelivered)
	})

	r.engagement.RecordRelay(senderID, recipientID, sentAt)
}

// queueOffline handles the fallback branch. A store failure is surfaced to
// the sender explicitly: it is not "offline, will deliver later", the
// at-least-once guarantee is void for that message.
func (r *Router) queueOffline(ctx context.Context, sender Conn, messageID, senderName string, payload ChatPayload, sentAt time.Time) {
	_, err := r.mailbox.Store(ctx, model.CreateOfflineMessageParams{
		ID:          messageID,
		SenderID:    sender.UserID(),
		RecipientID: payload.RecipientID,
		SenderName:  senderName,
		Payload:     payload.EncryptedPayload,
		SentAt:      sentAt,
	})
	if err != nil {
		log.Error().Err(err).Str("messageId", messageID).Msg("offline store write failed")
		r.sendError(sender, apperrors.Storage(err))
		return
	}

	r.sendFrame(sender, FrameStatus, StatusPayload{MessageID: messageID, Status: model.ReceiptStatusSent})

	senderID := sender.UserID()
	recipientID := payload.RecipientID
	r.pool.Submit("offline-side-effects", func(ctx context.Context) {
		if err := r.receipts.Track(ctx, messageID, recipientID, senderID, model.ReceiptStatusSent); err != nil {
			log.Error().Err(err).Str("messageId", messageID).Msg("failed to track sent receipt")
		}
		r.notifier.PushNotification(ctx, recipientID, map[string]string{
			"type":       "chat_message",
			"senderId":   senderID,
			"senderName": senderName,
		})
	})
}

// handleReadReceipt advances the receipt to READ and forwards the status to
// the original sender when reachable; otherwise the persisted receipt serves
// later polling.
func (r *Router) handleReadReceipt(ctx context.Context, s Conn, payload ReadReceiptPayload) {
	if payload.MessageID == "" || payload.SenderID == "" {
		r.sendError(s, apperrors.InvalidInput("read receipt frame", "messageId and senderId are required"))
		return
	}

	readerID := s.UserID()
	r.pool.Submit("read-receipt", func(ctx context.Context) {
		if err := r.receipts.Track(ctx, payload.MessageID, readerID, payload.SenderID, model.ReceiptStatusRead); err != nil {
			log.Error().Err(err).Str("messageId", payload.MessageID).Msg("failed to track read receipt")
		}
	})

	r.pushStatus(payload.SenderID, payload.MessageID, model.ReceiptStatusRead)
}

// flushMailbox replays queued messages in original send order, marking each
// delivered as it is pushed. A mid-flush transport failure leaves the
// remainder pending for the next connect.
func (r *Router) flushMailbox(ctx context.Context, s Conn) {
	msgs, err := r.mailbox.Pending(ctx, s.UserID())
	if err != nil {
		log.Error().Err(err).Str("userId", s.UserID()).Msg("failed to load offline mailbox")
		return
	}
	if len(msgs) == 0 {
		return
	}

	log.Info().Str("userId", s.UserID()).Int("count", len(msgs)).Msg("flushing offline mailbox")

	for _, msg := range msgs {
		frame, err := NewFrame(FrameMessage, MessagePayload{
			SenderID:        msg.SenderID,
			Text:            msg.Payload,
			Timestamp:       msg.SentAt,
			RecipientID:     msg.RecipientID,
			ServerMessageID: msg.ID,
			SenderName:      msg.SenderName,
		})
		if err != nil {
			continue
		}
		if s.Send(frame) != nil {
			return
		}

		if err := r.mailbox.MarkDelivered(ctx, msg.ID); err != nil {
			log.Error().Err(err).Str("messageId", msg.ID).Msg("failed to mark offline message delivered")
		}

		messageID, senderID, recipientID := msg.ID, msg.SenderID, msg.RecipientID
		r.pool.Submit("flush-receipts", func(ctx context.Context) {
			if err := r.receipts.Track(ctx, messageID, recipientID, senderID, model.ReceiptStatusDelivered); err != nil {
				log.Error().Err(err).Str("messageId", messageID).Msg("failed to track delivered receipt")
				return
			}
			r.pushStatus(senderID, messageID, model.ReceiptStatusDelivered)
		})

		r.engagement.RecordRelay(msg.SenderID, msg.RecipientID, time.Now())
	}
}

// flushPendingFiles delivers queued file-transfer notices from the artifact
// queue on connect.
func (r *Router) flushPendingFiles(ctx context.Context, s Conn) {
	notices, err := r.notifier.DrainPendingFiles(ctx, s.UserID())
	if err != nil {
		log.Error().Err(err).Str("userId", s.UserID()).Msg("failed to drain pending file notices")
		return
	}

	for _, notice := range notices {
		if err := s.Send(Frame{Type: FrameFilePending, Data: notice}); err != nil {
			return
		}
	}
}

// pushStatus sends a delivery-status frame to a user when reachable.
// Best-effort; the durable receipt is the source of truth.
func (r *Router) pushStatus(userID, messageID string, status model.ReceiptStatus) {
	conn, ok := r.table.Lookup(userID)
	if !ok {
		return
	}
	frame, err := NewFrame(FrameStatus, StatusPayload{MessageID: messageID, Status: status})
	if err != nil {
		return
	}
	if err := conn.Send(frame); err != nil {
		log.Debug().Str("userId", userID).Msg("status push to unreachable session")
	}
}

func (r *Router) sendFrame(s Conn, frameType FrameType, payload any) {
	frame, err := NewFrame(frameType, payload)
	if err != nil {
		log.Error().Err(err).Str("frameType", string(frameType)).Msg("failed to build frame")
		return
	}
	if err := s.Send(frame); err != nil {
		log.Debug().Str("sessionId", s.ID()).Msg("frame send to closed session")
	}
}

func (r *Router) sendError(s Conn, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal("internal error")
	}
	r.sendFrame(s, FrameError, ErrorPayload{Code: string(appErr.Code), Message: appErr.Message})
}
