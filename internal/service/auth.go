package service

import (
	"context"
	"time"

	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/audit"
	apperrors "github.com/martinsmelkis/bartering-app-backend-sub000/internal/errors"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/repository"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/util"
)

// AuthRequest is the decoded first frame of a connection.
type AuthRequest struct {
	UserID     string
	PeerUserID string
	UserName   string
	PublicKey  string // base64
	Timestamp  int64  // unix seconds, signed into the challenge
	Signature  string // base64
}

// Identity is the authenticated outcome bound to a session for its lifetime.
// PublicKey is the registered key from the identity store, not the declared one.
type Identity struct {
	UserID      string
	PeerID      string
	DisplayName string
	PublicKey   []byte
}

// Authenticator validates the signed connection challenge. Rejection reasons
// stay internal: callers close the transport with a generic policy-violation
// reason and log the specific AppError code via audit. Collaborator outages
// come back as ErrCodeDatabase, outside the auth-failure family.
type Authenticator struct {
	keys          *KeyResolver
	relationships repository.RelationshipRepository
	freshness     time.Duration
	now           func() time.Time
}

func NewAuthenticator(keys *KeyResolver, relationships repository.RelationshipRepository, freshness time.Duration) *Authenticator {
	return &Authenticator{
		keys:          keys,
		relationships: relationships,
		freshness:     freshness,
		now:           time.Now,
	}
}

func (a *Authenticator) Authenticate(ctx context.Context, req AuthRequest) (*Identity, error) {
	if req.UserID == "" || req.PeerUserID == "" {
		return nil, apperrors.Unauthenticated()
	}

	sent := time.Unix(req.Timestamp, 0)
	age := a.now().Sub(sent)
	if age < 0 {
		age = -age
	}
	if age > a.freshness {
		return nil, apperrors.TimestampExpired()
	}

	declaredKey, err := util.DecodeKey(req.PublicKey)
	if err != nil {
		return nil, apperrors.Unauthenticated().WithCause(err)
	}
	signature, err := util.DecodeKey(req.Signature)
	if err != nil {
		return nil, apperrors.Unauthenticated().WithCause(err)
	}

	registeredKey, err := a.keys.Resolve(ctx, req.UserID)
	if err != nil {
		// A lookup failure is an outage, not a rejection. The caller closes
		// with an internal code instead of treating the peer as unauthorized.
		return nil, apperrors.Database(err)
	}
	if registeredKey == nil {
		return nil, apperrors.Unauthenticated()
	}

	if !util.KeysEqual(declaredKey, registeredKey) {
		return nil, apperrors.KeyMismatch()
	}

	if !util.VerifyChallenge(registeredKey, req.Timestamp, req.UserID, req.PeerUserID, signature) {
		return nil, apperrors.BadSignature()
	}

	blocked, err := a.relationships.IsBlocked(ctx, req.UserID, req.PeerUserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if blocked {
		audit.Log(ctx, audit.Event{
			Type:   audit.EventBlockedPair,
			UserID: req.UserID,
			PeerID: req.PeerUserID,
		})
		return nil, apperrors.Blocked()
	}

	audit.Log(ctx, audit.Event{
		Type:   audit.EventAuthSuccess,
		UserID: req.UserID,
		PeerID: req.PeerUserID,
	})

	return &Identity{
		UserID:      req.UserID,
		PeerID:      req.PeerUserID,
		DisplayName: req.UserName,
		PublicKey:   registeredKey,
	}, nil
}
