package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/martinsmelkis/bartering-app-backend-sub000/internal/errors"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/util"
)

type authFixture struct {
	auth          *Authenticator
	identityRepo  *mockIdentityRepo
	relationships *mockRelationshipRepo
	pub           ed25519.PublicKey
	priv          ed25519.PrivateKey
	now           time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	identityRepo := new(mockIdentityRepo)
	relationships := new(mockRelationshipRepo)

	keys := NewKeyResolver(identityRepo, newStubLiveKeys(), time.Hour)
	auth := NewAuthenticator(keys, relationships, 5*time.Minute)

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return now }

	return &authFixture{
		auth:          auth,
		identityRepo:  identityRepo,
		relationships: relationships,
		pub:           pub,
		priv:          priv,
		now:           now,
	}
}

func (f *authFixture) signedRequest(userID, peerID string, ts int64) AuthRequest {
	sig := ed25519.Sign(f.priv, []byte(util.BuildChallenge(ts, userID, peerID)))
	return AuthRequest{
		UserID:     userID,
		PeerUserID: peerID,
		UserName:   "Alice",
		PublicKey:  util.EncodeKey(f.pub),
		Timestamp:  ts,
		Signature:  util.EncodeKey(sig),
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts a valid signed challenge", func(t *testing.T) {
		f := newAuthFixture(t)
		f.identityRepo.On("GetPublicKey", ctx, "alice").Return([]byte(f.pub), nil)
		f.relationships.On("IsBlocked", ctx, "alice", "bob").Return(false, nil)

		identity, err := f.auth.Authenticate(ctx, f.signedRequest("alice", "bob", f.now.Unix()))
		require.NoError(t, err)
		assert.Equal(t, "alice", identity.UserID)
		assert.Equal(t, "bob", identity.PeerID)
		assert.Equal(t, "Alice", identity.DisplayName)
		assert.Equal(t, []byte(f.pub), identity.PublicKey)
	})

	t.Run("binds the registered key, not the declared one", func(t *testing.T) {
		f := newAuthFixture(t)
		f.identityRepo.On("GetPublicKey", ctx, "alice").Return([]byte(f.pub), nil)
		f.relationships.On("IsBlocked", ctx, "alice", "bob").Return(false, nil)

		identity, err := f.auth.Authenticate(ctx, f.signedRequest("alice", "bob", f.now.Unix()))
		require.NoError(t, err)
		assert.Equal(t, []byte(f.pub), identity.PublicKey)
	})

	t.Run("rejects missing user ids", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.auth.Authenticate(ctx, AuthRequest{PeerUserID: "bob"})
		assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.GetCode(err))

		_, err = f.auth.Authenticate(ctx, AuthRequest{UserID: "alice"})
		assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.GetCode(err))
	})

	t.Run("rejects a timestamp older than the freshness window", func(t *testing.T) {
		f := newAuthFixture(t)

		ts := f.now.Add(-6 * time.Minute).Unix()
		_, err := f.auth.Authenticate(ctx, f.signedRequest("alice", "bob", ts))
		assert.Equal(t, apperrors.ErrCodeTimestampExpired, apperrors.GetCode(err))
	})

	t.Run("rejects a timestamp too far in the future", func(t *testing.T) {
		f := newAuthFixture(t)

		ts := f.now.Add(10 * time.Minute).Unix()
		_, err := f.auth.Authenticate(ctx, f.signedRequest("alice", "bob", ts))
		assert.Equal(t, apperrors.ErrCodeTimestampExpired, apperrors.GetCode(err))
	})

	t.Run("accepts slight clock skew inside the window", func(t *testing.T) {
		f := newAuthFixture(t)
		f.identityRepo.On("GetPublicKey", ctx, "alice").Return([]byte(f.pub), nil)
		f.relationships.On("IsBlocked", ctx, "alice", "bob").Return(false, nil)

		ts := f.now.Add(2 * time.Minute).Unix()
		_, err := f.auth.Authenticate(ctx, f.signedRequest("alice", "bob", ts))
		assert.NoError(t, err)
	})

	t.Run("rejects undecodable key material", func(t *testing.T) {
		f := newAuthFixture(t)

		req := f.signedRequest("alice", "bob", f.now.Unix())
		req.PublicKey = "%%% not base64 %%%"
		_, err := f.auth.Authenticate(ctx, req)
		assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.GetCode(err))
	})

	t.Run("rejects an unknown user", func(t *testing.T) {
		f := newAuthFixture(t)
		f.identityRepo.On("GetPublicKey", ctx, "alice").Return(nil, nil)

		_, err := f.auth.Authenticate(ctx, f.signedRequest("alice", "bob", f.now.Unix()))
		assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.GetCode(err))
	})

	t.Run("rejects a declared key that differs from the registered one", func(t *testing.T) {
		f := newAuthFixture(t)
		otherPub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		f.identityRepo.On("GetPublicKey", ctx, "alice").Return([]byte(otherPub), nil)

		_, err = f.auth.Authenticate(ctx, f.signedRequest("alice", "bob", f.now.Unix()))
		assert.Equal(t, apperrors.ErrCodeKeyMismatch, apperrors.GetCode(err))
	})

	t.Run("rejects a signature over altered fields", func(t *testing.T) {
		f := newAuthFixture(t)
		f.identityRepo.On("GetPublicKey", ctx, "alice").Return([]byte(f.pub), nil)

		// Signed for peer bob, presented as peer mallory.
		req := f.signedRequest("alice", "bob", f.now.Unix())
		req.PeerUserID = "mallory"
		_, err := f.auth.Authenticate(ctx, req)
		assert.Equal(t, apperrors.ErrCodeBadSignature, apperrors.GetCode(err))
	})

	t.Run("rejects a blocked pair in either direction", func(t *testing.T) {
		f := newAuthFixture(t)
		f.identityRepo.On("GetPublicKey", ctx, "alice").Return([]byte(f.pub), nil)
		f.relationships.On("IsBlocked", ctx, "alice", "bob").Return(true, nil)

		_, err := f.auth.Authenticate(ctx, f.signedRequest("alice", "bob", f.now.Unix()))
		assert.Equal(t, apperrors.ErrCodeBlocked, apperrors.GetCode(err))
	})

	t.Run("surfaces lookup failures outside the auth-failure family", func(t *testing.T) {
		f := newAuthFixture(t)
		f.identityRepo.On("GetPublicKey", ctx, "alice").Return(nil, assert.AnError)

		_, err := f.auth.Authenticate(ctx, f.signedRequest("alice", "bob", f.now.Unix()))
		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
		assert.False(t, apperrors.IsAuthFailure(err))
	})

	t.Run("surfaces block-list failures outside the auth-failure family", func(t *testing.T) {
		f := newAuthFixture(t)
		f.identityRepo.On("GetPublicKey", ctx, "alice").Return([]byte(f.pub), nil)
		f.relationships.On("IsBlocked", ctx, "alice", "bob").Return(false, assert.AnError)

		_, err := f.auth.Authenticate(ctx, f.signedRequest("alice", "bob", f.now.Unix()))
		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
		assert.False(t, apperrors.IsAuthFailure(err))
	})
}
