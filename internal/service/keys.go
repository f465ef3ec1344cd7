package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/audit"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/repository"
)

// LiveKeySource is the connection table's view into captured session keys.
type LiveKeySource interface {
	LiveKey(userID string) ([]byte, bool)
}

type cachedKey struct {
	key       []byte
	expiresAt time.Time
}

// KeyResolver resolves a user's long-term public key through three tiers:
// a TTL-bounded in-memory cache, the live connection table (a connected
// user's captured key is authoritative), and the durable identity store.
type KeyResolver struct {
	mu    sync.RWMutex
	cache map[string]cachedKey

	ttl   time.Duration
	live  LiveKeySource
	store repository.IdentityRepository
	now   func() time.Time
}

func NewKeyResolver(store repository.IdentityRepository, live LiveKeySource, ttl time.Duration) *KeyResolver {
	return &KeyResolver{
		cache: make(map[string]cachedKey),
		ttl:   ttl,
		live:  live,
		store: store,
		now:   time.Now,
	}
}

// Resolve returns nil with no error for an unknown user.
func (r *KeyResolver) Resolve(ctx context.Context, userID string) ([]byte, error) {
	r.mu.RLock()
	entry, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok && r.now().Before(entry.expiresAt) {
		return entry.key, nil
	}

	if key, ok := r.live.LiveKey(userID); ok && key != nil {
		r.put(userID, key)
		return key, nil
	}

	key, err := r.store.GetPublicKey(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("identity store lookup: %w", err)
	}
	if key == nil {
		return nil, nil
	}

	r.put(userID, key)
	return key, nil
}

// Invalidate drops a cached key. Deployments that rotate keys must call this
// on rotation; entries are otherwise trusted until TTL expiry.
func (r *KeyResolver) Invalidate(userID string) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()

	audit.Log(context.Background(), audit.Event{
		Type:   audit.EventKeyCacheInvalidate,
		UserID: userID,
	})
}

func (r *KeyResolver) put(userID string, key []byte) {
	r.mu.Lock()
	r.cache[userID] = cachedKey{key: key, expiresAt: r.now().Add(r.ttl)}
	r.mu.Unlock()

	log.Debug().Str("userId", userID).Msg("public key cached")
}
