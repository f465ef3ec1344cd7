package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/repository"
)

// TransactionAnnouncer pushes a transaction-created notification to a party
// if that party has a live session. Implemented by the websocket layer.
type TransactionAnnouncer interface {
	AnnounceTransaction(userID, partnerID, transactionID string)
}

type pairKey struct {
	userID    string
	partnerID string
}

type convState struct {
	// lastReceivedAt is set when userID receives a message from partnerID and
	// consumed by userID's next message back, producing one latency sample.
	lastReceivedAt *time.Time
	// sent counts userID -> partnerID messages since the last trigger.
	sent int
}

// Engagement derives response-time samples and the mutual-engagement signal
// from the relay stream. All storage writes go through the worker pool; the
// relay path only touches the in-memory state under a short lock.
type Engagement struct {
	mu     sync.Mutex
	states map[pairKey]*convState

	analytics    repository.AnalyticsRepository
	transactions repository.TransactionRepository
	pool         *WorkerPool
	announce     TransactionAnnouncer
	now          func() time.Time
}

func NewEngagement(
	analytics repository.AnalyticsRepository,
	transactions repository.TransactionRepository,
	pool *WorkerPool,
	announce TransactionAnnouncer,
) *Engagement {
	return &Engagement{
		states:       make(map[pairKey]*convState),
		analytics:    analytics,
		transactions: transactions,
		pool:         pool,
		announce:     announce,
		now:          time.Now,
	}
}

// RecordRelay observes one successful relay (direct or queued) from sender to
// recipient. It never blocks on storage and never surfaces errors to the
// relay path.
func (e *Engagement) RecordRelay(senderID, recipientID string, at time.Time) {
	e.mu.Lock()

	// Response-time sample: the sender is replying if they have an unconsumed
	// received-at mark from this partner. Consume it.
	senderState := e.state(senderID, recipientID)
	var receivedAt *time.Time
	if senderState.lastReceivedAt != nil {
		receivedAt = senderState.lastReceivedAt
		senderState.lastReceivedAt = nil
	}

	// Mark the recipient as having received from the sender.
	recipientState := e.state(recipientID, senderID)
	now := at
	recipientState.lastReceivedAt = &now

	// Mutual engagement: one counted message in each direction. Counters are
	// reset under the same lock that detects the trigger, so a process fires
	// it at most once per exchange; the store's unique pair constraint guards
	// the cross-process race.
	senderState.sent++
	mutual := senderState.sent >= 1 && recipientState.sent >= 1
	if mutual {
		senderState.sent = 0
		recipientState.sent = 0
	}
	e.mu.Unlock()

	if receivedAt != nil {
		recv := *receivedAt
		e.pool.Submit("record-response-time", func(ctx context.Context) {
			if err := e.analytics.RecordResponseTime(ctx, senderID, recipientID, recv, at); err != nil {
				log.Error().Err(err).
					Str("userId", senderID).
					Str("partnerId", recipientID).
					Msg("failed to record response time")
			}
		})
	}

	if mutual {
		e.pool.Submit("create-transaction", func(ctx context.Context) {
			e.createTransaction(ctx, senderID, recipientID)
		})
	}
}

func (e *Engagement) createTransaction(ctx context.Context, a, b string) {
	existing, err := e.transactions.FindBetween(ctx, a, b)
	if err != nil {
		log.Error().Err(err).Str("userA", a).Str("userB", b).Msg("transaction lookup failed")
		return
	}
	if len(existing) > 0 {
		return
	}

	txn, created, err := e.transactions.Create(ctx, a, b)
	if err != nil {
		log.Error().Err(err).Str("userA", a).Str("userB", b).Msg("transaction creation failed")
		return
	}
	if !created {
		// Lost the creation race to a concurrent reply; the winner announces.
		return
	}

	log.Info().
		Str("transactionId", txn.ID).
		Str("userA", a).
		Str("userB", b).
		Msg("mutual engagement transaction created")

	e.announce.AnnounceTransaction(a, b, txn.ID)
	e.announce.AnnounceTransaction(b, a, txn.ID)
}

// ClearUser drops all conversation state touching the user. Called when the
// user's session is destroyed so abandoned half-conversations cannot
// accumulate.
func (e *Engagement) ClearUser(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for key := range e.states {
		if key.userID == userID || key.partnerID == userID {
			delete(e.states, key)
		}
	}
}

// StateCount reports tracked pair-direction entries (test and metrics hook).
func (e *Engagement) StateCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.states)
}

// state returns the entry for a directional pair, creating it lazily. Caller
// holds e.mu.
func (e *Engagement) state(userID, partnerID string) *convState {
	key := pairKey{userID: userID, partnerID: partnerID}
	st, ok := e.states[key]
	if !ok {
		st = &convState{}
		e.states[key] = st
	}
	return st
}
