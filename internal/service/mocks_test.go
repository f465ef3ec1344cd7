package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/model"
)

// Mock repositories

type mockIdentityRepo struct {
	mock.Mock
}

func (m *mockIdentityRepo) GetPublicKey(ctx context.Context, userID string) ([]byte, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type mockRelationshipRepo struct {
	mock.Mock
}

func (m *mockRelationshipRepo) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

type mockOfflineRepo struct {
	mock.Mock
}

func (m *mockOfflineRepo) Create(ctx context.Context, params model.CreateOfflineMessageParams) (*model.OfflineMessage, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OfflineMessage), args.Error(1)
}

func (m *mockOfflineRepo) FindPendingByRecipient(ctx context.Context, recipientID string) ([]model.OfflineMessage, error) {
	args := m.Called(ctx, recipientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OfflineMessage), args.Error(1)
}

func (m *mockOfflineRepo) MarkDelivered(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOfflineRepo) DeleteDeliveredBefore(ctx context.Context, deliveredBefore time.Time) (int64, error) {
	args := m.Called(ctx, deliveredBefore)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOfflineRepo) CountUndeliveredBefore(ctx context.Context, storedBefore time.Time) (int, error) {
	args := m.Called(ctx, storedBefore)
	return args.Int(0), args.Error(1)
}

type mockReceiptRepo struct {
	mock.Mock
}

func (m *mockReceiptRepo) Upsert(ctx context.Context, messageID, recipientID, senderID string, status model.ReceiptStatus) error {
	args := m.Called(ctx, messageID, recipientID, senderID, status)
	return args.Error(0)
}

func (m *mockReceiptRepo) Find(ctx context.Context, messageID, recipientID string) (*model.DeliveryReceipt, error) {
	args := m.Called(ctx, messageID, recipientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DeliveryReceipt), args.Error(1)
}

func (m *mockReceiptRepo) DeleteOlderThan(ctx context.Context, receivedBefore time.Time) (int64, error) {
	args := m.Called(ctx, receivedBefore)
	return args.Get(0).(int64), args.Error(1)
}

type mockAnalyticsRepo struct {
	mock.Mock
}

func (m *mockAnalyticsRepo) RecordResponseTime(ctx context.Context, userID, partnerID string, receivedAt, respondedAt time.Time) error {
	args := m.Called(ctx, userID, partnerID, receivedAt, respondedAt)
	return args.Error(0)
}

type mockTransactionRepo struct {
	mock.Mock
}

func (m *mockTransactionRepo) FindBetween(ctx context.Context, a, b string) ([]model.Transaction, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) Create(ctx context.Context, a, b string) (*model.Transaction, bool, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Transaction), args.Bool(1), args.Error(2)
}

// Stub collaborators

type stubLiveKeys struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func newStubLiveKeys() *stubLiveKeys {
	return &stubLiveKeys{keys: make(map[string][]byte)}
}

func (s *stubLiveKeys) set(userID string, key []byte) {
	s.mu.Lock()
	s.keys[userID] = key
	s.mu.Unlock()
}

func (s *stubLiveKeys) LiveKey(userID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[userID]
	return key, ok
}

type announcement struct {
	userID        string
	partnerID     string
	transactionID string
}

type stubAnnouncer struct {
	mu    sync.Mutex
	calls []announcement
}

func (s *stubAnnouncer) AnnounceTransaction(userID, partnerID, transactionID string) {
	s.mu.Lock()
	s.calls = append(s.calls, announcement{userID, partnerID, transactionID})
	s.mu.Unlock()
}

func (s *stubAnnouncer) announcements() []announcement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]announcement(nil), s.calls...)
}
