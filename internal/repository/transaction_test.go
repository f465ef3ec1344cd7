package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/model"
)

func TestTransactionRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()

	t.Run("first insert creates the row", func(t *testing.T) {
		txn, created, err := repo.Create(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "alice", txn.UserAID)
		assert.Equal(t, "bob", txn.UserBID)
		assert.Equal(t, model.PairKey("alice", "bob"), txn.PairKey)
	})

	t.Run("duplicate insert returns the existing row", func(t *testing.T) {
		first, created, err := repo.Create(ctx, "carol", "dave")
		require.NoError(t, err)
		require.True(t, created)

		// Reversed argument order maps to the same pair key.
		second, created, err := repo.Create(ctx, "dave", "carol")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
	})
}

func TestTransactionRepository_CreateConcurrent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()

	type outcome struct {
		txn     *model.Transaction
		created bool
		err     error
	}

	const callers = 8
	results := make(chan outcome, callers)

	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < callers; i++ {
		go func() {
			start.Wait()
			txn, created, err := repo.Create(ctx, "erin", "frank")
			results <- outcome{txn: txn, created: created, err: err}
		}()
	}
	start.Done()

	ids := make(map[string]struct{})
	creators := 0
	for i := 0; i < callers; i++ {
		res := <-results
		require.NoError(t, res.err)
		require.NotNil(t, res.txn)
		ids[res.txn.ID] = struct{}{}
		if res.created {
			creators++
		}
	}

	// Everyone converged on one row, and exactly one caller created it.
	assert.Equal(t, 1, creators)
	assert.Len(t, ids, 1)

	txns, err := repo.FindBetween(ctx, "erin", "frank")
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestTransactionRepository_FindBetween(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()

	txns, err := repo.FindBetween(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, txns)

	_, _, err = repo.Create(ctx, "alice", "bob")
	require.NoError(t, err)

	txns, err = repo.FindBetween(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, model.PairKey("alice", "bob"), txns[0].PairKey)
}
