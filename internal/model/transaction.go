package model

import "time"

// Transaction is a barter transaction record created once two users have
// exchanged at least one message in each direction.
type Transaction struct {
	ID        string    `db:"id" json:"id"`
	UserAID   string    `db:"user_a_id" json:"userAId"`
	UserBID   string    `db:"user_b_id" json:"userBId"`
	PairKey   string    `db:"pair_key" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// PairKey builds the canonical key for an unordered user pair. Both directions
// of a conversation map to the same key, which backs the unique constraint
// that makes transaction creation idempotent.
func PairKey(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}
