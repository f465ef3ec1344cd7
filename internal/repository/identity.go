package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// IdentityRepository reads users' long-term public keys from the durable
// identity store. Key registration lives with the user-profile service; this
// subsystem only resolves.
type IdentityRepository interface {
	// GetPublicKey returns nil with no error when the user is unknown.
	GetPublicKey(ctx context.Context, userID string) ([]byte, error)
}

type identityRepo struct {
	db *sqlx.DB
}

func NewIdentityRepository(db *sqlx.DB) IdentityRepository {
	return &identityRepo{db: db}
}

func (r *identityRepo) GetPublicKey(ctx context.Context, userID string) ([]byte, error) {
	var key []byte
	err := r.db.GetContext(ctx, &key, `
		SELECT public_key FROM user_identities WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}
