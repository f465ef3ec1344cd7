package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// RelationshipRepository answers block queries against the external
// relationship store. Blocking is directional in storage but authentication
// rejects a pair when either direction blocks.
type RelationshipRepository interface {
	IsBlocked(ctx context.Context, a, b string) (bool, error)
}

type relationshipRepo struct {
	db *sqlx.DB
}

func NewRelationshipRepository(db *sqlx.DB) RelationshipRepository {
	return &relationshipRepo{db: db}
}

func (r *relationshipRepo) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	var blocked bool
	err := r.db.GetContext(ctx, &blocked, `
		SELECT EXISTS (
			SELECT 1 FROM user_blocks
			WHERE (blocker_id = $1 AND blocked_id = $2)
			   OR (blocker_id = $2 AND blocked_id = $1)
		)
	`, a, b)
	return blocked, err
}
