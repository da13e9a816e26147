package credentials

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ncecere/spendwatch/internal/db"
)

var ErrStoreUnavailable = errors.New("credentials store requires a database pool")

// PostgresStore serves provider queries and runs limit-checked writes in a
// transaction holding the owner's row lock.
type PostgresStore struct {
	*db.Queries
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool, queries *db.Queries) *PostgresStore {
	return &PostgresStore{Queries: queries, pool: pool}
}

// WithUserLock locks the user row FOR UPDATE, then calls fn with a store bound
// to the same transaction and the freshly read user. Concurrent writers for the
// same user queue behind the lock, so a count taken inside fn stays accurate
// until commit.
func (s *PostgresStore) WithUserLock(ctx context.Context, userID pgtype.UUID, fn func(Store, db.User) error) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	qtx := s.Queries.WithTx(tx)
	user, err := qtx.LockUserForUpdate(ctx, userID)
	if err != nil {
		return err
	}
	if err := fn(&PostgresStore{Queries: qtx}, user); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
