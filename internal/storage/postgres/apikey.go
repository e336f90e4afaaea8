package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketbay/storefront/internal/domain/auth"
)

const (
	getAPIKeyByHashSQL = `SELECT id, key_hash, name, scopes
		FROM api_keys WHERE key_hash = $1 AND active`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, scopes, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (key_hash) DO UPDATE SET name = EXCLUDED.name, active = TRUE`
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository provides API key lookups backed by PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// FindByHash looks up an active API key by its HMAC-SHA256 hash.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	rows, err := r.pool.Query(ctx, getAPIKeyByHashSQL, hash)
	if err != nil {
		return nil, fmt.Errorf("finding api key by hash: %w", err)
	}

	info, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (auth.APIKeyInfo, error) {
		var i auth.APIKeyInfo
		err := row.Scan(&i.ID, &i.KeyHash, &i.Name, &i.Scopes)
		return i, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("api key not found: %w", err)
		}
		return nil, fmt.Errorf("finding api key by hash: %w", err)
	}

	return &info, nil
}

// Upsert stores an API key hash. Used by the seed tool.
func (r *APIKeyRepository) Upsert(ctx context.Context, info auth.APIKeyInfo) error {
	_, err := r.pool.Exec(ctx, upsertAPIKeySQL, info.ID, info.KeyHash, info.Name, info.Scopes)
	if err != nil {
		return fmt.Errorf("upserting api key %q: %w", info.Name, err)
	}
	return nil
}
