// Package partner exposes lead and request submission to third parties
// holding an API key, and the admin endpoints that manage those keys.
package partner

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"raccordement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const keyPrefix = "pk_"

// APIKey is a partner credential. Only the hash is stored.
type APIKey struct {
	ID         uuid.UUID
	Name       string
	KeyHash    string
	KeyPrefix  string
	IsActive   bool
	CreatedBy  *uuid.UUID
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GenerateAPIKey returns a new plaintext key with its hash and display
// prefix. The plaintext is shown once and never stored.
func GenerateAPIKey() (plaintext, hash, prefix string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", "", err
	}
	plaintext = keyPrefix + hex.EncodeToString(buf)
	return plaintext, HashKey(plaintext), plaintext[:len(keyPrefix)+8], nil
}

func HashKey(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}

const keyColumns = `id, name, key_hash, key_prefix, is_active, created_by, last_used_at, created_at, updated_at`

func scanKey(row pgx.Row) (APIKey, error) {
	var k APIKey
	err := row.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.IsActive, &k.CreatedBy, &k.LastUsedAt, &k.CreatedAt, &k.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return APIKey{}, apperr.NotFound("partner API key not found")
	}
	return k, err
}

func (r *Repository) Create(ctx context.Context, name, keyHash, prefix string, createdBy *uuid.UUID) (APIKey, error) {
	return scanKey(r.pool.QueryRow(ctx, `
		INSERT INTO rac_partner_api_keys (name, key_hash, key_prefix, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING `+keyColumns, name, keyHash, prefix, createdBy))
}

// GetByHash returns an active key.
func (r *Repository) GetByHash(ctx context.Context, keyHash string) (APIKey, error) {
	return scanKey(r.pool.QueryRow(ctx, `
		SELECT `+keyColumns+`
		FROM rac_partner_api_keys
		WHERE key_hash = $1 AND is_active = true`, keyHash))
}

func (r *Repository) List(ctx context.Context) ([]APIKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+keyColumns+`
		FROM rac_partner_api_keys
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]APIKey, 0)
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Revoke deactivates a key. Revoked keys stay listed.
func (r *Repository) Revoke(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE rac_partner_api_keys SET is_active = false, updated_at = now()
		WHERE id = $1 AND is_active = true`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("partner API key not found")
	}
	return nil
}

func (r *Repository) Touch(ctx context.Context, id uuid.UUID) {
	_, _ = r.pool.Exec(ctx, `UPDATE rac_partner_api_keys SET last_used_at = now() WHERE id = $1`, id)
}
