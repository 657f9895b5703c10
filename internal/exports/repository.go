package exports

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"raccordement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const apiKeyPrefix = "gads_"

// APIKey is a credential allowed to download conversion exports.
type APIKey struct {
	ID         uuid.UUID
	Name       string
	KeyHash    string
	KeyPrefix  string
	IsActive   bool
	CreatedBy  *uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastUsedAt *time.Time
}

// ConversionEvent is a paid service request that came from a Google Ads click.
type ConversionEvent struct {
	RequestID   uuid.UUID
	PaymentID   uuid.UUID
	Reference   string
	GCLID       string
	Email       string
	Phone       string
	AmountCents int64
	PaidAt      time.Time
}

// ExportRecord is a conversion row already handed to Google Ads.
type ExportRecord struct {
	RequestID       uuid.UUID
	ConversionName  string
	ConversionTime  time.Time
	ConversionValue float64
	GCLID           string
	OrderID         string
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GenerateAPIKey returns a random key, its hash and its display prefix.
func GenerateAPIKey() (plaintext string, hash string, prefix string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", "", err
	}
	plaintext = apiKeyPrefix + hex.EncodeToString(bytes)
	return plaintext, HashKey(plaintext), plaintext[:12], nil
}

func HashKey(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}

const apiKeyColumns = `id, name, key_hash, key_prefix, is_active, created_by, created_at, updated_at, last_used_at`

func scanAPIKey(row pgx.Row) (APIKey, error) {
	var key APIKey
	err := row.Scan(&key.ID, &key.Name, &key.KeyHash, &key.KeyPrefix, &key.IsActive, &key.CreatedBy, &key.CreatedAt, &key.UpdatedAt, &key.LastUsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return APIKey{}, apperr.NotFound("export credential not found")
	}
	if err != nil {
		return APIKey{}, fmt.Errorf("scan export key: %w", err)
	}
	return key, nil
}

func (r *Repository) CreateAPIKey(ctx context.Context, name, keyHash, keyPrefix string, createdBy *uuid.UUID) (APIKey, error) {
	return scanAPIKey(r.pool.QueryRow(ctx, `
		INSERT INTO rac_export_api_keys (name, key_hash, key_prefix, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING `+apiKeyColumns, name, keyHash, keyPrefix, createdBy))
}

// GetAPIKeyByHash returns an active key.
func (r *Repository) GetAPIKeyByHash(ctx context.Context, keyHash string) (APIKey, error) {
	return scanAPIKey(r.pool.QueryRow(ctx, `
		SELECT `+apiKeyColumns+`
		FROM rac_export_api_keys
		WHERE key_hash = $1 AND is_active = true`, keyHash))
}

func (r *Repository) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apiKeyColumns+`
		FROM rac_export_api_keys
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list export keys: %w", err)
	}
	defer rows.Close()

	keys := make([]APIKey, 0)
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *Repository) RevokeAPIKey(ctx context.Context, keyID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE rac_export_api_keys SET is_active = false, updated_at = now()
		WHERE id = $1`, keyID)
	if err != nil {
		return fmt.Errorf("revoke export key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("export credential not found")
	}
	return nil
}

// TouchAPIKey records the last use of a key. Failures are ignored.
func (r *Repository) TouchAPIKey(ctx context.Context, keyID uuid.UUID) {
	_, _ = r.pool.Exec(ctx, `
		UPDATE rac_export_api_keys SET last_used_at = now(), updated_at = now()
		WHERE id = $1`, keyID)
}

// ListConversionEvents returns paid requests carrying a gclid, oldest first.
func (r *Repository) ListConversionEvents(ctx context.Context, from, to time.Time, limit int) ([]ConversionEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT sr.id, p.id, sr.reference, sr.gclid, sr.email, sr.phone, p.amount_cents, p.paid_at
		FROM rac_payments p
		JOIN rac_service_requests sr ON sr.id = p.request_id
		WHERE p.status = 'paid'
			AND p.paid_at IS NOT NULL
			AND sr.gclid IS NOT NULL AND sr.gclid <> ''
			AND p.paid_at >= $1 AND p.paid_at <= $2
		ORDER BY p.paid_at ASC
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversions: %w", err)
	}
	defer rows.Close()

	items := make([]ConversionEvent, 0)
	for rows.Next() {
		var item ConversionEvent
		if err := rows.Scan(
			&item.RequestID,
			&item.PaymentID,
			&item.Reference,
			&item.GCLID,
			&item.Email,
			&item.Phone,
			&item.AmountCents,
			&item.PaidAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListExportedKeys returns the order_id::conversion_name pairs already exported.
func (r *Repository) ListExportedKeys(ctx context.Context, orderIDs []string) (map[string]struct{}, error) {
	if len(orderIDs) == 0 {
		return map[string]struct{}{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT order_id, conversion_name
		FROM rac_google_ads_exports
		WHERE order_id = ANY($1)`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("list exported: %w", err)
	}
	defer rows.Close()

	result := make(map[string]struct{})
	for rows.Next() {
		var orderID, conversionName string
		if err := rows.Scan(&orderID, &conversionName); err != nil {
			return nil, err
		}
		result[exportKey(orderID, conversionName)] = struct{}{}
	}
	return result, rows.Err()
}

// RecordExports remembers exported rows so they are not sent twice.
func (r *Repository) RecordExports(ctx context.Context, rows []ExportRecord) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO rac_google_ads_exports (
				request_id, conversion_name, conversion_time, conversion_value, gclid, order_id
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (order_id, conversion_name) DO NOTHING`,
			row.RequestID, row.ConversionName, row.ConversionTime, row.ConversionValue, row.GCLID, row.OrderID)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < len(rows); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("record export: %w", err)
		}
	}
	return nil
}

func exportKey(orderID, conversionName string) string {
	return orderID + "::" + conversionName
}
