// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the
// IdempotencyRecord model used to implement safe-retry semantics.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/plateful/plate-backend/internal/domain"
)

// ErrDuplicate indicates that an idempotency record already exists for the
// given (tenant_id, user_id, key) tuple.
var ErrDuplicate = errors.New("duplicate")

// GetIdempotencyRecord returns a non-expired record or ErrNotFound. Expired
// rows are treated as absent; they stay on disk until swept.
func GetIdempotencyRecord(ctx context.Context, db *gorm.DB, tenantID, userID, key string, now time.Time) (*domain.IdempotencyRecord, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.IdempotencyRecord
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND key = ? AND expires_at > ?", tenantID, userID, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotencyRecord inserts a record and returns ErrDuplicate on unique
// violation.
func CreateIdempotencyRecord(ctx context.Context, db *gorm.DB, tenantID, userID, key, result string, ttl time.Duration) (*domain.IdempotencyRecord, error) {
	now := time.Now().UTC()
	rec := &domain.IdempotencyRecord{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		UserID:    userID,
		Key:       key,
		Result:    result,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// DeleteIdempotencyRecord removes one record regardless of expiry. Deleting a
// missing key is a no-op.
func DeleteIdempotencyRecord(ctx context.Context, db *gorm.DB, tenantID, userID, key string) error {
	return db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND key = ?", tenantID, userID, key).
		Delete(&domain.IdempotencyRecord{}).Error
}

// SweepExpiredIdempotency deletes every record whose expiry has passed and
// reports how many rows were removed.
func SweepExpiredIdempotency(ctx context.Context, db *gorm.DB, tenantID string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("tenant_id = ? AND expires_at <= ?", tenantID, now).
		Delete(&domain.IdempotencyRecord{})
	return res.RowsAffected, res.Error
}
