// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/plateful/plate-backend/internal/domain"
)

// PlateStats returns aggregate metadata for a user's plate: the total number
// of saved items and the maximum UpdatedAt timestamp among them, optionally
// filtered by type (pass "" for all types).
//
// When the user has no matching items, the returned count is 0 and
// maxUpdatedAt is nil.
func PlateStats(ctx context.Context, db *gorm.DB, userID string, t domain.ItemType) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.SavedItem{}).Where("user_id = ?", userID)
	if t != "" {
		q = q.Where("item_type = ?", t)
	}

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
