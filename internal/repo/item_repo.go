// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the SavedItem
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Every query is scoped by the owning
// user id; there is no cross-owner read or write path.
//
// Error semantics:
//   - When an item is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/plateful/plate-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// UpsertSavedItem inserts a saved item for userID or, when the
// (user_id, item_type, item_id) key already exists, replaces that row's
// metadata. The itemID is expected to be normalized by the caller. The
// persisted row is returned, which on conflict is the pre-existing row with
// fresh metadata rather than a new one.
func UpsertSavedItem(ctx context.Context, db *gorm.DB, userID string, t domain.ItemType, itemID string, metadata json.RawMessage) (*domain.SavedItem, error) {
	now := time.Now().UTC()
	item := &domain.SavedItem{
		ID:        uuid.NewString(),
		UserID:    userID,
		ItemType:  t,
		ItemID:    itemID,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_type"}, {Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"metadata", "updated_at"}),
		}).
		Create(item).Error
	if err != nil {
		return nil, err
	}
	// Re-read by key: on conflict the generated ID above never hit the table.
	return GetSavedItemByKey(ctx, db, userID, t, itemID)
}

// GetSavedItemByKey fetches the owner's item with the exact
// (item_type, item_id) key, or ErrNotFound.
func GetSavedItemByKey(ctx context.Context, db *gorm.DB, userID string, t domain.ItemType, itemID string) (*domain.SavedItem, error) {
	var item domain.SavedItem
	err := db.WithContext(ctx).
		Where("user_id = ? AND item_type = ? AND item_id = ?", userID, t, itemID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetSavedItem fetches a single item by row id, enforcing ownership.
func GetSavedItem(ctx context.Context, db *gorm.DB, id, userID string) (*domain.SavedItem, error) {
	var item domain.SavedItem
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListSavedItemsByType returns all of the owner's items of one type, ordered
// by creation time descending. The result is empty (not nil-erroring) when
// the user has no items of that type.
func ListSavedItemsByType(ctx context.Context, db *gorm.DB, userID string, t domain.ItemType) ([]domain.SavedItem, error) {
	var out []domain.SavedItem
	err := db.WithContext(ctx).
		Where("user_id = ? AND item_type = ?", userID, t).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CountSavedItems returns the total number of items on the user's plate,
// optionally filtered by type (pass "" for all types).
func CountSavedItems(ctx context.Context, db *gorm.DB, userID string, t domain.ItemType) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.SavedItem{}).Where("user_id = ?", userID)
	if t != "" {
		q = q.Where("item_type = ?", t)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// ListSavedItemsPage returns a paginated slice of the user's items, newest
// first, optionally filtered by type (pass "" for all types). Use
// CountSavedItems to obtain the total for pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListSavedItemsPage(ctx context.Context, db *gorm.DB, userID string, t domain.ItemType, offset, limit int) ([]domain.SavedItem, error) {
	q := db.WithContext(ctx).Where("user_id = ?", userID)
	if t != "" {
		q = q.Where("item_type = ?", t)
	}
	var out []domain.SavedItem
	err := q.
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteSavedItem removes an item by row id, enforcing ownership. If no rows
// are affected (item missing or owned by someone else), it returns ErrNotFound.
func DeleteSavedItem(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.SavedItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
