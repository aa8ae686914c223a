// Package domain defines the persistence models for the plate (saved items)
// subsystem. These types are mapped with GORM and are shared across the
// repository and service layers.
package domain

import (
	"encoding/json"
	"time"
)

// ItemType classifies a saved item. It drives identifier normalization,
// metadata decoding, and the duplicate-detection policy applied on save.
type ItemType string

// Supported item types.
const (
	ItemTypeRestaurant ItemType = "restaurant"
	ItemTypeRecipe     ItemType = "recipe"
	ItemTypePhoto      ItemType = "photo"
	ItemTypeVideo      ItemType = "video"
	ItemTypeOther      ItemType = "other"
)

// ParseItemType validates a raw string against the supported item types.
// The second return value is false for anything outside the known set.
func ParseItemType(s string) (ItemType, bool) {
	switch ItemType(s) {
	case ItemTypeRestaurant, ItemTypeRecipe, ItemTypePhoto, ItemTypeVideo, ItemTypeOther:
		return ItemType(s), true
	}
	return "", false
}

// SavedItem represents one entry on a user's plate: an external piece of
// content (restaurant, recipe, photo, video) the user chose to keep.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the owner; every read and write is scoped by it.
//   - ItemType: content classification (see ItemType constants).
//   - ItemID: the normalized external identifier. Uniqueness is enforced per
//     (user_id, item_type, item_id) so a user can hold at most one row per
//     piece of content; repeat saves upsert metadata against that constraint.
//   - Metadata: type-specific JSON payload, opaque to persistence. The dedup
//     core reads only title-like and coordinate-like fields (see metadata.go).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//
// Rows are deleted explicitly by the owner; there is no soft deletion, so the
// uniqueness constraint always reflects live rows.
type SavedItem struct {
	ID        string          `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string          `json:"user_id"    gorm:"type:varchar(64);not null;uniqueIndex:ux_plate_owner_type_item,priority:1;index:idx_user_items"`
	ItemType  ItemType        `json:"item_type"  gorm:"type:varchar(16);not null;uniqueIndex:ux_plate_owner_type_item,priority:2;check:item_type IN ('restaurant','recipe','photo','video','other')"`
	ItemID    string          `json:"item_id"    gorm:"type:varchar(512);not null;uniqueIndex:ux_plate_owner_type_item,priority:3"`
	Metadata  json.RawMessage `json:"metadata,omitempty" gorm:"type:text"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName returns the database table name for SavedItem.
func (SavedItem) TableName() string { return "saved_items" }
