// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// IdempotencyRecord stores the serialized outcome of a previously executed
// operation, keyed by (tenant_id, user_id, key). While a record is unexpired,
// repeating the operation under the same key replays the stored result instead
// of re-executing side effects. Expired rows are removed lazily or by the
// maintenance sweep.
type IdempotencyRecord struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	TenantID  string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_idem_tenant_user_key,priority:1"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_idem_tenant_user_key,priority:2"`
	Key       string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_idem_tenant_user_key,priority:3"`
	Result    string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (IdempotencyRecord) TableName() string { return "idempotency_keys" }
