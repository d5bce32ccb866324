// Package models contains the database model definitions for preset storage.
package models

import (
	"time"
)

// Preset is a saved orchestration playlist.
// Table: orchestration_presets
type Preset struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Name        string    `gorm:"column:name;index"`
	Scope       string    `gorm:"column:scope;index;default:local"` // local, fleet, crossfade
	Description *string   `gorm:"column:description"`
	Tags        string    `gorm:"column:tags;default:[]"` // JSON array
	Version     int       `gorm:"column:version;default:1"`
	Payload     string    `gorm:"column:payload"` // JSON compiled playlist
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Preset) TableName() string { return "orchestration_presets" }

// All returns every model for auto-migration.
func All() []interface{} {
	return []interface{}{
		&Preset{},
	}
}
