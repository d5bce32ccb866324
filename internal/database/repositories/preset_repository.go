package repositories

import (
	"context"

	"github.com/bbernstein/lacylights-orchestrator/internal/database/models"
	"github.com/lucsky/cuid"
	"gorm.io/gorm"
)

// PresetRepository handles preset data access.
type PresetRepository struct {
	db *gorm.DB
}

// NewPresetRepository creates a new PresetRepository.
func NewPresetRepository(db *gorm.DB) *PresetRepository {
	return &PresetRepository{db: db}
}

// FindAll returns all presets ordered by name.
func (r *PresetRepository) FindAll(ctx context.Context) ([]models.Preset, error) {
	var presets []models.Preset
	result := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&presets)
	return presets, result.Error
}

// FindByScope returns all presets filed under a scope.
func (r *PresetRepository) FindByScope(ctx context.Context, scope string) ([]models.Preset, error) {
	var presets []models.Preset
	result := r.db.WithContext(ctx).
		Where("scope = ?", scope).
		Order("name ASC").
		Find(&presets)
	return presets, result.Error
}

// FindByID returns a preset by ID.
func (r *PresetRepository) FindByID(ctx context.Context, id string) (*models.Preset, error) {
	var preset models.Preset
	result := r.db.WithContext(ctx).First(&preset, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &preset, nil
}

// FindByName returns the preset with the given name and scope.
func (r *PresetRepository) FindByName(ctx context.Context, name, scope string) (*models.Preset, error) {
	var preset models.Preset
	result := r.db.WithContext(ctx).First(&preset, "name = ? AND scope = ?", name, scope)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &preset, nil
}

// Create creates a new preset.
func (r *PresetRepository) Create(ctx context.Context, preset *models.Preset) error {
	if preset.ID == "" {
		preset.ID = cuid.New()
	}
	return r.db.WithContext(ctx).Create(preset).Error
}

// Update updates an existing preset.
func (r *PresetRepository) Update(ctx context.Context, preset *models.Preset) error {
	return r.db.WithContext(ctx).Save(preset).Error
}

// Delete deletes a preset by ID.
func (r *PresetRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.Preset{}, "id = ?", id).Error
}

// Count returns the number of stored presets.
func (r *PresetRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Preset{}).Count(&count)
	return count, result.Error
}

// CreateMany creates several presets in one transaction.
func (r *PresetRepository) CreateMany(ctx context.Context, presets []models.Preset) error {
	if len(presets) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range presets {
			if presets[i].ID == "" {
				presets[i].ID = cuid.New()
			}
			if err := tx.Create(&presets[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
