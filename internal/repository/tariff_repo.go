package repository

import (
	"gorm.io/gorm"

	"vlessbot/internal/models"
)

// TariffRepository handles tariff reference data.
type TariffRepository struct {
	db *gorm.DB
}

func NewTariffRepository(db *gorm.DB) *TariffRepository {
	return &TariffRepository{db: db}
}

// FindByID finds a tariff by ID.
func (r *TariffRepository) FindByID(id uint) (*models.Tariff, error) {
	var tariff models.Tariff
	if err := r.db.Where("id = ?", id).First(&tariff).Error; err != nil {
		return nil, err
	}
	return &tariff, nil
}

// FindActiveByCategory returns active tariffs for a category ordered by duration.
func (r *TariffRepository) FindActiveByCategory(category string) ([]models.Tariff, error) {
	var tariffs []models.Tariff
	err := r.db.Where("category = ? AND active = ?", category, true).
		Order("duration_days").Find(&tariffs).Error
	return tariffs, err
}

// Create inserts a new tariff.
func (r *TariffRepository) Create(tariff *models.Tariff) error {
	return r.db.Create(tariff).Error
}

// Update updates tariff fields.
func (r *TariffRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.Tariff{}).Where("id = ?", id).Updates(updates).Error
}
