package repository

import (
	"gorm.io/gorm"

	"vlessbot/internal/models"
)

// PromoRepository handles promocodes and their per-user usage records.
type PromoRepository struct {
	db *gorm.DB
}

func NewPromoRepository(db *gorm.DB) *PromoRepository {
	return &PromoRepository{db: db}
}

// DB exposes the underlying handle for multi-entity transactions owned
// by the promo service.
func (r *PromoRepository) DB() *gorm.DB {
	return r.db
}

// FindAll returns every promocode, for the admin surface.
func (r *PromoRepository) FindAll() ([]models.Promocode, error) {
	var promos []models.Promocode
	err := r.db.Find(&promos).Error
	return promos, err
}

// FindByHash finds a promocode by its stable code hash.
func (r *PromoRepository) FindByHash(codeHash string) (*models.Promocode, error) {
	var promo models.Promocode
	if err := r.db.Where("code_hash = ?", codeHash).First(&promo).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

// Create inserts a new promocode.
func (r *PromoRepository) Create(promo *models.Promocode) error {
	return r.db.Create(promo).Error
}

// SetActive toggles a promocode.
func (r *PromoRepository) SetActive(id uint, active bool) error {
	return r.db.Model(&models.Promocode{}).Where("id = ?", id).
		Update("active", active).Error
}

// DeleteByHash removes a promocode by its code hash.
func (r *PromoRepository) DeleteByHash(codeHash string) error {
	return r.db.Where("code_hash = ?", codeHash).Delete(&models.Promocode{}).Error
}
