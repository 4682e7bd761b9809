package repository

import (
	"errors"

	"gorm.io/gorm"

	"vlessbot/internal/models"
)

// UserRepository handles all user database operations.
type UserRepository struct {
	db *gorm.DB

	// Trial-day balance granted to every newly created user row.
	signupTrialDays int
}

func NewUserRepository(db *gorm.DB, signupTrialDays int) *UserRepository {
	return &UserRepository{db: db, signupTrialDays: signupTrialDays}
}

// FindByID finds a user by Telegram chat ID.
func (r *UserRepository) FindByID(tgID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("tg_id = ?", tgID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// EnsureExists creates a shell user row when none exists yet and returns
// the current row either way.
func (r *UserRepository) EnsureExists(tgID, username, firstName string) (*models.User, error) {
	user, err := r.FindByID(tgID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if firstName == "" {
		firstName = "Anonymous"
	}
	fresh := &models.User{
		TgID:          tgID,
		Username:      username,
		FirstName:     firstName,
		TrialDaysLeft: r.signupTrialDays,
		NotifyExpiry:  true,
		NotifyTraffic: true,
	}
	if err := r.db.Create(fresh).Error; err != nil {
		return nil, err
	}
	return fresh, nil
}

// Update updates user fields.
func (r *UserRepository) Update(tgID string, updates map[string]interface{}) error {
	return r.db.Model(&models.User{}).Where("tg_id = ?", tgID).Updates(updates).Error
}

// AddTrialDays grants additional free-trial days.
func (r *UserRepository) AddTrialDays(tgID string, days int) error {
	return r.db.Model(&models.User{}).Where("tg_id = ?", tgID).
		Update("trial_days_left", gorm.Expr("trial_days_left + ?", days)).Error
}

// ZeroTrialDays consumes the whole trial balance.
func (r *UserRepository) ZeroTrialDays(tgID string) error {
	return r.db.Model(&models.User{}).Where("tg_id = ?", tgID).
		Update("trial_days_left", 0).Error
}

// SetPendingDiscount stores the single pending discount, overwriting any
// unconsumed one.
func (r *UserRepository) SetPendingDiscount(tgID, discountType string, value int) error {
	return r.db.Model(&models.User{}).Where("tg_id = ?", tgID).Updates(map[string]interface{}{
		"pending_discount_type":  discountType,
		"pending_discount_value": value,
	}).Error
}

// ClearPendingDiscount removes a consumed or abandoned pending discount.
func (r *UserRepository) ClearPendingDiscount(tgID string) error {
	return r.db.Model(&models.User{}).Where("tg_id = ?", tgID).Updates(map[string]interface{}{
		"pending_discount_type":  nil,
		"pending_discount_value": nil,
	}).Error
}
