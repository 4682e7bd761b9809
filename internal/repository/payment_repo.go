package repository

import (
	"time"

	"gorm.io/gorm"

	"vlessbot/internal/models"
)

// PaymentRepository handles pending payment records.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a pending payment.
func (r *PaymentRepository) Create(payment *models.PendingPayment) error {
	return r.db.Create(payment).Error
}

// FindByID finds a pending payment by internal payment ID.
func (r *PaymentRepository) FindByID(paymentID string) (*models.PendingPayment, error) {
	var payment models.PendingPayment
	if err := r.db.Where("payment_id = ?", paymentID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// Claim marks the payment consumed exactly once. Returns false when the
// payment was already settled, making duplicate confirmations no-ops.
func (r *PaymentRepository) Claim(paymentID string, at time.Time) (bool, error) {
	res := r.db.Model(&models.PendingPayment{}).
		Where("payment_id = ? AND consumed_at IS NULL", paymentID).
		Update("consumed_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PurgeStale removes unconsumed invoices older than the cutoff. Gateway
// invoices expire after 15 minutes, so these can never settle.
func (r *PaymentRepository) PurgeStale(cutoff time.Time) (int64, error) {
	res := r.db.Where("consumed_at IS NULL AND created_at < ?", cutoff).
		Delete(&models.PendingPayment{})
	return res.RowsAffected, res.Error
}
