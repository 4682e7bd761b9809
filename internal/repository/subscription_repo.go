package repository

import (
	"time"

	"gorm.io/gorm"

	"vlessbot/internal/models"
)

// SubscriptionRepository handles provisioned client records.
type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindByID finds a subscription by client UUID.
func (r *SubscriptionRepository) FindByID(id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindByIDAndOwner finds a subscription only when it belongs to the user.
func (r *SubscriptionRepository) FindByIDAndOwner(id, userTgID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("id = ? AND user_tg_id = ?", id, userTgID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindByUser returns all subscriptions owned by one user.
func (r *SubscriptionRepository) FindByUser(userTgID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_tg_id = ?", userTgID).Find(&subs).Error
	return subs, err
}

// CountByUser counts a user's subscriptions, used for the per-user
// sequence number embedded in client emails.
func (r *SubscriptionRepository) CountByUser(userTgID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).Where("user_tg_id = ?", userTgID).Count(&count).Error
	return count, err
}

// FindActive returns all active subscriptions.
func (r *SubscriptionRepository) FindActive() ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("active = ?", true).Find(&subs).Error
	return subs, err
}

// FindTrialsByUser returns a user's trial subscriptions, newest expiry first.
func (r *SubscriptionRepository) FindTrialsByUser(userTgID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_tg_id = ? AND base_tariff = ?", userTgID, models.TariffTrial).
		Order("expiry DESC").Find(&subs).Error
	return subs, err
}

// FindExpiredBefore returns subscriptions whose expiry predates the cutoff.
func (r *SubscriptionRepository) FindExpiredBefore(cutoff time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("expiry < ?", cutoff).Find(&subs).Error
	return subs, err
}

// FindExpiringBetween returns active subscriptions with expiry inside
// (from, to] whose expiry notification has not been sent yet.
func (r *SubscriptionRepository) FindExpiringBetween(from, to time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where(
		"active = ? AND expiry > ? AND expiry <= ? AND notify_expiry_sent = ?",
		true, from, to, false,
	).Find(&subs).Error
	return subs, err
}

// Create inserts a new subscription row.
func (r *SubscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

// Update updates subscription fields.
func (r *SubscriptionRepository) Update(id string, updates map[string]interface{}) error {
	return r.db.Model(&models.Subscription{}).Where("id = ?", id).Updates(updates).Error
}

// Delete removes the local row.
func (r *SubscriptionRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.Subscription{}).Error
}

// UpdateTrafficUsedBatch persists polled usage for one server's
// subscriptions in a single transaction.
func (r *SubscriptionRepository) UpdateTrafficUsedBatch(usage map[string]int64) error {
	if len(usage) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		for id, usedBytes := range usage {
			if err := tx.Model(&models.Subscription{}).Where("id = ?", id).
				Update("traffic_used_bytes", usedBytes).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ResetUsage zeroes the cached usage, advances the monthly-reset anchor
// and re-arms the traffic notification flags.
func (r *SubscriptionRepository) ResetUsage(id string, anchor time.Time) error {
	return r.db.Model(&models.Subscription{}).Where("id = ?", id).Updates(map[string]interface{}{
		"traffic_used_bytes":     0,
		"last_traffic_reset":     anchor,
		"notify_traffic_80_sent": false,
		"notify_traffic_95_sent": false,
	}).Error
}

// MarkExpiryNotified sets the edge-triggered expiry flag.
func (r *SubscriptionRepository) MarkExpiryNotified(id string) error {
	return r.db.Model(&models.Subscription{}).Where("id = ?", id).
		Update("notify_expiry_sent", true).Error
}

// MarkTrafficNotified sets the traffic flags for the given tier. The 95%
// tier implies the 80% one, so both are set together.
func (r *SubscriptionRepository) MarkTrafficNotified(id string, critical bool) error {
	updates := map[string]interface{}{"notify_traffic_80_sent": true}
	if critical {
		updates["notify_traffic_95_sent"] = true
	}
	return r.db.Model(&models.Subscription{}).Where("id = ?", id).Updates(updates).Error
}
