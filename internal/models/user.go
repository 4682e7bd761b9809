package models

import "time"

// User maps to the `users` table.
// Primary key is the Telegram chat ID stored as string.
type User struct {
	TgID          string    `gorm:"column:tg_id;primaryKey;size:64" json:"tg_id"`
	Username      string    `gorm:"column:username;size:64" json:"username"`
	FirstName     string    `gorm:"column:first_name;size:128" json:"first_name"`
	TrialDaysLeft int       `gorm:"column:trial_days_left;default:0" json:"trial_days_left"`
	NotifyExpiry  bool      `gorm:"column:notify_expiry;default:true" json:"notify_expiry"`
	NotifyTraffic bool      `gorm:"column:notify_traffic;default:true" json:"notify_traffic"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	// At most one pending discount per user; a new promo redemption
	// overwrites an unconsumed one. Consumed by the next settlement.
	PendingDiscountType  *string `gorm:"column:pending_discount_type;size:32" json:"pending_discount_type"`
	PendingDiscountValue *int    `gorm:"column:pending_discount_value" json:"pending_discount_value"`
}

func (User) TableName() string {
	return "users"
}
