package models

import "time"

// Discount types carried by promocodes and by a user's pending discount.
const (
	DiscountFixedDays = "fixed_days"
	DiscountPercent   = "percent"
	DiscountFixedRub  = "fixed_rub"
)

// Promocode is identified externally by the stable hash of its
// case-normalised code so raw codes never appear in callback routing.
type Promocode struct {
	ID            uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Code          string     `gorm:"column:code;uniqueIndex;size:64;not null" json:"code"`
	CodeHash      string     `gorm:"column:code_hash;uniqueIndex;size:32;not null" json:"code_hash"`
	DiscountType  string     `gorm:"column:discount_type;size:32;not null" json:"discount_type"`
	DiscountValue int        `gorm:"column:discount_value;not null" json:"discount_value"`
	MaxUses       int        `gorm:"column:max_uses;default:1" json:"max_uses"`
	UsedCount     int        `gorm:"column:used_count;default:0" json:"used_count"`
	ValidUntil    *time.Time `gorm:"column:valid_until" json:"valid_until"`
	Active        bool       `gorm:"column:active;default:true" json:"active"`
}

func (Promocode) TableName() string {
	return "promocodes"
}

// PromoUsage records one-time consumption of a code by a user.
// The (user_id, promo_code_hash) pair is unique forever.
type PromoUsage struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID        string    `gorm:"column:user_id;size:64;not null;uniqueIndex:idx_promo_usage_once" json:"user_id"`
	PromoCodeHash string    `gorm:"column:promo_code_hash;size:32;not null;uniqueIndex:idx_promo_usage_once" json:"promo_code_hash"`
	UsedAt        time.Time `gorm:"column:used_at;not null" json:"used_at"`
}

func (PromoUsage) TableName() string {
	return "promo_usage"
}
