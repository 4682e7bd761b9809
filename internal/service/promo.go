package service

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"vlessbot/internal/models"
	"vlessbot/internal/repository"
)

// PromoService redeems promocodes. Fixed-day codes add to the trial
// balance; percent and fixed-amount codes park a single pending discount
// on the user, overwriting any unconsumed one.
type PromoService struct {
	promos *repository.PromoRepository
	users  *repository.UserRepository
	log    *zap.Logger
}

func NewPromoService(promos *repository.PromoRepository, users *repository.UserRepository, log *zap.Logger) *PromoService {
	return &PromoService{promos: promos, users: users, log: log}
}

// HashCode derives the stable external identifier from a raw code. Codes
// are case-insensitive; the hash is what appears in callback routing so
// the raw code never leaks.
func HashCode(code string) string {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	sum := md5.Sum([]byte(normalized))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Redeem consumes a code for a user. The usage row, the usage counter and
// the discount effect commit in one transaction so a code can never exceed
// its cap or be redeemed twice by the same user.
func (s *PromoService) Redeem(userTgID, code string) (*models.Promocode, error) {
	codeHash := HashCode(code)
	promo, err := s.promos.FindByHash(codeHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromoNotFound
		}
		return nil, fmt.Errorf("find promocode: %w", err)
	}
	if !promo.Active {
		return nil, ErrPromoNotFound
	}
	if promo.ValidUntil != nil && time.Now().UTC().After(*promo.ValidUntil) {
		return nil, ErrPromoExpired
	}
	if promo.UsedCount >= promo.MaxUses {
		return nil, ErrPromoExhausted
	}

	if _, err := s.users.EnsureExists(userTgID, "", ""); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	err = s.promos.DB().Transaction(func(tx *gorm.DB) error {
		usage := models.PromoUsage{
			UserID:        userTgID,
			PromoCodeHash: codeHash,
			UsedAt:        time.Now().UTC(),
		}
		if err := tx.Create(&usage).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrPromoAlreadyUsed
			}
			return fmt.Errorf("record promo usage: %w", err)
		}

		res := tx.Model(&models.Promocode{}).
			Where("code_hash = ? AND used_count < max_uses", codeHash).
			Update("used_count", gorm.Expr("used_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("increment usage counter: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrPromoExhausted
		}

		switch promo.DiscountType {
		case models.DiscountFixedDays:
			return tx.Model(&models.User{}).Where("tg_id = ?", userTgID).
				Update("trial_days_left", gorm.Expr("trial_days_left + ?", promo.DiscountValue)).Error
		case models.DiscountPercent, models.DiscountFixedRub:
			return tx.Model(&models.User{}).Where("tg_id = ?", userTgID).Updates(map[string]interface{}{
				"pending_discount_type":  promo.DiscountType,
				"pending_discount_value": promo.DiscountValue,
			}).Error
		default:
			return fmt.Errorf("unknown discount type %q", promo.DiscountType)
		}
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("promocode redeemed",
		zap.String("user", userTgID),
		zap.String("code_hash", codeHash),
		zap.String("discount_type", promo.DiscountType),
		zap.Int("discount_value", promo.DiscountValue))
	return promo, nil
}
