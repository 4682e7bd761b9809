package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"vlessbot/internal/models"
)

// MigrateAndSeed ensures required tables exist and inserts baseline tariffs.
func MigrateAndSeed(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if err := seedDefaults(db); err != nil {
		return fmt.Errorf("seed defaults failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Server{},
		&models.Subscription{},
		&models.Tariff{},
		&models.Promocode{},
		&models.PromoUsage{},
		&models.PendingPayment{},
	}
}

func seedDefaults(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		return ensureDefaultTariffs(tx)
	})
}

func ensureDefaultTariffs(tx *gorm.DB) error {
	var count int64
	if err := tx.Model(&models.Tariff{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []models.Tariff{
		{Category: "stable", DurationDays: 7, PriceRub: 100, TrafficGB: 100, Active: true},
		{Category: "stable", DurationDays: 30, PriceRub: 400, TrafficGB: 100, Active: true},
		{Category: "stable", DurationDays: 60, PriceRub: 800, TrafficGB: 100, Active: true},
		{Category: "stable", DurationDays: 90, PriceRub: 1200, TrafficGB: 100, Active: true},
		{Category: "stable", DurationDays: 180, PriceRub: 2400, TrafficGB: 100, Active: true},
		{Category: "stable", DurationDays: 365, PriceRub: 4800, TrafficGB: 100, Active: true},
		{Category: "mobile", DurationDays: 7, PriceRub: 150, TrafficGB: 100, Active: true},
		{Category: "mobile", DurationDays: 30, PriceRub: 600, TrafficGB: 100, Active: true},
		{Category: "mobile", DurationDays: 60, PriceRub: 1200, TrafficGB: 100, Active: true},
		{Category: "mobile", DurationDays: 90, PriceRub: 1800, TrafficGB: 100, Active: true},
	}
	for i := range defaults {
		if err := tx.Create(&defaults[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
