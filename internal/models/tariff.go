package models

// Tariff is pure reference data consumed when pricing an order.
type Tariff struct {
	ID           uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Category     string `gorm:"column:category;size:16;not null" json:"category"` // "mobile" or "stable"
	PriceRub     int    `gorm:"column:price_rub;not null" json:"price_rub"`
	DurationDays int    `gorm:"column:duration_days;not null" json:"duration_days"`
	TrafficGB    int    `gorm:"column:traffic_gb;default:100" json:"traffic_gb"`
	Active       bool   `gorm:"column:active;default:true" json:"active"`
}

func (Tariff) TableName() string {
	return "tariffs"
}
