package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// TariffTrial marks a subscription provisioned from the free-trial balance.
// Any other base_tariff value is the paid duration in days, stored as string.
const TariffTrial = "trial"

// Subscription is one provisioned VPN client tied to one user and one
// remote server. The primary key is the client UUID shared with the panel.
type Subscription struct {
	ID               string     `gorm:"column:id;primaryKey;size:64" json:"id"`
	UserTgID         string     `gorm:"column:user_tg_id;size:64;index" json:"user_tg_id"`
	ServerID         string     `gorm:"column:server_id;size:64;index" json:"server_id"`
	ClientEmail      string     `gorm:"column:client_email;size:128" json:"client_email"`
	BaseTariff       string     `gorm:"column:base_tariff;size:16" json:"base_tariff"`
	TrafficLimitGB   int        `gorm:"column:traffic_limit_gb" json:"traffic_limit_gb"`
	TrafficUsedBytes int64      `gorm:"column:traffic_used_bytes;default:0" json:"traffic_used_bytes"`
	Expiry           time.Time  `gorm:"column:expiry;index" json:"expiry"`
	CreatedAt        time.Time  `gorm:"column:created_at" json:"created_at"`
	LastTrafficReset *time.Time `gorm:"column:last_traffic_reset" json:"last_traffic_reset"`
	VlessLink        string     `gorm:"column:vless_link;type:text" json:"vless_link"`
	SubscriptionLink string     `gorm:"column:subscription_link;type:text" json:"subscription_link"`
	ClientSubID      string     `gorm:"column:client_sub_id;size:64" json:"client_sub_id"`
	Active           bool       `gorm:"column:active;default:true" json:"active"`
	Addons           string     `gorm:"column:addons;type:text" json:"addons"`

	// Edge-triggered notification flags. Cleared only by renewal
	// (expiry) or a traffic-limit change / reset (traffic).
	NotifyExpirySent    bool `gorm:"column:notify_expiry_sent;default:false" json:"notify_expiry_sent"`
	NotifyTraffic80Sent bool `gorm:"column:notify_traffic_80_sent;default:false" json:"notify_traffic_80_sent"`
	NotifyTraffic95Sent bool `gorm:"column:notify_traffic_95_sent;default:false" json:"notify_traffic_95_sent"`
}

func (Subscription) TableName() string {
	return "configs"
}

// Addons tracks cumulative extras granted on top of the base tariff.
type Addons struct {
	ExtraTrafficGB    int `json:"extra_traffic_gb"`
	TrafficResetCount int `json:"traffic_reset_count"`
}

// DecodeAddons parses the addons JSON blob; a missing or malformed blob
// decodes to the zero value rather than failing the operation.
func (s *Subscription) DecodeAddons() Addons {
	var a Addons
	if s.Addons == "" {
		return a
	}
	if err := json.Unmarshal([]byte(s.Addons), &a); err != nil {
		return Addons{}
	}
	return a
}

// EncodeAddons serialises the addons structure back into the blob column.
func EncodeAddons(a Addons) string {
	raw, _ := json.Marshal(a)
	return string(raw)
}

// IsTrial reports whether this subscription was provisioned from trial days.
func (s *Subscription) IsTrial() bool {
	return s.BaseTariff == TariffTrial
}

// TariffDays returns the paid tariff duration in days, or 0 for trial or
// malformed tariff descriptors.
func (s *Subscription) TariffDays() int {
	if s.IsTrial() {
		return 0
	}
	days, err := strconv.Atoi(s.BaseTariff)
	if err != nil {
		return 0
	}
	return days
}

// TrafficLimitBytes converts the GB limit into bytes for usage math.
func (s *Subscription) TrafficLimitBytes() int64 {
	return int64(s.TrafficLimitGB) * 1024 * 1024 * 1024
}

// ShortID is the truncated identifier shown to users in notifications.
func (s *Subscription) ShortID() string {
	if len(s.ID) > 7 {
		return s.ID[:7] + "..."
	}
	return s.ID
}
