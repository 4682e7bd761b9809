package models

// Server describes one remote 3x-ui panel endpoint.
// Created and edited only through the admin surface; referenced by many
// subscriptions. Deleting a server does not cascade.
type Server struct {
	ID               string `gorm:"column:id;primaryKey;size:64" json:"id"`
	Country          string `gorm:"column:country;size:64" json:"country"`
	City             string `gorm:"column:city;size:64" json:"city"`
	PanelURL         string `gorm:"column:panel_url;size:255" json:"panel_url"`
	PanelUsername    string `gorm:"column:panel_username;size:128" json:"panel_username"`
	PanelPassword    string `gorm:"column:panel_password;size:128" json:"panel_password"`
	InboundID        int    `gorm:"column:inbound_id" json:"inbound_id"`
	MobileSpoof      bool   `gorm:"column:mobile_spoof;default:false" json:"mobile_spoof"`
	SubscriptionPath string `gorm:"column:subscription_path;size:128;default:'/sub'" json:"subscription_path"`
	SubscriptionPort string `gorm:"column:subscription_port;size:16;default:'2096'" json:"subscription_port"`
	Active           bool   `gorm:"column:active;default:true" json:"active"`
}

func (Server) TableName() string {
	return "servers"
}

// Category returns the tariff category this server hosts.
func (s *Server) Category() string {
	if s.MobileSpoof {
		return "mobile"
	}
	return "stable"
}

// Label is the human-readable server name used in notifications.
func (s *Server) Label() string {
	if s.City == "" {
		return s.Country
	}
	return s.Country + " (" + s.City + ")"
}
