package models

import "time"

// PendingPayment is an invoice awaiting confirmation. Payload is the
// JSON-encoded payment intent describing the effect to apply once paid.
// ConsumedAt is the terminal marker: a settled payment is never re-applied.
type PendingPayment struct {
	PaymentID    string     `gorm:"column:payment_id;primaryKey;size:64" json:"payment_id"`
	BotInvoiceID string     `gorm:"column:bot_invoice_id;size:64;index" json:"bot_invoice_id"`
	Payload      string     `gorm:"column:payload;type:text" json:"payload"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	UserID       string     `gorm:"column:user_id;size:64;index" json:"user_id"`
	ConsumedAt   *time.Time `gorm:"column:consumed_at" json:"consumed_at"`
}

func (PendingPayment) TableName() string {
	return "pending_payments"
}
