package payment

import "context"

// Invoice statuses reported by the gateway.
const (
	StatusActive  = "active"
	StatusPaid    = "paid"
	StatusExpired = "expired"
)

// InvoiceResult contains the result of an invoice creation.
type InvoiceResult struct {
	InvoiceID  int64  `json:"invoice_id"`
	PaymentURL string `json:"payment_url"`
}

// Gateway defines the interface for payment gateway implementations.
type Gateway interface {
	// Name returns the gateway identifier.
	Name() string

	// CreateInvoice issues a new invoice for the given fiat amount.
	CreateInvoice(ctx context.Context, amountRub int, description, payload string) (*InvoiceResult, error)

	// InvoiceStatus reports the current status of an invoice.
	InvoiceStatus(ctx context.Context, invoiceID int64) (string, error)
}
