package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"vlessbot/internal/pkg/httpclient"
)

const (
	// Invoices the user abandons expire on the gateway side after this long.
	invoiceExpirySeconds = 900

	maxPayloadBytes = 4096
)

// CryptoPayGateway implements the Gateway interface for Crypto Pay.
type CryptoPayGateway struct {
	baseURL      string
	fiatCurrency string
	client       *httpclient.Client
}

func NewCryptoPayGateway(token, baseURL, fiatCurrency string) *CryptoPayGateway {
	return &CryptoPayGateway{
		baseURL:      baseURL,
		fiatCurrency: fiatCurrency,
		client: httpclient.New().
			WithTimeout(30 * time.Second).
			WithHeader("Crypto-Pay-API-Token", token),
	}
}

func (g *CryptoPayGateway) Name() string {
	return "cryptopay"
}

type cryptoPayResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  struct {
		Code int    `json:"code"`
		Name string `json:"name"`
	} `json:"error"`
}

type cryptoPayInvoice struct {
	InvoiceID     int64  `json:"invoice_id"`
	Status        string `json:"status"`
	BotInvoiceURL string `json:"bot_invoice_url"`
}

func (g *CryptoPayGateway) CreateInvoice(ctx context.Context, amountRub int, description, payload string) (*InvoiceResult, error) {
	if len(payload) > maxPayloadBytes {
		return nil, fmt.Errorf("cryptopay payload exceeds %d bytes", maxPayloadBytes)
	}

	body := map[string]interface{}{
		"currency_type":   "fiat",
		"fiat":            g.fiatCurrency,
		"amount":          strconv.Itoa(amountRub),
		"accepted_assets": "USDT",
		"description":     description,
		"payload":         payload,
		"expires_in":      invoiceExpirySeconds,
	}

	resp, err := g.client.Post(g.baseURL+"/createInvoice", body)
	if err != nil {
		return nil, fmt.Errorf("cryptopay create invoice failed: %w", err)
	}

	var envelope cryptoPayResponse
	if err := json.Unmarshal(resp, &envelope); err != nil {
		return nil, fmt.Errorf("cryptopay parse error: %w", err)
	}
	if !envelope.OK {
		return nil, fmt.Errorf("cryptopay error %d: %s", envelope.Error.Code, envelope.Error.Name)
	}

	var invoice cryptoPayInvoice
	if err := json.Unmarshal(envelope.Result, &invoice); err != nil {
		return nil, fmt.Errorf("cryptopay parse invoice error: %w", err)
	}
	if invoice.BotInvoiceURL == "" {
		return nil, fmt.Errorf("cryptopay no invoice url returned")
	}

	return &InvoiceResult{
		InvoiceID:  invoice.InvoiceID,
		PaymentURL: invoice.BotInvoiceURL,
	}, nil
}

func (g *CryptoPayGateway) InvoiceStatus(ctx context.Context, invoiceID int64) (string, error) {
	resp, err := g.client.Get(fmt.Sprintf("%s/getInvoices?invoice_ids=%d", g.baseURL, invoiceID))
	if err != nil {
		return "", fmt.Errorf("cryptopay get invoices failed: %w", err)
	}

	var envelope cryptoPayResponse
	if err := json.Unmarshal(resp, &envelope); err != nil {
		return "", fmt.Errorf("cryptopay parse error: %w", err)
	}
	if !envelope.OK {
		return "", fmt.Errorf("cryptopay error %d: %s", envelope.Error.Code, envelope.Error.Name)
	}

	var result struct {
		Items []cryptoPayInvoice `json:"items"`
	}
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		return "", fmt.Errorf("cryptopay parse invoices error: %w", err)
	}
	if len(result.Items) == 0 {
		return "", fmt.Errorf("cryptopay invoice %d not found", invoiceID)
	}
	return result.Items[0].Status, nil
}
