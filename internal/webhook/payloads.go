package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lanzaweb/internal/models"
)

var (
	ErrUnknownProcessor = errors.New("unknown payment processor")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// Parse maps a processor-specific payload onto a PaymentNotification.
// Each known shape is decoded into its own struct and validated before
// anything downstream sees it; missing required fields reject early.
func Parse(processor string, body []byte) (*models.PaymentNotification, error) {
	switch processor {
	case "mercadopago":
		return parseMercadoPago(body)
	case "stripe":
		return parseStripe(body)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProcessor, processor)
	}
}

type mercadoPagoPayload struct {
	ID                json.Number `json:"id"`
	ExternalReference string      `json:"external_reference"`
	Status            string      `json:"status"`
	TransactionAmount float64     `json:"transaction_amount"`
	CurrencyID        string      `json:"currency_id"`
	PaymentMethodID   string      `json:"payment_method_id"`
	DateApproved      string      `json:"date_approved"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
	Metadata map[string]any `json:"metadata"`
}

func parseMercadoPago(body []byte) (*models.PaymentNotification, error) {
	var p mercadoPagoPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.ExternalReference == "" {
		return nil, fmt.Errorf("%w: external_reference is required", ErrMalformedPayload)
	}
	if p.Status == "" {
		return nil, fmt.Errorf("%w: status is required", ErrMalformedPayload)
	}

	paidAt, _ := time.Parse(time.RFC3339, p.DateApproved)

	return &models.PaymentNotification{
		OrderID:    p.ExternalReference,
		PaymentID:  p.ID.String(),
		Status:     mapStatus(p.Status),
		Amount:     p.TransactionAmount,
		Currency:   p.CurrencyID,
		Method:     p.PaymentMethodID,
		PaidAt:     paidAt,
		PayerEmail: p.Payer.Email,
		Metadata:   stringMetadata(p.Metadata),
	}, nil
}

type stripePayload struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	ReceiptEmail string `json:"receipt_email"`
	Created      int64  `json:"created"`
	Metadata     struct {
		OrderID      string `json:"order_id"`
		PlanID       string `json:"plan_id"`
		Domain       string `json:"domain"`
		BillingCycle string `json:"billing_cycle"`
	} `json:"metadata"`
}

func parseStripe(body []byte) (*models.PaymentNotification, error) {
	var p stripePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.Metadata.OrderID == "" {
		return nil, fmt.Errorf("%w: metadata.order_id is required", ErrMalformedPayload)
	}
	if p.Status == "" {
		return nil, fmt.Errorf("%w: status is required", ErrMalformedPayload)
	}

	var paidAt time.Time
	if p.Created > 0 {
		paidAt = time.Unix(p.Created, 0).UTC()
	}

	meta := map[string]string{}
	if p.Metadata.PlanID != "" {
		meta["plan_id"] = p.Metadata.PlanID
	}
	if p.Metadata.Domain != "" {
		meta["domain"] = p.Metadata.Domain
	}
	if p.Metadata.BillingCycle != "" {
		meta["billing_cycle"] = p.Metadata.BillingCycle
	}

	return &models.PaymentNotification{
		OrderID:   p.Metadata.OrderID,
		PaymentID: p.ID,
		Status:    mapStatus(p.Status),
		// Card amounts arrive in minor units.
		Amount:     float64(p.Amount) / 100,
		Currency:   p.Currency,
		Method:     "card",
		PaidAt:     paidAt,
		PayerEmail: p.ReceiptEmail,
		Metadata:   meta,
	}, nil
}

func mapStatus(s string) models.PaymentStatus {
	switch s {
	case "approved", "succeeded":
		return models.PaymentApproved
	case "rejected", "failed", "charged_back":
		return models.PaymentRejected
	case "cancelled", "canceled":
		return models.PaymentCancelled
	default:
		return models.PaymentPending
	}
}

func stringMetadata(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}
