package webhook

import (
	"testing"

	"lanzaweb/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_MercadoPago(t *testing.T) {
	body := []byte(`{
		"id": 987654,
		"external_reference": "LW123",
		"status": "approved",
		"transaction_amount": 15000,
		"currency_id": "ARS",
		"payment_method_id": "account_money",
		"date_approved": "2025-03-01T12:30:00Z",
		"payer": {"email": "c@x.com"},
		"metadata": {"plan_id": "basico", "domain": "mitienda.com.ar"}
	}`)

	n, err := Parse("mercadopago", body)
	require.NoError(t, err)
	assert.Equal(t, "LW123", n.OrderID)
	assert.Equal(t, "987654", n.PaymentID)
	assert.Equal(t, models.PaymentApproved, n.Status)
	assert.Equal(t, 15000.0, n.Amount)
	assert.Equal(t, "ARS", n.Currency)
	assert.Equal(t, "c@x.com", n.PayerEmail)
	assert.Equal(t, "basico", n.Metadata["plan_id"])
	assert.Equal(t, 2025, n.PaidAt.Year())
}

func TestParse_MercadoPago_MissingReference(t *testing.T) {
	_, err := Parse("mercadopago", []byte(`{"status":"approved"}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestParse_MercadoPago_StatusRequired(t *testing.T) {
	_, err := Parse("mercadopago", []byte(`{"external_reference":"LW123"}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestParse_Stripe_MinorUnitsDividedBy100(t *testing.T) {
	body := []byte(`{
		"id": "pi_123",
		"status": "succeeded",
		"amount": 1500000,
		"currency": "ars",
		"receipt_email": "c@x.com",
		"created": 1740830400,
		"metadata": {"order_id": "LW123", "plan_id": "basico", "domain": "mitienda.com.ar"}
	}`)

	n, err := Parse("stripe", body)
	require.NoError(t, err)
	assert.Equal(t, "LW123", n.OrderID)
	assert.Equal(t, models.PaymentApproved, n.Status)
	assert.Equal(t, 15000.0, n.Amount)
	assert.Equal(t, "card", n.Method)
	assert.Equal(t, "c@x.com", n.PayerEmail)
	assert.Equal(t, "mitienda.com.ar", n.Metadata["domain"])
}

func TestParse_Stripe_MissingOrderID(t *testing.T) {
	_, err := Parse("stripe", []byte(`{"id":"pi_1","status":"succeeded","amount":100}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestParse_UnknownProcessor(t *testing.T) {
	_, err := Parse("paypal", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownProcessor)
}

func TestParse_StatusMapping(t *testing.T) {
	cases := map[string]models.PaymentStatus{
		"approved":   models.PaymentApproved,
		"rejected":   models.PaymentRejected,
		"cancelled":  models.PaymentCancelled,
		"pending":    models.PaymentPending,
		"in_process": models.PaymentPending,
	}
	for raw, want := range cases {
		assert.Equal(t, want, mapStatus(raw), "status %q", raw)
	}
	assert.Equal(t, models.PaymentApproved, mapStatus("succeeded"))
	assert.Equal(t, models.PaymentRejected, mapStatus("failed"))
	assert.Equal(t, models.PaymentCancelled, mapStatus("canceled"))
}
