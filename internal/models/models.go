package models

import "time"

type OrderStatus string

const (
	OrderPendingPayment     OrderStatus = "pending_payment"
	OrderPaid               OrderStatus = "paid"
	OrderProvisioning       OrderStatus = "provisioning"
	OrderCompleted          OrderStatus = "completed"
	OrderProvisioningFailed OrderStatus = "provisioning_failed"
	OrderPaymentFailed      OrderStatus = "payment_failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderProvisioningFailed, OrderPaymentFailed:
		return true
	}
	return false
}

type Order struct {
	OrderID      string          `json:"order_id"`
	CustomerName string          `json:"customer_name"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone,omitempty"`
	Domain       string          `json:"domain"`
	Plan         string          `json:"plan"`
	Notes        string          `json:"notes,omitempty"`
	Amount       float64         `json:"amount"`
	Currency     string          `json:"currency"`
	Status       OrderStatus     `json:"status"`
	PaymentID    *string         `json:"payment_id,omitempty"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Account      *HostingAccount `json:"hosting_account,omitempty"`
	LastError    *string         `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// HostingAccount is recorded on the order once provisioning succeeds.
// The temporary password is mailed to the customer and never persisted.
type HostingAccount struct {
	Username string `json:"username"`
	Domain   string `json:"domain"`
	Package  string `json:"package"`
	PanelURL string `json:"panel_url"`
}

type PaymentStatus string

const (
	PaymentApproved  PaymentStatus = "approved"
	PaymentRejected  PaymentStatus = "rejected"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentPending   PaymentStatus = "pending"
)

// PaymentNotification is the normalized form of a processor webhook.
// It lives only for the duration of one webhook invocation; only its
// effect on an Order is persisted.
type PaymentNotification struct {
	OrderID    string
	PaymentID  string
	Status     PaymentStatus
	Amount     float64
	Currency   string
	Method     string
	PaidAt     time.Time
	PayerEmail string
	Metadata   map[string]string
}
