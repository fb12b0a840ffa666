package store

import (
	"context"
	"errors"
	"time"

	"lanzaweb/internal/models"
)

// ErrNotFound is returned by GetOrder when no order exists for the id.
var ErrNotFound = errors.New("order not found")

// Store owns all Order mutations. Status transitions are enforced by
// conditional updates on the current status, so two concurrent webhook
// deliveries for the same order cannot both pass the provisioning gate.
type Store interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)

	// MarkPaid moves pending_payment -> paid and records the payment id
	// and timestamp. Returns false when the order was not in
	// pending_payment (already paid or beyond).
	MarkPaid(ctx context.Context, orderID, paymentID string, paidAt time.Time) (bool, error)

	// MarkPaymentFailed moves pending_payment -> payment_failed.
	MarkPaymentFailed(ctx context.Context, orderID, reason string) (bool, error)

	// BeginProvisioning moves paid -> provisioning. Returns false when
	// the order is not in paid; the caller treats that as "someone else
	// already provisioned or is provisioning".
	BeginProvisioning(ctx context.Context, orderID string) (bool, error)

	// CompleteOrder moves provisioning -> completed and attaches the
	// hosting account.
	CompleteOrder(ctx context.Context, orderID string, account *models.HostingAccount, completedAt time.Time) error

	// FailProvisioning moves provisioning -> provisioning_failed and
	// records the remote reason.
	FailProvisioning(ctx context.Context, orderID, reason string) error

	CountOrders(ctx context.Context) (int64, error)
}
