package services

import (
	"context"
	"errors"
	"time"

	"lanzaweb/internal/credentials"
	"lanzaweb/internal/mailer"
	"lanzaweb/internal/models"
	"lanzaweb/internal/panel"
	"lanzaweb/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMissingName   = errors.New("missing customer name")
	ErrMissingEmail  = errors.New("missing customer email")
	ErrInvalidDomain = errors.New("invalid domain")
)

// Sender is satisfied by *mailer.Mailer; nil disables the welcome mail.
type Sender interface {
	Send(kind mailer.Kind, to string, data map[string]any) error
}

type OrderService struct {
	Store          store.Store
	Mailer         Sender
	Logger         *zap.SugaredLogger
	PaymentURLBase string
	Currency       string
}

type CreateOrderRequest struct {
	Name   string
	Email  string
	Phone  string
	Domain string
	Plan   string
	Notes  string
}

func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	if req.Name == "" {
		return nil, ErrMissingName
	}
	if req.Email == "" {
		return nil, ErrMissingEmail
	}
	if !panel.ValidDomain(req.Domain) {
		return nil, ErrInvalidDomain
	}

	now := time.Now().UTC()
	order := &models.Order{
		OrderID:      "LW" + uuid.NewString()[:8],
		CustomerName: req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Domain:       req.Domain,
		Plan:         req.Plan,
		Notes:        req.Notes,
		Amount:       credentials.PriceFor(req.Plan),
		Currency:     s.Currency,
		Status:       models.OrderPendingPayment,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	// Welcome mail is a courtesy; the order stands either way.
	if s.Mailer != nil {
		if err := s.Mailer.Send(mailer.KindWelcome, order.Email, map[string]any{
			"name":     order.CustomerName,
			"domain":   order.Domain,
			"order_id": order.OrderID,
			"notes":    order.Notes,
		}); err != nil && s.Logger != nil {
			s.Logger.Warnw("welcome mail failed", "order_id", order.OrderID, "err", err)
		}
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.Store.GetOrder(ctx, orderID)
}

func (s *OrderService) PaymentURL(orderID string) string {
	if s.PaymentURLBase == "" {
		return ""
	}
	return s.PaymentURLBase + "?order=" + orderID
}
