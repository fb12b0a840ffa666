package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"lanzaweb/internal/events"
	"lanzaweb/internal/services"
	"lanzaweb/internal/store"
	"lanzaweb/internal/webhook"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	Orders    *services.OrderService
	Processor *webhook.Processor
	Store     store.Store
	Events    *events.Hub
	Logger    *zap.SugaredLogger

	upgrader websocket.Upgrader
}

func NewHandler(orders *services.OrderService, processor *webhook.Processor, st store.Store, hub *events.Hub, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		Orders:    orders,
		Processor: processor,
		Store:     st,
		Events:    hub,
		Logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type createOrderRequest struct {
	Customer struct {
		Name   string `json:"name"`
		Email  string `json:"email"`
		Phone  string `json:"phone"`
		Domain string `json:"domain"`
		Notes  string `json:"notes"`
	} `json:"customer"`
	Plan struct {
		ID string `json:"id"`
	} `json:"plan"`
}

type createOrderResponse struct {
	Success    bool    `json:"success"`
	OrderID    string  `json:"order_id"`
	PaymentURL string  `json:"payment_url"`
	Amount     float64 `json:"amount"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	order, err := h.Orders.CreateOrder(r.Context(), services.CreateOrderRequest{
		Name:   req.Customer.Name,
		Email:  req.Customer.Email,
		Phone:  req.Customer.Phone,
		Domain: req.Customer.Domain,
		Plan:   req.Plan.ID,
		Notes:  req.Customer.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingName),
			errors.Is(err, services.ErrMissingEmail),
			errors.Is(err, services.ErrInvalidDomain):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.Logger.Errorw("create order failed", "err", err)
			writeError(w, http.StatusInternalServerError, "create order failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, createOrderResponse{
		Success:    true,
		OrderID:    order.OrderID,
		PaymentURL: h.Orders.PaymentURL(order.OrderID),
		Amount:     order.Amount,
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	order, err := h.Orders.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Orden no encontrada")
			return
		}
		h.Logger.Errorw("get order failed", "order_id", orderID, "err", err)
		writeError(w, http.StatusInternalServerError, "get order failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"order":   order,
	})
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	processor := chi.URLParam(r, "processor")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || !json.Valid(body) {
		// A structurally invalid body matches no order; acknowledge so
		// the processor stops redelivering.
		writeJSON(w, http.StatusOK, webhook.Result{Success: false, Error: "invalid json body"})
		return
	}

	result, err := h.Processor.Process(r.Context(), processor, body)
	if err != nil {
		h.Logger.Errorw("webhook processing failed", "processor", processor, "err", err)
		writeError(w, http.StatusInternalServerError, "webhook processing failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.Store.CountOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"orders_in_memory": count,
	})
}

// OrderEvents streams status transitions for one order over a
// websocket until the client hangs up.
func (h *Handler) OrderEvents(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if _, err := h.Store.GetOrder(r.Context(), orderID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Orden no encontrada")
			return
		}
		writeError(w, http.StatusInternalServerError, "get order failed")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, cancel := h.Events.Subscribe(orderID)
	defer cancel()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	// Read pump: its only job is to notice the peer going away.
	go func() {
		defer stop()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Status.Terminal() {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
