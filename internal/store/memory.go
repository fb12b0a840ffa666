package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"lanzaweb/internal/models"
)

// Memory keeps orders in a mutex-guarded map, optionally mirroring each
// order to one JSON document per order id under dir. The JSON files act
// as the durable log across restarts; they are loaded once at startup.
type Memory struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	dir    string
}

func NewMemory(dir string) (*Memory, error) {
	m := &Memory{orders: make(map[string]*models.Order), dir: dir}
	if dir == "" {
		return m, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var order models.Order
		if err := json.Unmarshal(data, &order); err != nil {
			return nil, err
		}
		m.orders[order.OrderID] = &order
	}
	return m, nil
}

func (m *Memory) CreateOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *order
	m.orders[order.OrderID] = &cp
	return m.persistLocked(&cp)
}

func (m *Memory) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *order
	return &cp, nil
}

func (m *Memory) MarkPaid(ctx context.Context, orderID, paymentID string, paidAt time.Time) (bool, error) {
	return m.transition(orderID, models.OrderPendingPayment, func(o *models.Order) {
		o.Status = models.OrderPaid
		o.PaymentID = &paymentID
		o.PaidAt = &paidAt
	})
}

func (m *Memory) MarkPaymentFailed(ctx context.Context, orderID, reason string) (bool, error) {
	return m.transition(orderID, models.OrderPendingPayment, func(o *models.Order) {
		o.Status = models.OrderPaymentFailed
		o.LastError = &reason
	})
}

func (m *Memory) BeginProvisioning(ctx context.Context, orderID string) (bool, error) {
	return m.transition(orderID, models.OrderPaid, func(o *models.Order) {
		o.Status = models.OrderProvisioning
	})
}

func (m *Memory) CompleteOrder(ctx context.Context, orderID string, account *models.HostingAccount, completedAt time.Time) error {
	ok, err := m.transition(orderID, models.OrderProvisioning, func(o *models.Order) {
		o.Status = models.OrderCompleted
		o.CompletedAt = &completedAt
		acct := *account
		o.Account = &acct
		o.LastError = nil
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (m *Memory) FailProvisioning(ctx context.Context, orderID, reason string) error {
	ok, err := m.transition(orderID, models.OrderProvisioning, func(o *models.Order) {
		o.Status = models.OrderProvisioningFailed
		o.LastError = &reason
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (m *Memory) CountOrders(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.orders)), nil
}

// transition applies mutate only when the order currently holds from.
// The map lock makes the check-and-write atomic.
func (m *Memory) transition(orderID string, from models.OrderStatus, mutate func(*models.Order)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return false, nil
	}
	if order.Status != from {
		return false, nil
	}
	mutate(order)
	order.UpdatedAt = time.Now().UTC()
	return true, m.persistLocked(order)
}

func (m *Memory) persistLocked(order *models.Order) error {
	if m.dir == "" {
		return nil
	}
	data, err := json.MarshalIndent(order, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.dir, order.OrderID+".json"), data, 0o644)
}
