package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"lanzaweb/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	Pool *pgxpool.Pool
}

func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Postgres{Pool: pool}, nil
}

func (s *Postgres) Close() {
	s.Pool.Close()
}

func (s *Postgres) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO orders (
			order_id, customer_name, email, phone, domain, plan, notes,
			amount, currency, status, payment_id, paid_at, completed_at,
			account_username, account_domain, account_package, account_panel_url,
			last_error, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`,
		order.OrderID,
		order.CustomerName,
		order.Email,
		order.Phone,
		order.Domain,
		order.Plan,
		order.Notes,
		order.Amount,
		order.Currency,
		order.Status,
		order.PaymentID,
		order.PaidAt,
		order.CompletedAt,
		accountField(order.Account, func(a *models.HostingAccount) string { return a.Username }),
		accountField(order.Account, func(a *models.HostingAccount) string { return a.Domain }),
		accountField(order.Account, func(a *models.HostingAccount) string { return a.Package }),
		accountField(order.Account, func(a *models.HostingAccount) string { return a.PanelURL }),
		order.LastError,
		order.CreatedAt,
		order.UpdatedAt,
	)
	return err
}

const orderColumns = `
	order_id, customer_name, email, phone, domain, plan, notes,
	amount, currency, status, payment_id, paid_at, completed_at,
	account_username, account_domain, account_package, account_panel_url,
	last_error, created_at, updated_at`

func (s *Postgres) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id=$1`, orderID)

	var order models.Order
	var paymentID, lastError sql.NullString
	var paidAt, completedAt sql.NullTime
	var acctUser, acctDomain, acctPkg, acctURL sql.NullString

	err := row.Scan(
		&order.OrderID,
		&order.CustomerName,
		&order.Email,
		&order.Phone,
		&order.Domain,
		&order.Plan,
		&order.Notes,
		&order.Amount,
		&order.Currency,
		&order.Status,
		&paymentID,
		&paidAt,
		&completedAt,
		&acctUser,
		&acctDomain,
		&acctPkg,
		&acctURL,
		&lastError,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if paymentID.Valid {
		order.PaymentID = &paymentID.String
	}
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	if completedAt.Valid {
		order.CompletedAt = &completedAt.Time
	}
	if lastError.Valid {
		order.LastError = &lastError.String
	}
	if acctUser.Valid {
		order.Account = &models.HostingAccount{
			Username: acctUser.String,
			Domain:   acctDomain.String,
			Package:  acctPkg.String,
			PanelURL: acctURL.String,
		}
	}
	return &order, nil
}

func (s *Postgres) MarkPaid(ctx context.Context, orderID, paymentID string, paidAt time.Time) (bool, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET status=$2, payment_id=$3, paid_at=$4, updated_at=now()
		WHERE order_id=$1 AND status='pending_payment'
	`, orderID, models.OrderPaid, paymentID, paidAt)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (s *Postgres) MarkPaymentFailed(ctx context.Context, orderID, reason string) (bool, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET status=$2, last_error=$3, updated_at=now()
		WHERE order_id=$1 AND status='pending_payment'
	`, orderID, models.OrderPaymentFailed, reason)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (s *Postgres) BeginProvisioning(ctx context.Context, orderID string) (bool, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET status=$2, updated_at=now()
		WHERE order_id=$1 AND status='paid'
	`, orderID, models.OrderProvisioning)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (s *Postgres) CompleteOrder(ctx context.Context, orderID string, account *models.HostingAccount, completedAt time.Time) error {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET status=$2, completed_at=$3,
			account_username=$4, account_domain=$5, account_package=$6, account_panel_url=$7,
			last_error=NULL, updated_at=now()
		WHERE order_id=$1 AND status='provisioning'
	`, orderID, models.OrderCompleted, completedAt,
		account.Username, account.Domain, account.Package, account.PanelURL)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) FailProvisioning(ctx context.Context, orderID, reason string) error {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET status=$2, last_error=$3, updated_at=now()
		WHERE order_id=$1 AND status='provisioning'
	`, orderID, models.OrderProvisioningFailed, reason)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&n)
	return n, err
}

func accountField(a *models.HostingAccount, f func(*models.HostingAccount) string) *string {
	if a == nil {
		return nil
	}
	v := f(a)
	return &v
}
