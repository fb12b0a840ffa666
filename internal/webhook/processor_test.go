package webhook

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"lanzaweb/internal/deploy"
	"lanzaweb/internal/mailer"
	"lanzaweb/internal/models"
	"lanzaweb/internal/panel"
	"lanzaweb/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panelCall struct {
	req panel.CreateAccountRequest
}

type mockPanel struct {
	calls []panelCall
	// errs are consumed per call; nil entry means success. When
	// exhausted, calls succeed.
	errs []error
}

func (m *mockPanel) CreateAccount(ctx context.Context, req panel.CreateAccountRequest) (*panel.CreateAccountResult, error) {
	m.calls = append(m.calls, panelCall{req: req})
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &panel.CreateAccountResult{
		Username: req.Username,
		Password: req.Password,
		PanelURL: "https://panel.example:2083",
	}, nil
}

type sentMail struct {
	kind mailer.Kind
	to   string
	data map[string]any
}

type mockMailer struct {
	sent []sentMail
	err  error
}

func (m *mockMailer) Send(kind mailer.Kind, to string, data map[string]any) error {
	m.sent = append(m.sent, sentMail{kind: kind, to: to, data: data})
	return m.err
}

func (m *mockMailer) byKind(kind mailer.Kind) []sentMail {
	var out []sentMail
	for _, s := range m.sent {
		if s.kind == kind {
			out = append(out, s)
		}
	}
	return out
}

type mockDeployer struct {
	calls int
	err   error
}

func (m *mockDeployer) UploadDirectory(ctx context.Context, creds deploy.Credentials, localPath, remotePath string) error {
	m.calls++
	return m.err
}

func newFixture(t *testing.T) (*Processor, *store.Memory, *mockPanel, *mockMailer) {
	t.Helper()
	mem, err := store.NewMemory("")
	require.NoError(t, err)
	pnl := &mockPanel{}
	ml := &mockMailer{}
	p := &Processor{
		Store:         mem,
		Panel:         pnl,
		Mailer:        ml,
		Logger:        zap.NewNop().Sugar(),
		PanelLoginURL: "https://panel.example:2083",
	}
	return p, mem, pnl, ml
}

func seedOrder(t *testing.T, mem *store.Memory, id string, status models.OrderStatus) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	order := &models.Order{
		OrderID:      id,
		CustomerName: "Ana Pérez",
		Email:        "c@x.com",
		Domain:       "mitienda.com.ar",
		Plan:         "basico",
		Amount:       15000,
		Currency:     "ARS",
		Status:       models.OrderPendingPayment,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, mem.CreateOrder(ctx, order))

	switch status {
	case models.OrderPendingPayment:
	case models.OrderPaid:
		_, err := mem.MarkPaid(ctx, id, "seed-pay", now)
		require.NoError(t, err)
	case models.OrderProvisioning:
		_, err := mem.MarkPaid(ctx, id, "seed-pay", now)
		require.NoError(t, err)
		_, err = mem.BeginProvisioning(ctx, id)
		require.NoError(t, err)
	case models.OrderCompleted:
		_, err := mem.MarkPaid(ctx, id, "seed-pay", now)
		require.NoError(t, err)
		_, err = mem.BeginProvisioning(ctx, id)
		require.NoError(t, err)
		require.NoError(t, mem.CompleteOrder(ctx, id, &models.HostingAccount{Username: "seeded"}, now))
	default:
		t.Fatalf("unsupported seed status %s", status)
	}
}

func approvedMercadoPago(orderID string) []byte {
	return []byte(fmt.Sprintf(
		`{"id": 42, "external_reference": %q, "status": "approved", "transaction_amount": 15000, "currency_id": "ARS", "payer": {"email": "c@x.com"}}`,
		orderID))
}

func TestProcess_ApprovedPaidOrderGetsProvisioned(t *testing.T) {
	p, mem, pnl, ml := newFixture(t)
	seedOrder(t, mem, "LW123", models.OrderPaid)

	res, err := p.Process(context.Background(), "mercadopago", approvedMercadoPago("LW123"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.OrderCompleted, res.Status)

	require.Len(t, pnl.calls, 1)
	req := pnl.calls[0].req
	assert.Equal(t, "mitienda.com.ar", req.Domain)
	assert.Equal(t, "lw_basico", req.Package)
	assert.Equal(t, 2048, req.QuotaMB)
	assert.LessOrEqual(t, len(req.Username), 16)

	order, err := mem.GetOrder(context.Background(), "LW123")
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, order.Status)
	require.NotNil(t, order.Account)
	assert.Equal(t, req.Username, order.Account.Username)

	creds := ml.byKind(mailer.KindCredentials)
	require.Len(t, creds, 1)
	assert.Equal(t, "c@x.com", creds[0].to)
	assert.Equal(t, req.Username, creds[0].data["username"])
}

func TestProcess_NonApprovedNeverProvisions(t *testing.T) {
	for _, status := range []string{"pending", "in_process", "rejected", "cancelled"} {
		t.Run(status, func(t *testing.T) {
			p, mem, pnl, _ := newFixture(t)
			seedOrder(t, mem, "LW123", models.OrderPendingPayment)

			body := []byte(fmt.Sprintf(
				`{"external_reference": "LW123", "status": %q, "transaction_amount": 15000}`, status))
			res, err := p.Process(context.Background(), "mercadopago", body)
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Empty(t, pnl.calls, "non-approved payment must never reach the panel")

			// redelivery of the same event is a no-op too
			res, err = p.Process(context.Background(), "mercadopago", body)
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Empty(t, pnl.calls)
		})
	}
}

func TestProcess_RejectedMarksPaymentFailed(t *testing.T) {
	p, mem, _, _ := newFixture(t)
	seedOrder(t, mem, "LW123", models.OrderPendingPayment)

	body := []byte(`{"external_reference": "LW123", "status": "rejected"}`)
	res, err := p.Process(context.Background(), "mercadopago", body)
	require.NoError(t, err)
	assert.True(t, res.Success)

	order, _ := mem.GetOrder(context.Background(), "LW123")
	assert.Equal(t, models.OrderPaymentFailed, order.Status)
}

func TestProcess_OrderNotFound(t *testing.T) {
	p, _, pnl, _ := newFixture(t)

	res, err := p.Process(context.Background(), "mercadopago", approvedMercadoPago("LW123"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "order not found", res.Error)
	assert.Empty(t, pnl.calls)
}

func TestProcess_IdempotentOnCompletedOrder(t *testing.T) {
	p, mem, pnl, _ := newFixture(t)
	seedOrder(t, mem, "LW123", models.OrderPaid)

	res, err := p.Process(context.Background(), "mercadopago", approvedMercadoPago("LW123"))
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, pnl.calls, 1)

	// same approved webhook delivered again
	res, err = p.Process(context.Background(), "mercadopago", approvedMercadoPago("LW123"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.OrderCompleted, res.Status)
	assert.Len(t, pnl.calls, 1, "exactly one provisioning call in total")

	order, _ := mem.GetOrder(context.Background(), "LW123")
	assert.Equal(t, models.OrderCompleted, order.Status)
}

func TestProcess_SkipsWhenAlreadyProvisioning(t *testing.T) {
	p, mem, pnl, _ := newFixture(t)
	seedOrder(t, mem, "LW123", models.OrderProvisioning)

	res, err := p.Process(context.Background(), "mercadopago", approvedMercadoPago("LW123"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.OrderProvisioning, res.Status)
	assert.Empty(t, pnl.calls)
}

func TestProcess_ProvisioningFailureRecordsReason(t *testing.T) {
	p, mem, pnl, ml := newFixture(t)
	seedOrder(t, mem, "LW123", models.OrderPaid)
	pnl.errs = []error{&panel.RemoteError{Reason: "quota exceeded on server"}}

	res, err := p.Process(context.Background(), "mercadopago", approvedMercadoPago("LW123"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, models.OrderProvisioningFailed, res.Status)

	order, _ := mem.GetOrder(context.Background(), "LW123")
	assert.Equal(t, models.OrderProvisioningFailed, order.Status)
	require.NotNil(t, order.LastError)
	assert.Equal(t, "quota exceeded on server", *order.LastError)

	assert.Empty(t, ml.byKind(mailer.KindCredentials), "no credentials mail on failure")
}

func TestProcess_UsernameConflictRetriesBounded(t *testing.T) {
	p, mem, pnl, _ := newFixture(t)
	seedOrder(t, mem, "LW123", models.OrderPaid)
	conflict := &panel.RemoteError{Reason: "username already exists"}
	pnl.errs = []error{conflict, conflict}

	res, err := p.Process(context.Background(), "mercadopago", approvedMercadoPago("LW123"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, pnl.calls, 3, "two conflicts then success")
	assert.NotEqual(t, pnl.calls[0].req.Username, pnl.calls[1].req.Username)
}

func TestProcess_UsernameConflictExhaustsRetries(t *testing.T) {
	p, mem, pnl, _ := newFixture(t)
	seedOrder(t, mem, "LW123", models.OrderPaid)
	conflict := &panel.RemoteError{Reason: "username already exists"}
	pnl.errs = []error{conflict, conflict, conflict}

	res, err := p.Process(context.Background(), "mercadopago", approvedMercadoPago("LW123"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Len(t, pnl.calls, 3)

	order, _ := mem.GetOrder(context.Background(), "LW123")
	assert.Equal(t, models.OrderProvisioningFailed, order.Status)
}

func TestProcess_MailFailureDoesNotBlockCompletion(t *testing.T) {
	p, mem, _, ml := newFixture(t)
	seedOrder(t, mem, "LW123", models.OrderPaid)
	ml.err = errors.New("smtp auth failed")

	res, err := p.Process(context.Background(), "mercadopago", approvedMercadoPago("LW123"))
	require.NoError(t, err)
	assert.True(t, res.Success)

	order, _ := mem.GetOrder(context.Background(), "LW123")
	assert.Equal(t, models.OrderCompleted, order.Status, "account is live, mail bounce must not lose it")
}

func TestProcess_DeployFailureIsNonFatal(t *testing.T) {
	p, mem, _, _ := newFixture(t)
	seedOrder(t, mem, "LW123", models.OrderPaid)
	dep := &mockDeployer{err: errors.New("target directory missing")}
	p.Deployer = dep
	p.SiteDir = "site-template"

	res, err := p.Process(context.Background(), "mercadopago", approvedMercadoPago("LW123"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, dep.calls)

	order, _ := mem.GetOrder(context.Background(), "LW123")
	assert.Equal(t, models.OrderCompleted, order.Status)
}

func TestProcess_PendingOrderGetsPaymentConfirmation(t *testing.T) {
	p, mem, _, ml := newFixture(t)
	seedOrder(t, mem, "LW123", models.OrderPendingPayment)

	res, err := p.Process(context.Background(), "mercadopago", approvedMercadoPago("LW123"))
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Len(t, ml.byKind(mailer.KindPaymentConfirmation), 1)
	assert.Len(t, ml.byKind(mailer.KindCredentials), 1)
}

func TestProcess_DisabledProcessorAcknowledged(t *testing.T) {
	p, mem, pnl, _ := newFixture(t)
	p.Processors = []string{"stripe"}
	seedOrder(t, mem, "LW123", models.OrderPaid)

	res, err := p.Process(context.Background(), "mercadopago", approvedMercadoPago("LW123"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, pnl.calls)
}

func TestProcess_MalformedPayloadAcknowledged(t *testing.T) {
	p, _, pnl, _ := newFixture(t)

	res, err := p.Process(context.Background(), "mercadopago", []byte(`{"status":"approved"}`))
	require.NoError(t, err, "malformed payloads are handled, not errors")
	assert.False(t, res.Success)
	assert.Empty(t, pnl.calls)
}
