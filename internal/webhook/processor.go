package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lanzaweb/internal/credentials"
	"lanzaweb/internal/deploy"
	"lanzaweb/internal/events"
	"lanzaweb/internal/mailer"
	"lanzaweb/internal/models"
	"lanzaweb/internal/panel"
	"lanzaweb/internal/store"
)

// ErrOrderNotFound marks an approved payment that references no known
// order. Surfaced distinctly so the handler can acknowledge it instead
// of inviting endless redelivery.
var ErrOrderNotFound = errors.New("order not found")

const maxUsernameAttempts = 3

// PanelClient is the provisioning boundary; satisfied by *panel.Client.
type PanelClient interface {
	CreateAccount(ctx context.Context, req panel.CreateAccountRequest) (*panel.CreateAccountResult, error)
}

// Sender is the notification boundary; satisfied by *mailer.Mailer.
type Sender interface {
	Send(kind mailer.Kind, to string, data map[string]any) error
}

// Deployer is the optional starter-site boundary; satisfied by
// *deploy.Client.
type Deployer interface {
	UploadDirectory(ctx context.Context, creds deploy.Credentials, localPath, remotePath string) error
}

// Processor drives one webhook from raw payload to final order state.
// It owns the sequence; every collaborator is called, never calling.
type Processor struct {
	Store    store.Store
	Panel    PanelClient
	Mailer   Sender
	Deployer Deployer // nil disables starter-site deployment
	Events   *events.Hub
	Logger   *zap.SugaredLogger

	PanelLoginURL string
	SiteDir       string

	// Processors is the enabled-processor allow-list; empty allows all
	// known shapes.
	Processors []string
}

func (p *Processor) processorEnabled(name string) bool {
	if len(p.Processors) == 0 {
		return true
	}
	for _, n := range p.Processors {
		if n == name {
			return true
		}
	}
	return false
}

// Result is what the HTTP layer reports back to the payment processor.
// A non-nil error from Process means infrastructure trouble (store
// unreachable etc.) and maps to 5xx; everything else is a handled event.
type Result struct {
	Success bool               `json:"success"`
	Error   string             `json:"error,omitempty"`
	Status  models.OrderStatus `json:"status,omitempty"`
}

func (p *Processor) Process(ctx context.Context, processor string, body []byte) (Result, error) {
	if !p.processorEnabled(processor) {
		p.Logger.Warnw("webhook for disabled processor", "processor", processor)
		return Result{Success: false, Error: ErrUnknownProcessor.Error()}, nil
	}

	notif, err := Parse(processor, body)
	if err != nil {
		p.Logger.Warnw("webhook rejected", "processor", processor, "err", err)
		return Result{Success: false, Error: err.Error()}, nil
	}

	log := p.Logger.With("order_id", notif.OrderID, "processor", processor, "payment_status", notif.Status)

	if notif.Status != models.PaymentApproved {
		return p.handleNotApproved(ctx, log, notif)
	}

	order, err := p.Store.GetOrder(ctx, notif.OrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warnw("approved payment for unknown order")
			return Result{Success: false, Error: ErrOrderNotFound.Error()}, nil
		}
		return Result{}, fmt.Errorf("load order: %w", err)
	}

	paidAt := notif.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	marked, err := p.Store.MarkPaid(ctx, order.OrderID, notif.PaymentID, paidAt)
	if err != nil {
		return Result{}, fmt.Errorf("mark paid: %w", err)
	}
	if marked {
		p.publish(order.OrderID, models.OrderPaid, "")
		p.sendPaymentConfirmation(log, order, notif)
	}

	// Atomic paid -> provisioning gate. Losing it means another
	// delivery already provisioned (or is provisioning): a no-op, not
	// an error, so a redelivered approval never creates a second
	// account.
	won, err := p.Store.BeginProvisioning(ctx, order.OrderID)
	if err != nil {
		return Result{}, fmt.Errorf("begin provisioning: %w", err)
	}
	if !won {
		current, err := p.Store.GetOrder(ctx, order.OrderID)
		if err != nil {
			return Result{}, fmt.Errorf("reload order: %w", err)
		}
		log.Infow("provisioning skipped", "status", current.Status)
		return Result{Success: true, Status: current.Status}, nil
	}
	p.publish(order.OrderID, models.OrderProvisioning, "")

	return p.provision(ctx, log, order)
}

func (p *Processor) handleNotApproved(ctx context.Context, log *zap.SugaredLogger, notif *models.PaymentNotification) (Result, error) {
	var status models.OrderStatus
	switch notif.Status {
	case models.PaymentRejected, models.PaymentCancelled:
		changed, err := p.Store.MarkPaymentFailed(ctx, notif.OrderID, "payment "+string(notif.Status))
		if err != nil {
			return Result{}, fmt.Errorf("mark payment failed: %w", err)
		}
		status = models.OrderPaymentFailed
		if changed {
			p.publish(notif.OrderID, models.OrderPaymentFailed, "payment "+string(notif.Status))
		}
	default:
		// Pending events carry no state change; redeliveries are no-ops.
		status = models.OrderPendingPayment
	}
	log.Infow("non-approved payment recorded")
	return Result{Success: true, Status: status}, nil
}

// provision creates the account, optionally deploys the starter site,
// mails the credentials and completes the order. Deployment and mail
// failures are logged and surfaced on the order but never undo an
// account that is already live.
func (p *Processor) provision(ctx context.Context, log *zap.SugaredLogger, order *models.Order) (Result, error) {
	var created *panel.CreateAccountResult
	var lastErr error

	for attempt := 1; attempt <= maxUsernameAttempts; attempt++ {
		req := panel.CreateAccountRequest{
			Username:    credentials.Username(order.Domain),
			Password:    credentials.Password(12),
			Domain:      order.Domain,
			Package:     credentials.PackageFor(order.Plan),
			Email:       order.Email,
			QuotaMB:     credentials.QuotaFor(order.Plan),
			BandwidthMB: credentials.BandwidthFor(order.Plan),
		}
		created, lastErr = p.Panel.CreateAccount(ctx, req)
		if lastErr == nil {
			break
		}
		if !panel.IsConflict(lastErr) {
			break
		}
		log.Warnw("username conflict, regenerating", "attempt", attempt, "username", req.Username)
	}

	if lastErr != nil {
		reason := lastErr.Error()
		var re *panel.RemoteError
		if errors.As(lastErr, &re) {
			reason = re.Reason
		}
		if err := p.Store.FailProvisioning(ctx, order.OrderID, reason); err != nil {
			return Result{}, fmt.Errorf("record provisioning failure: %w", err)
		}
		p.publish(order.OrderID, models.OrderProvisioningFailed, reason)
		log.Errorw("provisioning failed", "err", lastErr)
		return Result{Success: false, Error: reason, Status: models.OrderProvisioningFailed}, nil
	}

	account := &models.HostingAccount{
		Username: created.Username,
		Domain:   order.Domain,
		Package:  credentials.PackageFor(order.Plan),
		PanelURL: p.PanelLoginURL,
	}

	if p.Deployer != nil && p.SiteDir != "" {
		creds := deploy.Credentials{Username: created.Username, Password: created.Password}
		if err := p.Deployer.UploadDirectory(ctx, creds, p.SiteDir, deploy.DefaultDir); err != nil {
			log.Warnw("starter site deployment failed", "err", err)
		}
	}

	if err := p.Mailer.Send(mailer.KindCredentials, order.Email, map[string]any{
		"name":      order.CustomerName,
		"domain":    order.Domain,
		"username":  created.Username,
		"password":  created.Password,
		"panel_url": p.PanelLoginURL,
		"plan":      order.Plan,
	}); err != nil {
		// The account is live; a bounced mail must not lose it.
		log.Errorw("credentials mail failed", "err", err)
	}

	if err := p.Store.CompleteOrder(ctx, order.OrderID, account, time.Now().UTC()); err != nil {
		return Result{}, fmt.Errorf("complete order: %w", err)
	}
	p.publish(order.OrderID, models.OrderCompleted, "")
	log.Infow("order completed", "username", created.Username)
	return Result{Success: true, Status: models.OrderCompleted}, nil
}

func (p *Processor) sendPaymentConfirmation(log *zap.SugaredLogger, order *models.Order, notif *models.PaymentNotification) {
	if err := p.Mailer.Send(mailer.KindPaymentConfirmation, order.Email, map[string]any{
		"name":     order.CustomerName,
		"order_id": order.OrderID,
		"amount":   notif.Amount,
		"currency": notif.Currency,
	}); err != nil {
		log.Warnw("payment confirmation mail failed", "err", err)
	}
}

func (p *Processor) publish(orderID string, status models.OrderStatus, reason string) {
	if p.Events == nil {
		return
	}
	p.Events.Publish(events.Event{
		OrderID: orderID,
		Status:  status,
		Error:   reason,
		At:      time.Now().UTC(),
	})
}
