package notify

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/lead-intake/internal/leads"
	"github.com/wolfman30/lead-intake/internal/observability/metrics"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

var tracer = otel.Tracer("leadintake.internal.notify")

const (
	KindClient = "client"
	KindAdmin  = "admin"
)

// Notification is everything the two emails are rendered from.
type Notification struct {
	LeadID        string
	Submission    leads.Submission
	Qualification *leads.QualificationResult
	Score         *leads.LeadScore
}

// Receipt reports which emails were delivered.
type Receipt struct {
	ClientSent bool
	AdminSent  bool
}

type Config struct {
	AdminEmail    string
	PublicBaseURL string
	SendTimeout   time.Duration
	Signature     string
}

// Dispatcher sends the client acknowledgment and the admin alert.
type Dispatcher struct {
	sender  EmailSender
	cfg     Config
	metrics *metrics.IntakeMetrics
	logger  *logging.Logger
}

func NewDispatcher(sender EmailSender, cfg Config, m *metrics.IntakeMetrics, logger *logging.Logger) *Dispatcher {
	if sender == nil {
		panic("notify: email sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.Signature == "" {
		cfg.Signature = "The project team"
	}
	return &Dispatcher{sender: sender, cfg: cfg, metrics: m, logger: logger}
}

// Notify sends both emails concurrently. Each send has its own timeout and a
// failure of one never affects the other. Errors are logged, not returned.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) Receipt {
	ctx, span := tracer.Start(ctx, "notify.dispatch")
	defer span.End()

	v := newView(n, d.cfg)
	var receipt Receipt
	var g errgroup.Group

	g.Go(func() error {
		msg, err := renderClient(v)
		if err == nil {
			msg.To = n.Submission.Email
		}
		receipt.ClientSent = d.deliver(ctx, KindClient, n.LeadID, msg, err)
		return nil
	})

	if strings.TrimSpace(d.cfg.AdminEmail) == "" {
		d.logger.Warn("admin notification skipped: no admin email configured", "lead_id", n.LeadID)
	} else {
		g.Go(func() error {
			msg, err := renderAdmin(v)
			if err == nil {
				msg.To = d.cfg.AdminEmail
			}
			receipt.AdminSent = d.deliver(ctx, KindAdmin, n.LeadID, msg, err)
			return nil
		})
	}

	_ = g.Wait()
	span.SetAttributes(
		attribute.Bool("notify.client_sent", receipt.ClientSent),
		attribute.Bool("notify.admin_sent", receipt.AdminSent),
	)
	return receipt
}

func (d *Dispatcher) deliver(ctx context.Context, kind, leadID string, msg EmailMessage, renderErr error) bool {
	if renderErr != nil {
		d.logger.Error("notification render failed", "kind", kind, "lead_id", leadID, "error", renderErr)
		d.metrics.ObserveNotification(kind, false)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	started := time.Now()
	err := d.sender.Send(ctx, msg)
	d.metrics.ObserveNotification(kind, err == nil)
	if err != nil {
		d.logger.Error("notification send failed", "kind", kind, "lead_id", leadID, "error", err)
		return false
	}
	d.logger.Info("notification sent", "kind", kind, "lead_id", leadID, "duration_ms", time.Since(started).Milliseconds())
	return true
}
