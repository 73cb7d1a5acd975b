// Package notify publishes fire-and-forget notification jobs for the email service.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"

	"rentflow/metrics"
)

// Template names an email template owned by the delivery service.
type Template string

const (
	TemplateAgreementRequest  Template = "AgreementRequestAlert"
	TemplateAgreementApproved Template = "AgreementApprovedAlertForTenant"
	TemplatePaymentConfirmed  Template = "PaymentConfirmed"
)

var subjects = map[Template]string{
	TemplateAgreementRequest:  "New Agreement Request Alert!",
	TemplateAgreementApproved: "Agreement Approved Alert!",
	TemplatePaymentConfirmed:  "Payment Confirmed!",
}

// Subject returns the email subject line for t.
func (t Template) Subject() string {
	return subjects[t]
}

// Message is the job handed to the delivery service.
type Message struct {
	Template      Template          `json:"template"`
	Subject       string            `json:"subject"`
	To            string            `json:"to"`
	Substitutions map[string]string `json:"substitutions"`
	CreatedAt     time.Time         `json:"createdAt"`
}

func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// Notifier delivers one notification.
type Notifier interface {
	Notify(ctx context.Context, template Template, to string, substitutions map[string]string) error
}

// Dispatcher sends through a Notifier and never reports failure to the caller.
type Dispatcher struct {
	notifier Notifier
	logger   ectologger.Logger
}

func NewDispatcher(notifier Notifier, logger ectologger.Logger) *Dispatcher {
	return &Dispatcher{notifier: notifier, logger: logger}
}

// Send delivers the notification, logging and swallowing any error.
func (d *Dispatcher) Send(ctx context.Context, template Template, to string, substitutions map[string]string) {
	if d == nil || d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(ctx, template, to, substitutions); err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(template), "error").Inc()
		d.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"template": template,
			"to":       to,
		}).Error("failed to send notification")
		return
	}
	metrics.NotificationsTotal.WithLabelValues(string(template), "sent").Inc()
}

// LogNotifier writes notifications to the log; used when no broker is configured.
type LogNotifier struct {
	logger ectologger.Logger
}

func NewLogNotifier(logger ectologger.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, template Template, to string, substitutions map[string]string) error {
	n.logger.WithContext(ctx).WithFields(map[string]any{
		"template":      template,
		"subject":       template.Subject(),
		"to":            to,
		"substitutions": substitutions,
	}).Info("notification")
	return nil
}
