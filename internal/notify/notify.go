// Package notify sends an e-mail when a collection run has to be continued by hand.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"bankstatements/internal/components/telemetry"
	"bankstatements/internal/statement"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("bankstatements.notify")

const report_mailer_send = "mailer.send"

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	Notify       []string `json:"notify"`
}

// Enabled reports whether there is anyone to notify.
func (c SmtpConfig) Enabled() bool {
	return c.Server != "" && len(c.Notify) > 0
}

func (c SmtpConfig) addr() string {
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

type Mailer struct {
	config SmtpConfig
	tel    telemetry.API
}

func NewMailer(config SmtpConfig, tel telemetry.API) (Mailer, error) {
	if config.Server == "" || config.Port == 0 {
		return Mailer{}, fmt.Errorf("no smtp server defined")
	}
	if config.EmailAddress == "" {
		return Mailer{}, fmt.Errorf("no sender email address defined")
	}
	if len(config.Notify) == 0 {
		return Mailer{}, fmt.Errorf("no one to notify")
	}
	return Mailer{
		config: config,
		tel:    telemetry.NewScopedAPI("notify", tel),
	}, nil
}

func (m Mailer) extendedProcessMail(suspended *statement.ExtendedProcessError) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Bank Statements <%s>", m.config.EmailAddress)
	mail.To = m.config.Notify
	mail.Subject = fmt.Sprintf("Bank statements: [%s] is waiting for you", suspended.Collector)
	mail.Text = []byte(fmt.Sprintf(`Collecting the statements of bank account %d was suspended because [%s] asked for an extra step that cannot be done automatically.

%v

Complete the step, then continue the collection with:

    statements continue --password %s=<password>`,
		suspended.AccountID,
		suspended.Collector,
		suspended.Err,
		suspended.Collector,
	))
	return mail
}

func (m Mailer) NotifyExtendedProcess(ctx context.Context, suspended *statement.ExtendedProcessError) error {
	ctx, span := tracer.Start(ctx, "NotifyExtendedProcess")
	defer span.End()
	span.SetAttributes(
		attribute.String("collector", suspended.Collector),
		attribute.Int64("account_id", suspended.AccountID),
	)

	mail := m.extendedProcessMail(suspended)

	err := mail.Send(
		m.config.addr(),
		smtp.PlainAuth("", m.config.EmailAddress, m.config.Password, m.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(m.config.addr(), nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		m.tel.ReportBroken(report_mailer_send, err, "to", strings.Join(m.config.Notify, ","))
		return err
	}

	m.tel.ReportDebug("mailer: notified", "collector", suspended.Collector, "account", suspended.AccountID)
	return nil
}
