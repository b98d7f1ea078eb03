// Package notify sends operational email out of the audit sweep.
package notify

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/ledgerline/installment-service/internal/config"
)

// OverdueItem is one past-due schedule entry flagged by the audit sweep.
type OverdueItem struct {
	PlanID  int64
	Month   int
	DueDate time.Time
	Amount  float64
}

// Sender handles sending emails via SMTP.
type Sender struct {
	cfg *config.Config
	log *logrus.Logger
}

// NewSender creates a new email sender.
func NewSender(cfg *config.Config, log *logrus.Logger) *Sender {
	return &Sender{cfg: cfg, log: log}
}

// SendOverdueSummary mails the list of overdue installments to the
// configured report address. A missing address disables the summary.
func (s *Sender) SendOverdueSummary(items []OverdueItem) error {
	if s.cfg.ReportEmail == "" || len(items) == 0 {
		return nil
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.ReportEmail}
	e.Subject = fmt.Sprintf("Overdue installments: %d entries", len(items))

	body := "The following installments are past due:\n\n"
	var total float64
	for _, item := range items {
		body += fmt.Sprintf("plan %d, month %d: %.2f due %s\n",
			item.PlanID, item.Month, item.Amount, item.DueDate.Format("2006-01-02"))
		total += item.Amount
	}
	body += fmt.Sprintf("\nTotal outstanding on overdue entries: %.2f\n", total)
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("failed to send overdue summary: %w", err)
	}

	s.log.Infof("Overdue summary sent to %s (%d entries)", s.cfg.ReportEmail, len(items))
	return nil
}
