// internal/service/email/service.go
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/service/reminder"
)

// EmailSender handles outgoing emails via SMTP.
type EmailSender struct {
	smtpHost string
	smtpPort string
	username string
	password string
	fromName string
	secure   bool
}

// NewEmailSender creates a new SMTP email sender.
func NewEmailSender(host, port, user, pass, fromName string, secure bool) *EmailSender {
	return &EmailSender{
		smtpHost: host,
		smtpPort: port,
		username: user,
		password: pass,
		fromName: fromName,
		secure:   secure,
	}
}

// SendBillingReminder implements reminder.Notifier.
func (e *EmailSender) SendBillingReminder(ctx context.Context, r *reminder.BillingReminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("Upcoming payment on %s", r.NextBillingDate.Format("January 2, 2006"))
	return e.Send(r.To, subject, buildReminderBody(r))
}

// Send sends an email with a subject and body (HTML supported).
func (e *EmailSender) Send(to, subject, bodyHTML string) error {
	from := fmt.Sprintf("%s <%s>", e.fromName, e.username)
	msg := []byte(
		fmt.Sprintf("From: %s\r\n", from) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			wrapHTMLLayout(bodyHTML),
	)

	serverAddr := e.smtpHost + ":" + e.smtpPort

	tlsConfig := &tls.Config{
		InsecureSkipVerify: false,
		ServerName:         e.smtpHost,
	}

	if e.secure {
		// Port 465 - implicit TLS
		conn, err := tls.Dial("tcp", serverAddr, tlsConfig)
		if err != nil {
			return fmt.Errorf("tls dial failed: %w", err)
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, e.smtpHost)
		if err != nil {
			return fmt.Errorf("smtp client failed: %w", err)
		}
		defer client.Quit()

		auth := smtp.PlainAuth("", e.username, e.password, e.smtpHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth failed: %w", err)
		}

		return e.sendMail(client, to, msg)
	}

	// Port 587 - STARTTLS
	auth := smtp.PlainAuth("", e.username, e.password, e.smtpHost)
	if err := smtp.SendMail(serverAddr, auth, e.username, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail failed: %w", err)
	}

	return nil
}

func (e *EmailSender) sendMail(client *smtp.Client, to string, msg []byte) error {
	if err := client.Mail(e.username); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close failed: %w", err)
	}
	return nil
}

func buildReminderBody(r *reminder.BillingReminder) string {
	packageRow := ""
	if r.PackageName != "" {
		packageRow = fmt.Sprintf(`<tr><td class="label">Package</td><td>%s</td></tr>`, r.PackageName)
	}

	return fmt.Sprintf(`
	<p>Hi %s,</p>
	<p>This is a reminder that your subscription renews soon. The amount below
	will be charged to your payment method on file.</p>
	<table class="details">
		%s
		<tr><td class="label">Amount</td><td>%s %s</td></tr>
		<tr><td class="label">Billing date</td><td>%s</td></tr>
		<tr><td class="label">Billing cycle</td><td>%s</td></tr>
	</table>
	<p>No action is needed if your payment details are up to date.</p>
	`,
		r.ClientName,
		packageRow,
		r.Amount.StringFixed(2), r.Currency,
		r.NextBillingDate.Format("January 2, 2006"),
		r.Frequency,
	)
}

// wrapHTMLLayout wraps a given body into the shared email layout.
func wrapHTMLLayout(content string) string {
	return `
	<!DOCTYPE html>
	<html>
	<head>
		<meta charset="utf-8" />
		<style>
			body { font-family: Arial, sans-serif; color: #2d3142; margin: 0; }
			.container { max-width: 560px; margin: 0 auto; padding: 24px; }
			table.details { border-collapse: collapse; margin: 16px 0; }
			table.details td { padding: 6px 12px; border: 1px solid #e0e0e0; }
			table.details td.label { font-weight: bold; background: #f7f7f9; }
			.footer { font-size: 12px; color: #8d8f9a; margin-top: 24px; }
		</style>
	</head>
	<body>
		<div class="container">
		` + content + `
		<p class="footer">You are receiving this email because you have an active subscription.</p>
		</div>
	</body>
	</html>`
}
