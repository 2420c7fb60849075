package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"

	"github.com/recebimentosmart/billing-backend/internal/models"
)

// FirstSubscriptionNotifier tells the finance team when a user subscribes for the first time.
type FirstSubscriptionNotifier interface {
	FirstSubscription(ctx context.Context, sub *models.Subscription) error
}

type sendFunc func(ctx context.Context, e *email.Email, addr string, auth smtp.Auth) error

type EmailNotifier struct {
	host    string
	port    string
	user    string
	pass    string
	from    string
	to      string
	timeout time.Duration
	send    sendFunc
}

// NewEmailNotifier builds a notifier whose SMTP session, from dial to QUIT,
// is bounded by timeout.
func NewEmailNotifier(host, port, user, pass, from, to string, timeout time.Duration) *EmailNotifier {
	n := &EmailNotifier{
		host:    host,
		port:    port,
		user:    user,
		pass:    pass,
		from:    from,
		to:      to,
		timeout: timeout,
	}
	n.send = n.dialAndSend
	return n
}

func (n *EmailNotifier) FirstSubscription(ctx context.Context, sub *models.Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = n.from
	e.To = []string{n.to}
	e.Subject = "Nova assinatura: primeiro pagamento confirmado"
	e.Text = []byte(fmt.Sprintf(
		"Um novo assinante confirmou o primeiro pagamento.\n\nUsuário: %s\nPlano: %s\nInício: %s\nVálida até: %s\nReferência: %s\n",
		sub.UserID,
		sub.Plan,
		sub.StartDate.Format(time.RFC3339),
		sub.EndDate.Format(time.RFC3339),
		sub.PaymentReference,
	))

	addr := n.host + ":" + n.port
	auth := smtp.PlainAuth("", n.user, n.pass, n.host)
	if err := n.send(ctx, e, addr, auth); err != nil {
		return fmt.Errorf("failed to send first subscription email: %w", err)
	}
	slog.Info("first subscription email sent", "user_id", sub.UserID.String(), "to", n.to)
	return nil
}

// dialAndSend delivers e the way email.Send does, but over a connection that
// carries a deadline.
func (n *EmailNotifier) dialAndSend(ctx context.Context, e *email.Email, addr string, auth smtp.Auth) error {
	raw, err := e.Bytes()
	if err != nil {
		return err
	}
	sender, err := mail.ParseAddress(e.From)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	rcpts := make([]string, 0, len(e.To)+len(e.Cc)+len(e.Bcc))
	rcpts = append(rcpts, e.To...)
	rcpts = append(rcpts, e.Cc...)
	rcpts = append(rcpts, e.Bcc...)
	if len(rcpts) == 0 {
		return errors.New("no recipients")
	}

	deadline := time.Now().Add(n.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}

	c, err := smtp.NewClient(conn, n.host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: n.host}); err != nil {
			return err
		}
	}
	if ok, _ := c.Extension("AUTH"); ok && auth != nil && n.user != "" {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(sender.Address); err != nil {
		return err
	}
	for _, rcpt := range rcpts {
		to, err := mail.ParseAddress(rcpt)
		if err != nil {
			return fmt.Errorf("invalid recipient %q: %w", rcpt, err)
		}
		if err := c.Rcpt(to.Address); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// NoopNotifier only logs. Used when SMTP is not configured.
type NoopNotifier struct{}

func (NoopNotifier) FirstSubscription(_ context.Context, sub *models.Subscription) error {
	slog.Info("first subscription", "user_id", sub.UserID.String(), "plan", sub.Plan)
	return nil
}
