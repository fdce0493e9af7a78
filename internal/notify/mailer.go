package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, m Message) error
}

type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Timeout bounds dialing and each SMTP exchange.
	Timeout time.Duration
}

// SMTPMailer delivers plain-text mail through one relay, dialing a fresh
// connection per message.
type SMTPMailer struct {
	client *mail.Client
	from   string
}

func NewSMTPMailer(o SMTPOptions) (*SMTPMailer, error) {
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	opts := []mail.Option{
		mail.WithPort(o.Port),
		mail.WithTimeout(o.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if o.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(o.Username),
			mail.WithPassword(o.Password),
		)
	}
	client, err := mail.NewClient(o.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: o.From}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	em, err := m.message(msg)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, em); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// message builds the MIME message. Header values are encoded by go-mail,
// so a subject can never add header lines.
func (m *SMTPMailer) message(msg Message) (*mail.Msg, error) {
	em := mail.NewMsg()
	if err := em.From(m.from); err != nil {
		return nil, fmt.Errorf("mail from %q: %w", m.from, err)
	}
	if err := em.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail to %q: %w", msg.To, err)
	}
	em.Subject(msg.Subject)
	em.SetBodyString(mail.TypeTextPlain, msg.Body)
	return em, nil
}

// LogMailer stands in for SMTP in development.
type LogMailer struct{ Log *slog.Logger }

func (m LogMailer) Send(_ context.Context, msg Message) error {
	m.Log.Info("email", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
