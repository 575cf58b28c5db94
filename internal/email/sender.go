package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

const (
	defaultSMTPHost    = "smtp.gmail.com"
	defaultSMTPPort    = 587
	defaultFromName    = "BuildWise"
	defaultSMTPTimeout = 15 * time.Second
)

// ErrTransportNotConfigured is returned when SMTP credentials are missing.
var ErrTransportNotConfigured = errors.New("email transport not configured: set SMTP_USER and SMTP_PASS")

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Verify dials the transport and authenticates without sending.
	Verify(ctx context.Context) error
}

// SMTPConfig configures the SMTP transport.
type SMTPConfig struct {
	Host      string
	Port      int
	Secure    bool // implicit TLS, typically port 465
	User      string
	Password  string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	config SMTPConfig
}

// NewSMTPSender creates an SMTPSender, filling unset fields with defaults.
// FromEmail defaults to User.
func NewSMTPSender(config SMTPConfig) *SMTPSender {
	if config.Host == "" {
		config.Host = defaultSMTPHost
	}
	if config.Port <= 0 {
		config.Port = defaultSMTPPort
	}
	if config.FromEmail == "" {
		config.FromEmail = config.User
	}
	if config.FromName == "" {
		config.FromName = defaultFromName
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultSMTPTimeout
	}
	return &SMTPSender{config: config}
}

// Configured reports whether credentials are set.
func (s *SMTPSender) Configured() bool {
	return s.config.User != "" && s.config.Password != ""
}

// Send dials the relay, sends msg and closes the connection.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if !s.Configured() {
		return ErrTransportNotConfigured
	}

	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}

	client, err := s.newClient()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// Verify checks connectivity and credentials.
func (s *SMTPSender) Verify(ctx context.Context) error {
	if !s.Configured() {
		return ErrTransportNotConfigured
	}

	client, err := s.newClient()
	if err != nil {
		return err
	}
	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to smtp server: %w", err)
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close smtp connection: %w", err)
	}
	return nil
}

func (s *SMTPSender) newClient() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.config.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.config.User),
		mail.WithPassword(s.config.Password),
		mail.WithTimeout(s.config.Timeout),
	}
	if s.config.Secure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(s.config.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return client, nil
}

// buildMessage sends the plain text part first with HTML as the alternative.
func (s *SMTPSender) buildMessage(msg Message) (*mail.Msg, error) {
	if msg.HTML == "" && msg.Text == "" {
		return nil, errors.New("email has no body")
	}

	m := mail.NewMsg()
	if err := m.FromFormat(s.config.FromName, s.config.FromEmail); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	case msg.Text != "":
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
	default:
		m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

// compile-time interface check
var _ Sender = (*SMTPSender)(nil)
