package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPTransport dials a fresh connection per message.
type SMTPTransport struct {
	cfg SMTPConfig
}

func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPTransport{cfg: cfg}
}

// implicitTLS reports whether the port speaks TLS from the first byte.
func (t *SMTPTransport) implicitTLS() bool {
	return t.cfg.Port == 465
}

func (t *SMTPTransport) Info() Info {
	info := Info{Host: t.cfg.Host, Port: t.cfg.Port, User: t.cfg.User}
	switch {
	case t.implicitTLS():
		info.TLSMode, info.TLSActive = "SSL direto", true
	case t.cfg.Port == 587:
		info.TLSMode, info.TLSActive = "TLS (STARTTLS)", true
	default:
		info.TLSMode = "Customizado"
	}
	return info
}

// newClient is a seam for tests.
var newClient = func(host string, opts ...mail.Option) (smtpClient, error) {
	return mail.NewClient(host, opts...)
}

type smtpClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
	DialWithContext(ctx context.Context) error
	Close() error
}

func (t *SMTPTransport) client() (smtpClient, error) {
	opts := []mail.Option{
		mail.WithPort(t.cfg.Port),
		mail.WithTimeout(t.cfg.Timeout),
	}
	if t.implicitTLS() {
		opts = append(opts, mail.WithSSLPort(false))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}
	if t.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.cfg.User),
			mail.WithPassword(t.cfg.Password),
		)
	}

	c, err := newClient(t.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return c, nil
}

func (t *SMTPTransport) buildMsg(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(t.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	if msg.Text != "" {
		m.AddAlternativeString(mail.TypeTextPlain, msg.Text)
	}
	return m, nil
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m, err := t.buildMsg(msg)
	if err != nil {
		return err
	}

	c, err := t.client()
	if err != nil {
		return err
	}

	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (t *SMTPTransport) Ping(ctx context.Context) error {
	c, err := t.client()
	if err != nil {
		return err
	}
	if err := c.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	return c.Close()
}
