package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dmitrijs2005/reembolsai/internal/logging"
)

//go:embed templates/*.md.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("mail").
	Funcs(template.FuncMap{"md": mdEscape}).
	ParseFS(templateFS, "templates/*.md.tmpl"))

// mdEscape makes caller-supplied text render as a single line of literal
// text: control characters collapse to spaces and every Markdown
// punctuation character is backslash-escaped.
func mdEscape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsControl(r) || r == '\u2028' || r == '\u2029':
			b.WriteByte(' ')
		case r < utf8.RuneSelf && unicode.IsPunct(r) || strings.ContainsRune("$+<=>^`|~", r):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Linkify))

const layout = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f5f5f5; padding: 40px 20px;">
<div style="max-width: 600px; margin: 0 auto; background-color: #ffffff; padding: 30px; border-radius: 12px;">
%s</div>
</body>
</html>
`

// Notifier renders and sends the account e-mails.
type Notifier struct {
	transport Transport
	appURL    string
	logger    logging.Logger
	now       func() time.Time
}

func NewNotifier(transport Transport, appURL string, logger logging.Logger) *Notifier {
	return &Notifier{
		transport: transport,
		appURL:    strings.TrimRight(appURL, "/"),
		logger:    logger.With("module", "mailer"),
		now:       time.Now,
	}
}

func (n *Notifier) Transport() Transport {
	return n.transport
}

// Render executes a template and returns the Markdown source and its HTML.
func Render(name, subject string, data any) (text, html string, err error) {
	var md bytes.Buffer
	if err := templates.ExecuteTemplate(&md, name, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", name, err)
	}

	var body bytes.Buffer
	if err := markdown.Convert(md.Bytes(), &body); err != nil {
		return "", "", fmt.Errorf("convert %s: %w", name, err)
	}

	return md.String(), fmt.Sprintf(layout, template.HTMLEscapeString(subject), body.String()), nil
}

func (n *Notifier) send(ctx context.Context, to, subject, tmpl string, data any) error {
	text, html, err := Render(tmpl, subject, data)
	if err != nil {
		return err
	}

	if err := n.transport.Send(ctx, Message{To: to, Subject: subject, HTML: html, Text: text}); err != nil {
		n.logger.Error(ctx, "email not sent", "to", to, "template", tmpl, "error", err)
		return err
	}

	n.logger.Info(ctx, "email sent", "to", to, "template", tmpl)
	return nil
}

// VerificationLink is the URL a user follows to verify an address.
func (n *Notifier) VerificationLink(token string) string {
	return n.appURL + "/api/auth/verify?token=" + url.QueryEscape(token)
}

func (n *Notifier) SendVerification(ctx context.Context, to, name, token string) error {
	return n.send(ctx, to, "Verifique seu e-mail - ReembolsAí", "verification.md.tmpl", map[string]any{
		"Name": name,
		"Link": n.VerificationLink(token),
		"Year": n.now().Year(),
	})
}

func (n *Notifier) SendWelcome(ctx context.Context, to, name string) error {
	return n.send(ctx, to, "Bem-vindo ao ReembolsAí!", "welcome.md.tmpl", map[string]any{
		"Name": name,
		"Link": n.appURL + "/login",
		"Year": n.now().Year(),
	})
}

func (n *Notifier) SendTest(ctx context.Context, to string) error {
	return n.send(ctx, to, "Teste SMTP - ReembolsAí", "test.md.tmpl", map[string]any{
		"Info": n.transport.Info(),
		"Now":  n.now().Format("02/01/2006 15:04:05"),
	})
}
