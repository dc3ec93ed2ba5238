// Package mailer delivers the account e-mails. Message bodies are Markdown
// templates rendered to HTML with goldmark; the SMTP transport is go-mail.
package mailer

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by a transport with no SMTP settings.
var ErrNotConfigured = errors.New("smtp is not configured")

// Message is one outgoing e-mail. Text is the plain-text alternative.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Info describes the transport for diagnostics. It never carries the
// password.
type Info struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	User      string `json:"user"`
	TLSMode   string `json:"tlsMode"`
	TLSActive bool   `json:"tlsActive"`
}

// Transport sends messages. Send must only return nil once the server has
// accepted the message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	// Ping opens and closes an authenticated connection.
	Ping(ctx context.Context) error
	Info() Info
}

// Disabled is the transport used when no SMTP host is configured.
type Disabled struct{}

func (Disabled) Send(context.Context, Message) error { return ErrNotConfigured }
func (Disabled) Ping(context.Context) error          { return ErrNotConfigured }
func (Disabled) Info() Info                          { return Info{TLSMode: "none"} }
