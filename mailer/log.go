package mailer

import (
	"context"
	"sync"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-print"
)

// Message is a delivered email as seen by LogSender.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// LogSender logs messages instead of delivering them. It keeps the
// messages it saw, which makes it handy in development and tests.
type LogSender struct {
	logger accounts.Logger

	mu   sync.Mutex
	sent []Message
}

var _ accounts.EmailSender = (*LogSender)(nil)

func NewLogSender(logger accounts.Logger) *LogSender {
	if logger == nil {
		logger = accounts.ResolveLogger("mailer", nil, nil)
	}
	return &LogSender{logger: logger}
}

func (l *LogSender) SendEmail(_ context.Context, to, subject, htmlBody string) error {
	if to == "" {
		return ErrMissingRecipient
	}

	msg := Message{To: to, Subject: subject, Body: htmlBody}

	l.mu.Lock()
	l.sent = append(l.sent, msg)
	l.mu.Unlock()

	l.logger.Info("email", "message", print.MaybePrettyJSON(msg))
	return nil
}

// Sent returns a copy of the messages logged so far.
func (l *LogSender) Sent() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.sent...)
}
