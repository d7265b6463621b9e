package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
)

// SMTPSender sends plain-text email via unauthenticated SMTP (Mailpit-compatible).
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(host, port, from string) *SMTPSender {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@salonbook.local"
	}
	return &SMTPSender{addr: net.JoinHostPort(host, port), from: from}
}

func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	subject := msg.Subject
	if subject == "" {
		subject = "Appointment reminder"
	}
	raw := buildMessage(s.from, msg.Recipient, subject, msg.Body)
	if err := smtp.SendMail(s.addr, nil, s.from, []string{msg.Recipient}, []byte(raw)); err != nil {
		// 5xx replies are permanent rejections; anything else may succeed later.
		var tpErr *textproto.Error
		if errors.As(err, &tpErr) && tpErr.Code >= 500 {
			return err
		}
		return Transient(err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) string {
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		to,
		subject,
		body,
	)
}
