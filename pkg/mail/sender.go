// Package mail delivers the rendered report over an authenticated SMTP
// submission channel.
package mail

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Sender submits mail through a single SMTP endpoint. The connection is
// upgraded with STARTTLS before authenticating.
type Sender struct {
	Host     string
	Port     int
	Username string
	Token    string
}

// Send delivers one HTML message. Delivery failure leaves previously
// persisted run state untouched; only the notification is lost.
func (s *Sender) Send(from string, recipients []string, subject, htmlBody string) error {
	message := gomail.NewMessage()
	message.SetHeader("From", from)
	message.SetHeader("To", recipients...)
	message.SetHeader("Subject", subject)
	message.SetBody("text/html", htmlBody)

	dialer := gomail.NewDialer(s.Host, s.Port, s.Username, s.Token)
	if err := dialer.DialAndSend(message); err != nil {
		return fmt.Errorf("could not submit report to %s:%d: %w", s.Host, s.Port, err)
	}
	return nil
}
