package notifier

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// EmailNotifier sends plain-text alerts over SMTP.
type EmailNotifier struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string

	// send is smtp.SendMail; swapped in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

// NewEmailNotifier returns nil when host or recipient is missing.
func NewEmailNotifier(host string, port int, user, password, to string) *EmailNotifier {
	if host == "" || to == "" {
		return nil
	}
	if port == 0 {
		port = 587
	}
	from := user
	if from == "" {
		from = "spotsentinel@" + host
	}
	var rcpts []string
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			rcpts = append(rcpts, r)
		}
	}
	return &EmailNotifier{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
		To:       rcpts,
		send:     smtp.SendMail,
		now:      time.Now,
	}
}

// Notify implements Notifier. smtp.SendMail takes no context, so the send
// runs in a goroutine and Notify returns when ctx is done.
func (e *EmailNotifier) Notify(ctx context.Context, subject, body string) error {
	var auth smtp.Auth
	if e.User != "" {
		auth = smtp.PlainAuth("", e.User, e.Password, e.Host)
	}
	addr := net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	msg := e.message(subject, body)

	done := make(chan error, 1)
	go func() { done <- e.send(addr, auth, e.From, e.To, msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send email: %w", ctx.Err())
	}
}

func (e *EmailNotifier) message(subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.ReplaceAll(subject, "\n", " "))
	fmt.Fprintf(&b, "Date: %s\r\n", e.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
