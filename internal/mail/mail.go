package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"text/template"
	"time"
)

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type Purpose string

const (
	PurposeVerifyEmail   Purpose = "verify-email"
	PurposeResetPassword Purpose = "reset-password"
)

type SMTPMailer struct {
	addr     string
	host     string
	username string
	password string
	from     string
}

func NewSMTPMailer(host string, port int, username string, password string, from string) *SMTPMailer {
	return &SMTPMailer{
		addr:     host + ":" + strconv.Itoa(port),
		host:     host,
		username: username,
		password: password,
		from:     from,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	body, err := buildMIME(m.from, msg)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(m.addr, auth, m.from, []string{msg.To}, body)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("send mail to %s: %w", msg.To, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", msg.To, err)
		}
		return nil
	}
}

// LogMailer prints messages instead of delivering them. Used when no SMTP
// relay is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	slog.Info("mail not delivered (no SMTP relay configured)", "to", msg.To, "subject", msg.Subject, "body", msg.Text)
	return nil
}

func buildMIME(from string, msg Message) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTML == "" {
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		buf.WriteString(msg.Text)
		return buf.Bytes(), nil
	}

	var parts bytes.Buffer
	writer := multipart.NewWriter(&parts)
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", writer.Boundary())

	for _, part := range []struct {
		contentType string
		body        string
	}{
		{contentType: "text/plain; charset=UTF-8", body: msg.Text},
		{contentType: "text/html; charset=UTF-8", body: msg.HTML},
	} {
		w, err := writer.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, fmt.Errorf("build mail part: %w", err)
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, fmt.Errorf("write mail part: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close mail body: %w", err)
	}

	buf.Write(parts.Bytes())
	return buf.Bytes(), nil
}

var textTemplate = template.Must(template.New("code").Parse(`Hello {{.Name}},

{{.Intro}}

    {{.Code}}

The code expires in {{.Minutes}} minutes. If you did not request it, ignore this message.
`))

var htmlTemplate = htmltemplate.Must(htmltemplate.New("code").Parse(`<p>Hello {{.Name}},</p>
<p>{{.Intro}}</p>
<p style="font-size:24px;letter-spacing:4px"><strong>{{.Code}}</strong></p>
<p>The code expires in {{.Minutes}} minutes. If you did not request it, ignore this message.</p>
`))

// VerificationMessage renders the one-time code mail for registration or
// password reset.
func VerificationMessage(to string, name string, code string, ttl time.Duration, purpose Purpose) (Message, error) {
	data := struct {
		Name    string
		Intro   string
		Code    string
		Minutes int
	}{
		Name:    name,
		Code:    code,
		Minutes: int(ttl.Round(time.Minute) / time.Minute),
	}
	if data.Minutes < 1 {
		data.Minutes = 1
	}
	if strings.TrimSpace(data.Name) == "" {
		data.Name = to
	}

	subject := "Verify your email address"
	data.Intro = "Use this code to confirm your email address:"
	if purpose == PurposeResetPassword {
		subject = "Your password reset code"
		data.Intro = "Use this code to reset your password:"
	}

	var text bytes.Buffer
	if err := textTemplate.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render text mail: %w", err)
	}

	var html bytes.Buffer
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render html mail: %w", err)
	}

	return Message{To: to, Subject: subject, Text: text.String(), HTML: html.String()}, nil
}
