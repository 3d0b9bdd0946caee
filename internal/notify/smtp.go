package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string

	// ResetLinkBase is the frontend page that accepts ?token=.
	ResetLinkBase string
	// ResetTokenTTL is quoted in the reset email.
	ResetTokenTTL time.Duration
}

func (c SMTPConfig) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type sendFunc func(ctx context.Context, from, to string, msg []byte) error

// SMTPNotifier sends multipart text and HTML emails through an SMTP relay.
type SMTPNotifier struct {
	cfg    SMTPConfig
	logger *zap.Logger
	send   sendFunc
	now    func() time.Time
}

func NewSMTPNotifier(cfg SMTPConfig, logger *zap.Logger) *SMTPNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &SMTPNotifier{cfg: cfg, logger: logger, now: time.Now}
	n.send = n.deliver
	return n
}

var (
	welcomeHTML = template.Must(template.New("welcome").Parse(
		`<h1>Welcome {{.Name}}!</h1><p>Your account is ready.</p>`))

	resetHTML = template.Must(template.New("reset").Parse(`<html>
<body>
  <h2>Password Reset Request</h2>
  <p>You requested to reset your password. Click the link below to proceed:</p>
  <a href="{{.Link}}">Reset Password</a>
  <p>This link will expire in {{.Expiry}}.</p>
  <p>If you didn't request this, please ignore this email.</p>
</body>
</html>`))
)

func (n *SMTPNotifier) NotifyWelcome(ctx context.Context, email, name string) error {
	var html bytes.Buffer
	if err := welcomeHTML.Execute(&html, struct{ Name string }{name}); err != nil {
		return fmt.Errorf("notify: render welcome: %w", err)
	}
	text := fmt.Sprintf("Hello %s,\n\nWelcome! Your account is ready.", name)
	return n.sendMail(ctx, email, "Welcome", text, html.String())
}

func (n *SMTPNotifier) NotifyReset(ctx context.Context, email, resetToken string) error {
	link := ResetLink(n.cfg.ResetLinkBase, resetToken)

	var html bytes.Buffer
	data := struct{ Link, Expiry string }{link, describeTTL(n.cfg.ResetTokenTTL)}
	if err := resetHTML.Execute(&html, data); err != nil {
		return fmt.Errorf("notify: render reset: %w", err)
	}
	text := "Click this link to reset your password: " + link
	return n.sendMail(ctx, email, "Password Reset Request", text, html.String())
}

func (n *SMTPNotifier) sendMail(ctx context.Context, to, subject, text, html string) error {
	msg, err := n.compose(to, subject, text, html)
	if err != nil {
		return err
	}
	if err := n.send(ctx, n.cfg.FromEmail, to, msg); err != nil {
		return fmt.Errorf("notify: send %q: %w", subject, err)
	}
	n.logger.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func (n *SMTPNotifier) compose(to, subject, text, html string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct{ contentType, content string }{
		{"text/plain; charset=UTF-8", text},
		{"text/html; charset=UTF-8", html},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, fmt.Errorf("notify: compose: %w", err)
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, fmt.Errorf("notify: compose: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("notify: compose: %w", err)
	}

	from := n.cfg.FromEmail
	if n.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", n.cfg.FromName), n.cfg.FromEmail)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", n.now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// deliver speaks SMTP to the configured relay, upgrading with STARTTLS
// when the server offers it.
func (n *SMTPNotifier) deliver(ctx context.Context, from, to string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", n.cfg.addr())
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: n.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if n.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}
	return c.Quit()
}

func describeTTL(d time.Duration) string {
	switch {
	case d <= 0 || d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
