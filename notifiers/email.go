package notifiers

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"text/template"
	"time"

	"github.com/kova98/reddit-digest/models"
)

//go:embed templates/digest.html templates/digest.txt
var emailTemplates embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.New("emails").ParseFS(emailTemplates, "templates/*.html"))
	textTemplates = template.Must(template.New("emails").Funcs(template.FuncMap{
		"inc":     func(i int) int { return i + 1 },
		"percent": func(f float64) float64 { return f * 100 },
	}).ParseFS(emailTemplates, "templates/*.txt"))
)

// implicitTLSPort is the SMTPS port; any other port negotiates STARTTLS.
const implicitTLSPort = "465"

type deliverFunc func(ctx context.Context, from string, to []string, msg []byte) error

type Mailer struct {
	logger      *slog.Logger
	smtpHost    string
	smtpPort    string
	from        string
	password    string
	timeout     time.Duration
	implicitTLS bool
	tlsConfig   *tls.Config
	deliver     deliverFunc
}

func NewMailer(logger *slog.Logger, smtpHost, smtpPort, from, password string, timeout time.Duration) *Mailer {
	m := &Mailer{
		logger:      logger,
		smtpHost:    smtpHost,
		smtpPort:    smtpPort,
		from:        from,
		password:    password,
		timeout:     timeout,
		implicitTLS: smtpPort == implicitTLSPort,
		tlsConfig:   &tls.Config{ServerName: smtpHost},
	}
	m.deliver = m.deliverSMTP
	return m
}

// DigestEmail renders table as an HTML table with a plain-text fallback.
func (m *Mailer) DigestEmail(to, subreddit string, table models.PostTable, day time.Time) (models.Email, error) {
	subject := fmt.Sprintf("Reddit r/%s hot posts - %s", subreddit, day.Format("January 2, 2006"))

	tmplData := struct {
		Subject   string
		Subreddit string
		Date      string
		Columns   []string
		Posts     models.PostTable
	}{
		Subject:   subject,
		Subreddit: subreddit,
		Date:      day.Format("Monday, January 2, 2006"),
		Columns:   models.PostColumns,
		Posts:     table,
	}

	var html bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, "digest.html", tmplData); err != nil {
		return models.Email{}, fmt.Errorf("render digest html template: %w", err)
	}

	var text bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, "digest.txt", tmplData); err != nil {
		return models.Email{}, fmt.Errorf("render digest text template: %w", err)
	}

	return models.Email{
		From:    m.from,
		To:      to,
		Subject: subject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

// Send delivers mail over an encrypted, authenticated SMTP session.
func (m *Mailer) Send(ctx context.Context, mail models.Email) error {
	msg, err := buildMessage(mail, time.Now())
	if err != nil {
		return &NotifyError{Sink: "email", Err: err}
	}

	if err := m.deliver(ctx, mail.From, []string{mail.To}, msg); err != nil {
		m.logger.Error("failed to send email", "error", err)
		return &NotifyError{Sink: "email", Err: err}
	}

	m.logger.Info("email sent", "recipient", mail.To, "subject", mail.Subject)
	return nil
}

func buildMessage(mail models.Email, date time.Time) ([]byte, error) {
	var msg bytes.Buffer
	mw := multipart.NewWriter(&msg)

	fmt.Fprintf(&msg, "From: %s\r\nTo: %s\r\nSubject: %s\r\nDate: %s\r\nMIME-Version: 1.0\r\nContent-Type: multipart/alternative; boundary=%q\r\n\r\n",
		mail.From,
		mail.To,
		mime.QEncoding.Encode("utf-8", mail.Subject),
		date.Format(time.RFC1123Z),
		mw.Boundary(),
	)

	if err := writePart(mw, "text/plain; charset=UTF-8", mail.Text); err != nil {
		return nil, fmt.Errorf("write text part: %w", err)
	}
	if err := writePart(mw, "text/html; charset=UTF-8", mail.HTML); err != nil {
		return nil, fmt.Errorf("write html part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return msg.Bytes(), nil
}

func writePart(mw *multipart.Writer, contentType, body string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}

func (m *Mailer) deliverSMTP(ctx context.Context, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(m.smtpHost, m.smtpPort)
	dialer := &net.Dialer{Timeout: m.timeout}

	var conn net.Conn
	var err error
	if m.implicitTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: m.tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if m.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(m.timeout))
	}

	c, err := smtp.NewClient(conn, m.smtpHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if !m.implicitTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return fmt.Errorf("%s does not offer STARTTLS", addr)
		}
		if err := c.StartTLS(m.tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if err := c.Auth(smtp.PlainAuth("", m.from, m.password, m.smtpHost)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}

	return c.Quit()
}
