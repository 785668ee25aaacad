package email

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/smtp"

	"github.com/AnthonyGillesRudolfo/group-checkout/internal/config"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/events"
)

type Sender interface {
	Send(to, subject, htmlBody string) error
}

type SMTPSender struct {
	host string
	port string
	from string
	auth smtp.Auth // nil for local dev (MailHog)
}

func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{host: cfg.SMTPHost, port: cfg.SMTPPort, from: cfg.From}
}

func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	msg := buildRFC822(s.from, to, subject, htmlBody)
	return smtp.SendMail(addr, s.auth, s.from, []string{to}, msg)
}

func buildRFC822(from, to, subject, html string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&buf, "\r\n%s\r\n", html)
	return buf.Bytes()
}

var checkoutCreatedTpl = template.Must(template.New("checkoutCreated").Parse(`
<h2>Your group checkout is ready{{if .LeadName}}, {{.LeadName}}{{end}}</h2>
<p>Checkout: <b>{{.CheckoutID}}</b> at {{.Merchant}}</p>
<p>Status: {{.Status}}</p>
{{if .ContinueURL}}<p>Finish here: <a href="{{.ContinueURL}}">{{.ContinueURL}}</a></p>{{end}}
`))

var checkoutCompletedTpl = template.Must(template.New("checkoutCompleted").Parse(`
<h2>Your group gift is on its way{{if .LeadName}}, {{.LeadName}}{{end}}</h2>
<p>Checkout <b>{{.CheckoutID}}</b> at {{.Merchant}} is {{.Status}}.</p>
`))

// Render builds the subject and body for a checkout event. The message is
// always addressed to the group lead.
func Render(eventType string, c events.Checkout) (subject, body string, ok bool) {
	var tpl *template.Template
	switch eventType {
	case events.CheckoutCreated:
		tpl, subject = checkoutCreatedTpl, "Finish your group checkout"
	case events.CheckoutCompleted:
		tpl, subject = checkoutCompletedTpl, "Group checkout complete"
	default:
		return "", "", false
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, c); err != nil {
		return "", "", false
	}
	return subject, buf.String(), true
}

// LogSender logs instead of sending. Useful for dev without SMTP.
type LogSender struct{ Logger *log.Logger }

func (s LogSender) Send(to, subject, htmlBody string) error {
	l := s.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf("[email] to=%s subject=%q bytes=%d", to, subject, len(htmlBody))
	return nil
}
