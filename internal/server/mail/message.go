// Package mail renders and delivers the auth emails: the password reset
// code and the welcome message.
package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	gomail "github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	subjectOTP     = "Password Reset - Verification Code"
	subjectWelcome = "Welcome to %s"
)

// Message is a rendered email. Msg turns it into a MIME message.
type Message struct {
	FromName    string
	FromAddress string
	To          string
	Subject     string
	HTML        string
	Date        time.Time
}

type otpData struct {
	AppName   string
	FirstName string
	Code      string
	ExpiresIn string
	Year      int
}

type welcomeData struct {
	AppName   string
	FirstName string
	Year      int
}

// Renderer builds Messages from the embedded templates.
type Renderer struct {
	AppName string
	From    string
	CodeTTL time.Duration
	Now     func() time.Time
}

func (r Renderer) OTP(to, code, firstName string) (*Message, error) {
	body, err := render("otp.html", otpData{
		AppName:   r.AppName,
		FirstName: firstName,
		Code:      code,
		ExpiresIn: humanDuration(r.CodeTTL),
		Year:      r.now().Year(),
	})
	if err != nil {
		return nil, err
	}
	return r.message(to, subjectOTP, body)
}

func (r Renderer) Welcome(to, firstName string) (*Message, error) {
	body, err := render("welcome.html", welcomeData{
		AppName:   r.AppName,
		FirstName: firstName,
		Year:      r.now().Year(),
	})
	if err != nil {
		return nil, err
	}
	return r.message(to, fmt.Sprintf(subjectWelcome, r.AppName), body)
}

func (r Renderer) message(to, subject, body string) (*Message, error) {
	msg := &Message{
		FromName:    r.AppName,
		FromAddress: r.From,
		To:          to,
		Subject:     subject,
		HTML:        body,
		Date:        r.now(),
	}
	if _, err := msg.Msg(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r Renderer) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Msg builds the MIME message with Date and Message-ID set. Header values
// are encoded by go-mail, so they cannot break out of their header line.
func (m *Message) Msg() (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(m.FromName, m.FromAddress); err != nil {
		return nil, fmt.Errorf("sender %q: %w", m.FromAddress, err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("recipient %q: %w", m.To, err)
	}
	msg.Subject(m.Subject)
	if m.Date.IsZero() {
		msg.SetDate()
	} else {
		msg.SetDateWithValue(m.Date)
	}
	msg.SetMessageID()
	msg.SetBodyString(gomail.TypeTextHTML, m.HTML)
	return msg, nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func humanDuration(d time.Duration) string {
	if d <= 0 {
		return "a few minutes"
	}
	if m := int(d.Round(time.Minute) / time.Minute); m > 0 {
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}
