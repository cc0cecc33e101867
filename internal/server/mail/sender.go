package mail

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	gomail "github.com/wneessen/go-mail"
)

// DefaultSMTPTimeout bounds a delivery when SMTPConfig.Timeout is unset.
const DefaultSMTPTimeout = 10 * time.Second

// SMTPConfig describes the outbound relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// Timeout bounds a whole delivery on top of the caller's context.
	Timeout time.Duration
	// RequireTLS refuses relays that do not offer STARTTLS. Otherwise TLS is
	// used when offered.
	RequireTLS bool
}

func (c SMTPConfig) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SMTPSender delivers messages through an SMTP relay with go-mail. Every
// delivery is bounded by the caller's context and by the configured timeout.
// Failures are reported wrapped in common.ErrTransport and are not retried.
type SMTPSender struct {
	cfg      SMTPConfig
	renderer Renderer
	log      logging.Logger
	dialer   net.Dialer
}

func NewSMTPSender(cfg SMTPConfig, r Renderer, log logging.Logger) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSMTPTimeout
	}
	return &SMTPSender{
		cfg:      cfg,
		renderer: r,
		log:      log.With("module", "mail"),
	}
}

func (s *SMTPSender) SendOTPEmail(ctx context.Context, to, code, firstName string) error {
	msg, err := s.renderer.OTP(to, code, firstName)
	if err != nil {
		return err
	}
	return s.deliver(ctx, msg)
}

func (s *SMTPSender) SendWelcomeEmail(ctx context.Context, to, firstName string) error {
	msg, err := s.renderer.Welcome(to, firstName)
	if err != nil {
		return err
	}
	return s.deliver(ctx, msg)
}

func (s *SMTPSender) deliver(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransport, err)
	}

	m, err := msg.Msg()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var conn net.Conn
	stop := func() bool { return false }
	dial := func(dialCtx context.Context, network, addr string) (net.Conn, error) {
		c, err := s.dialer.DialContext(dialCtx, network, addr)
		if err != nil {
			return nil, err
		}
		conn = c
		// Cancelling ctx unblocks any pending read or write on the relay.
		stop = context.AfterFunc(ctx, func() { _ = c.SetDeadline(time.Now()) })
		return c, nil
	}

	client, err := gomail.NewClient(s.cfg.Host, s.options(dial)...)
	if err != nil {
		return fmt.Errorf("%w: smtp client: %v", common.ErrTransport, err)
	}

	err = client.DialAndSendWithContext(ctx, m)
	stop()
	if err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		return fmt.Errorf("%w: smtp send to %s: %v", common.ErrTransport, s.cfg.addr(), err)
	}

	s.log.Debug(ctx, "mail sent", "subject", msg.Subject)
	return nil
}

func (s *SMTPSender) options(dial func(ctx context.Context, network, addr string) (net.Conn, error)) []gomail.Option {
	policy := gomail.TLSOpportunistic
	if s.cfg.RequireTLS {
		policy = gomail.TLSMandatory
	}

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(s.cfg.Timeout),
		gomail.WithTLSPolicy(policy),
		gomail.WithDialContextFunc(dial),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// WriterSender writes rendered messages to w instead of sending them. It is
// meant for local development, where the reset code has to be read from the
// console.
type WriterSender struct {
	mu       sync.Mutex
	w        io.Writer
	renderer Renderer
}

func NewWriterSender(w io.Writer, r Renderer) *WriterSender {
	return &WriterSender{w: w, renderer: r}
}

func (s *WriterSender) SendOTPEmail(_ context.Context, to, code, firstName string) error {
	msg, err := s.renderer.OTP(to, code, firstName)
	if err != nil {
		return err
	}
	return s.write(msg)
}

func (s *WriterSender) SendWelcomeEmail(_ context.Context, to, firstName string) error {
	msg, err := s.renderer.Welcome(to, firstName)
	if err != nil {
		return err
	}
	return s.write(msg)
}

func (s *WriterSender) write(msg *Message) error {
	m, err := msg.Msg()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := m.WriteTo(s.w); err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	if _, err := io.WriteString(s.w, "\n"); err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	return nil
}
