// Package inboundsmtp runs the reply-tracking mail server described by
// sender-domain's inbound_parse_enabled flag (spec.md §3): accounts that
// hit Reply on a sent marketing email land their message here instead of
// a real inbox, and the server just needs to count it against the
// originating email_logs row.
package inboundsmtp

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/pkg/logger"
)

// Backend implements smtp.Backend, handing out one session per inbound
// connection.
type Backend struct {
	emailLogs domain.EmailLogRepository
	logger    logger.Logger
}

// NewBackend builds the inbound-mail backend.
func NewBackend(emailLogs domain.EmailLogRepository, log logger.Logger) *Backend {
	return &Backend{emailLogs: emailLogs, logger: log}
}

// NewSession implements smtp.Backend.
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &session{backend: b}, nil
}

// NewServer wraps backend in a *smtp.Server configured for unauthenticated
// inbound delivery on addr (e.g. the sender-domain's inbound_subdomain,
// MX-routed here), following the teacher's cmd/api/main.go graceful-startup
// shape for long-lived network servers.
func NewServer(addr, heloDomain string, backend *Backend) *smtp.Server {
	s := smtp.NewServer(backend)
	s.Addr = addr
	s.Domain = heloDomain
	s.ReadTimeout = 30 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.MaxMessageBytes = 5 * 1024 * 1024
	s.MaxRecipients = 5
	s.AllowInsecureAuth = false
	return s
}

type session struct {
	backend *Backend
	from    string
	to      []string
}

// AuthMechanisms/Auth are unimplemented: inbound MX delivery from the
// public internet never authenticates.
func (s *session) AuthMechanisms() []string { return nil }

func (s *session) Auth(mech string) (sasl.Server, error) {
	return nil, smtp.ErrAuthUnsupported
}

func (s *session) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *session) Rcpt(to string, opts *smtp.RcptOptions) error {
	s.to = append(s.to, to)
	return nil
}

// Data reads the inbound reply, pulls the Message-ID the original send
// stamped into In-Reply-To/References, and increments that email_log's
// reply counter. A reply that doesn't correlate to a known send is
// logged and dropped rather than erroring the SMTP transaction.
func (s *session) Data(r io.Reader) error {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return fmt.Errorf("parsing inbound message: %w", err)
	}

	refID := strings.TrimSpace(msg.Header.Get("In-Reply-To"))
	if refID == "" {
		refs := strings.Fields(msg.Header.Get("References"))
		if len(refs) > 0 {
			refID = refs[len(refs)-1]
		}
	}
	if refID == "" {
		s.backend.logger.WithField("from", s.from).Warn("inbound reply with no In-Reply-To/References header, dropping")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log, err := s.backend.emailLogs.GetByMessageID(ctx, refID)
	if err != nil {
		s.backend.logger.WithError(err).WithField("message_id", refID).Warn("inbound reply did not correlate to a known send")
		return nil
	}

	if err := s.backend.emailLogs.IncrementReply(ctx, log.ID); err != nil {
		s.backend.logger.WithError(err).WithField("email_log_id", log.ID).Error("failed to record inbound reply")
	}
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error { return nil }
