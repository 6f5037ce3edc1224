package mail

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/pkg/config"
)

const (
	defaultHost = "https://api.sendgrid.com"
	endpoint    = "/v3/mail/send"
)

// Message is a single plain/HTML notification.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	Text      string
	HTML      string
}

// Sender delivers notifications.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New returns a SendGrid sender when an API key is configured and a console
// sender otherwise.
func New(cfg config.MailConfig, logger *zap.Logger) Sender {
	if cfg.SendGridKey == "" {
		return NewConsoleSender(cfg, logger)
	}
	return NewSendGridSender(cfg, logger)
}

// SendGridSender posts messages to the SendGrid v3 API.
type SendGridSender struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
	logger     *zap.Logger
}

// NewSendGridSender builds a SendGrid sender.
func NewSendGridSender(cfg config.MailConfig, logger *zap.Logger) *SendGridSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendGridSender{
		key:        cfg.SendGridKey,
		host:       defaultHost,
		from:       sgmail.NewEmail(cfg.AppName, cfg.FromAddress),
		subjPrefix: subjectPrefix(cfg.AppName),
		logger:     logger,
	}
}

// WithHost overrides the API host.
func (s *SendGridSender) WithHost(host string) *SendGridSender {
	s.host = strings.TrimRight(host, "/")
	return s
}

// Send delivers msg. A 4xx/5xx response is returned as an error so the
// provisioning queue retries it.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if msg.ToAddress == "" {
		return fmt.Errorf("mail: missing recipient")
	}
	req := sendgrid.GetRequest(s.key, endpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("mail: sending: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		s.logger.Error("sendgrid rejected message", zap.Int("status", res.StatusCode), zap.String("body", res.Body))
		return fmt.Errorf("mail: sendgrid status %d", res.StatusCode)
	}
	return nil
}

func (s *SendGridSender) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToAddress))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

// ConsoleSender logs messages instead of sending them.
type ConsoleSender struct {
	from       string
	subjPrefix string
	logger     *zap.Logger

	mu   sync.Mutex
	sent []Message
}

// NewConsoleSender builds a logging sender.
func NewConsoleSender(cfg config.MailConfig, logger *zap.Logger) *ConsoleSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSender{from: cfg.FromAddress, subjPrefix: subjectPrefix(cfg.AppName), logger: logger}
}

// Send logs msg and records it.
func (s *ConsoleSender) Send(_ context.Context, msg Message) error {
	if msg.ToAddress == "" {
		return fmt.Errorf("mail: missing recipient")
	}
	s.logger.Info("mail",
		zap.String("from", s.from),
		zap.String("to", msg.ToAddress),
		zap.String("subject", s.subjPrefix+msg.Subject),
		zap.String("text", msg.Text),
	)
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return nil
}

// Sent returns the messages logged so far.
func (s *ConsoleSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

func subjectPrefix(appName string) string {
	if appName == "" {
		return ""
	}
	return "[" + appName + "] "
}
