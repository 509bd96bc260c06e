// Package notify delivers e-mail notifications about matrix and application events.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

const (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"

	// SendTimeout bounds a single outbound delivery.
	SendTimeout = 30 * time.Second
)

// Message is a plain text e-mail
type Message struct {
	To      []string
	Subject string
	Text    string
}

// Notifier sends messages to recipients.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// New returns a SendGrid notifier when an API key is configured, a logging one otherwise.
func New(apiKey, appName, from string, log logrus.FieldLogger) Notifier {
	if apiKey == "" || from == "" {
		return &LogNotifier{log: log}
	}
	return &SendGrid{
		key:        apiKey,
		from:       sgmail.NewEmail(appName, from),
		subjPrefix: "[" + appName + "] ",
		client:     &rest.Client{HTTPClient: &http.Client{Timeout: SendTimeout}},
		log:        log,
	}
}

type SendGrid struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	client     *rest.Client
	log        logrus.FieldLogger
}

func (s *SendGrid) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	return m
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(s.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := s.client.Send(req)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected message: status %d: %s", res.StatusCode, strings.TrimSpace(res.Body))
	}
	s.log.WithFields(logrus.Fields{"subject": msg.Subject, "recipients": len(msg.To)}).Debug("mail sent")
	return nil
}

// LogNotifier writes messages to the log instead of sending them.
type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	if n.log == nil {
		return errors.New("notify: no logger configured")
	}
	n.log.WithFields(logrus.Fields{
		"to":      strings.Join(msg.To, ","),
		"subject": msg.Subject,
	}).Info(msg.Text)
	return nil
}

// Dispatch sends msg in the background with SendTimeout, logging failures.
func Dispatch(n Notifier, log logrus.FieldLogger, msg Message) {
	if n == nil || len(msg.To) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), SendTimeout)
		defer cancel()
		if err := n.Send(ctx, msg); err != nil && log != nil {
			log.WithError(err).WithField("subject", msg.Subject).Warn("notification failed")
		}
	}()
}
