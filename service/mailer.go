package service

import (
	"fmt"
	"log"
	"sync"

	mail "github.com/go-mail/mail/v2"
)

// MailConfig holds the SMTP settings for alert mail.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

func (c MailConfig) Enabled() bool {
	return c.Host != "" && c.From != "" && c.To != ""
}

// sender abstracts the SMTP dialer so tests can capture messages.
type sender interface {
	DialAndSend(m ...*mail.Message) error
}

// Mailer emails error notifications to an operator address. Messages are
// queued and sent by a single worker so Deliver never waits on SMTP.
type Mailer struct {
	cfg    MailConfig
	dialer sender
	queue  chan Notification
	wg     sync.WaitGroup
	once   sync.Once
}

func NewMailer(cfg MailConfig) *Mailer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.StartTLSPolicy = mail.OpportunisticStartTLS
	return newMailer(cfg, d)
}

func newMailer(cfg MailConfig, d sender) *Mailer {
	m := &Mailer{
		cfg:    cfg,
		dialer: d,
		queue:  make(chan Notification, 32),
	}
	m.wg.Add(1)
	go m.worker()
	return m
}

// Deliver implements Sink. Only error notifications are mailed.
func (m *Mailer) Deliver(n Notification) {
	if n.Variant != VariantError {
		return
	}
	select {
	case m.queue <- n:
	default:
		log.Printf("mailer: queue full, dropping %q", n.Message)
	}
}

func (m *Mailer) worker() {
	defer m.wg.Done()
	for n := range m.queue {
		if err := m.dialer.DialAndSend(m.message(n)); err != nil {
			log.Printf("mailer: send %q: %v", n.Message, err)
		}
	}
}

func (m *Mailer) message(n Notification) *mail.Message {
	msg := mail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", m.cfg.To)
	msg.SetHeader("Subject", "bookdash: "+n.Message)
	msg.SetBody("text/plain", fmt.Sprintf("%s\n\nat %s\n", n.Message, n.CreatedAt.Format("2006-01-02 15:04:05 MST")))
	return msg
}

// Close stops accepting mail and waits for the queue to drain.
func (m *Mailer) Close() {
	m.once.Do(func() {
		close(m.queue)
		m.wg.Wait()
	})
}
