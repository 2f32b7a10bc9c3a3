// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package notification delivers mitigation reports to operator channels.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"grimm.is/wlanguard/internal/config"
	"grimm.is/wlanguard/internal/errors"
	"grimm.is/wlanguard/internal/logging"
)

// Level constants
const (
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// Notification represents a notification event
type Notification struct {
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Level     string         `json:"level"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Dispatcher fans notifications out to the configured channels.
type Dispatcher struct {
	config *config.NotificationsConfig
	logger *logging.Logger
	window time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time

	// background deliveries started by NotifyReport
	pending sync.WaitGroup

	httpClient *http.Client

	// injectable for tests
	emailSender func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now         func() time.Time
}

// NewDispatcher creates a dispatcher. A nil or disabled config makes Send a no-op.
func NewDispatcher(cfg *config.NotificationsConfig, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.WithComponent("notification")
	}
	return &Dispatcher{
		config:      cfg,
		logger:      logger,
		window:      cfg.Window(),
		lastSent:    make(map[string]time.Time),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		emailSender: smtp.SendMail,
		now:         time.Now,
	}
}

// Send delivers n to every enabled channel whose level it meets, and waits
// for all deliveries. Failures are logged, never returned.
func (d *Dispatcher) Send(ctx context.Context, n Notification) {
	cfg := d.config
	if cfg == nil || !cfg.Enabled {
		return
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = d.now()
	}

	var wg sync.WaitGroup
	for _, ch := range cfg.Channels {
		if !ch.Enabled || !shouldSend(n.Level, ch.Level) {
			continue
		}
		if d.isRateLimited(ch.Name, n.Title) {
			d.logger.Debug("notification rate limited", "channel", ch.Name, "title", n.Title)
			continue
		}

		wg.Add(1)
		go func(channel config.NotificationChannel) {
			defer wg.Done()
			if err := d.sendToChannel(ctx, channel, n); err != nil {
				d.logger.Error("failed to send notification",
					"channel", channel.Name,
					"type", channel.Type,
					"error", err)
			}
		}(ch)
	}
	wg.Wait()
}

// isRateLimited reports whether title went to channel within the window,
// and records the send otherwise.
func (d *Dispatcher) isRateLimited(channel, title string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := channel + ":" + title
	now := d.now()
	if last, ok := d.lastSent[key]; ok && now.Sub(last) < d.window {
		return true
	}

	if len(d.lastSent) > 1000 {
		for k, t := range d.lastSent {
			if now.Sub(t) >= d.window {
				delete(d.lastSent, k)
			}
		}
	}
	d.lastSent[key] = now
	return false
}

// shouldSend checks if a message level meets the channel's minimum level
func shouldSend(msgLevel, chanLevel string) bool {
	if chanLevel == "" {
		return true
	}
	levels := map[string]int{
		LevelInfo:     1,
		LevelWarning:  2,
		LevelCritical: 3,
	}
	return levels[strings.ToLower(msgLevel)] >= levels[strings.ToLower(chanLevel)]
}

func (d *Dispatcher) sendToChannel(ctx context.Context, ch config.NotificationChannel, n Notification) error {
	switch strings.ToLower(ch.Type) {
	case "webhook":
		return d.postJSON(ctx, ch, n)
	case "slack":
		return d.postJSON(ctx, ch, map[string]any{
			"text": fmt.Sprintf("*%s*\n%s\n_Level: %s_", n.Title, n.Message, n.Level),
		})
	case "discord":
		return d.postJSON(ctx, ch, map[string]any{
			"content": fmt.Sprintf("**%s**\n%s", n.Title, n.Message),
		})
	case "ntfy":
		return d.sendNtfy(ctx, ch, n)
	case "email":
		return d.sendEmail(ch, n)
	default:
		return errors.Errorf(errors.KindValidation, "unknown channel type: %s", ch.Type)
	}
}

// postJSON sends payload to the channel's webhook URL. Generic webhooks get
// the full Notification.
func (d *Dispatcher) postJSON(ctx context.Context, ch config.NotificationChannel, payload any) error {
	if ch.WebhookURL == "" {
		return errors.New(errors.KindValidation, "missing webhook_url")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ch.Headers {
		req.Header.Set(k, v)
	}
	return d.do(req, ch.Type)
}

func (d *Dispatcher) sendNtfy(ctx context.Context, ch config.NotificationChannel, n Notification) error {
	if ch.Topic == "" {
		return errors.New(errors.KindValidation, "missing topic for ntfy")
	}
	url := ch.Server
	if url == "" {
		url = "https://ntfy.sh"
	}
	url = strings.TrimSuffix(url, "/") + "/" + ch.Topic

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(n.Message))
	if err != nil {
		return err
	}
	req.Header.Set("Title", n.Title)
	switch n.Level {
	case LevelCritical:
		req.Header.Set("Priority", "high")
		req.Header.Set("Tags", "rotating_light")
	case LevelWarning:
		req.Header.Set("Priority", "default")
		req.Header.Set("Tags", "warning")
	default:
		req.Header.Set("Priority", "low")
		req.Header.Set("Tags", "information_source")
	}
	for k, v := range ch.Headers {
		req.Header.Set(k, v)
	}
	return d.do(req, "ntfy")
}

func (d *Dispatcher) do(req *http.Request, kind string) error {
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, errors.KindUnavailable, "%s delivery", kind)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return errors.Attr(errors.Errorf(errors.KindExecution, "%s failed with status: %d", kind, resp.StatusCode),
			"status", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) sendEmail(ch config.NotificationChannel, n Notification) error {
	if ch.SMTPHost == "" || len(ch.To) == 0 {
		return errors.New(errors.KindValidation, "missing smtp_host or recipients")
	}
	port := ch.SMTPPort
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", ch.SMTPHost, port)

	var auth smtp.Auth
	if ch.SMTPUser != "" {
		auth = smtp.PlainAuth("", ch.SMTPUser, ch.SMTPPassword, ch.SMTPHost)
	}

	from := ch.From
	if from == "" {
		from = "wlanguard@localhost"
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(ch.To, ","))
	fmt.Fprintf(&msg, "Subject: [%s] %s\r\n", n.Level, n.Title)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(n.Message + "\r\n")

	return d.emailSender(addr, auth, from, ch.To, []byte(msg.String()))
}
