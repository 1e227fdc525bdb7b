package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrExpired is returned when the push service reports the subscription gone (404/410).
var ErrExpired = errors.New("push subscription expired")

// Target identifies one browser push channel and the keys to encrypt for it.
type Target struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Payload is the JSON consumed by the service worker.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Config holds VAPID credentials and HTTP tuning.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
	RequestTimeout  time.Duration
}

// StatusError reports a non-success response from the push service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("push service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("push service returned %d: %s", e.StatusCode, e.Body)
}

// Sender delivers encrypted web push messages.
type Sender struct {
	cfg    Config
	client *http.Client
}

// NewSender builds a Sender. A zero RequestTimeout defaults to ten seconds.
func NewSender(cfg Config) *Sender {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.Subject == "" {
		cfg.Subject = "mailto:noreply@noticeboard.local"
	}
	return &Sender{cfg: cfg, client: &http.Client{Timeout: cfg.RequestTimeout}}
}

// VAPIDPublicKey returns the application server key browsers subscribe with.
func (s *Sender) VAPIDPublicKey() string {
	return s.cfg.VAPIDPublicKey
}

// Send encrypts payload for target and posts it with the given TTL.
func (s *Sender) Send(ctx context.Context, target Target, payload Payload, ttl time.Duration) error {
	if s.cfg.VAPIDPrivateKey == "" || s.cfg.VAPIDPublicKey == "" {
		return errors.New("vapid keys not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: target.Endpoint,
		Keys: webpush.Keys{
			P256dh: target.P256dh,
			Auth:   target.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.cfg.Subject,
		TTL:             int(ttl / time.Second),
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return ErrExpired
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// GenerateVAPIDKeys returns a fresh base64url-encoded P-256 key pair.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate vapid keys: %w", err)
	}
	return publicKey, privateKey, nil
}
