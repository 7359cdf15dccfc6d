package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pinceletas/user-auth-service/config"
)

const resendEndpoint = "https://api.resend.com/emails"

type sendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// ResendMailer delivers recovery codes through the Resend HTTP API. The
// client timeout bounds how long a broken provider can hold a recovery
// request.
type ResendMailer struct {
	apiKey   string
	from     string
	endpoint string
	client   *http.Client
}

type ResendMailerOption func(*ResendMailer)

// WithMailEndpoint overrides the Resend API endpoint. Used by tests.
func WithMailEndpoint(endpoint string) ResendMailerOption {
	return func(m *ResendMailer) {
		if endpoint != "" {
			m.endpoint = endpoint
		}
	}
}

func NewResendMailer(cfg *config.Config, opts ...ResendMailerOption) *ResendMailer {
	m := &ResendMailer{
		apiKey:   cfg.Mail.APIKey,
		from:     fmt.Sprintf("%s <%s>", cfg.Mail.FromName, cfg.Mail.From),
		endpoint: resendEndpoint,
		client: &http.Client{
			Timeout: cfg.Mail.Timeout,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *ResendMailer) SendRecoveryCode(ctx context.Context, email, code string) error {
	payload, err := json.Marshal(sendEmailRequest{
		From:    m.from,
		To:      []string{email},
		Subject: "Password recovery code",
		HTML:    buildRecoveryEmail(code),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	// Resend deduplicates retried sends on this key.
	req.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("resend returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.ID != "" {
		logrus.WithFields(logrus.Fields{
			"email":   email,
			"mail_id": result.ID,
		}).Info("Recovery email sent")
	}

	return nil
}

func buildRecoveryEmail(code string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="margin: 0; padding: 0; font-family: 'Segoe UI', Tahoma, sans-serif;">
  <div style="max-width: 600px; margin: auto; padding: 30px;">
    <h1 style="font-size: 24px;">Password recovery</h1>
    <p>We received a request to reset your password.</p>
    <div style="background-color: #f4f4f4; padding: 15px; text-align: center; border-radius: 8px;">
      <p style="margin: 0; font-size: 14px; color: #666;">Your verification code is:</p>
      <p style="margin: 0; font-size: 32px; font-weight: bold; letter-spacing: 8px; font-family: 'Courier New', monospace;">%s</p>
    </div>
    <p style="font-size: 14px; color: #555;">This code expires in <strong>15 minutes</strong>. Do not share it with anyone.</p>
    <p style="font-size: 14px; color: #555;">If you did not request this change, you can ignore this email.</p>
  </div>
</body>
</html>`, code)
}
