// Package email delivers one-time codes and welcome messages.
package email

import (
	"context"
	"fmt"
	"sync"

	"github.com/sportsocial/backend/internal/logger"
	"go.uber.org/zap"
)

// Mailer sends transactional email.
type Mailer interface {
	SendOTP(ctx context.Context, to, code, purpose string) error
	SendWelcome(ctx context.Context, to, username string) error
}

var (
	_ Mailer = (*SESMailer)(nil)
	_ Mailer = (*LogMailer)(nil)
)

type message struct {
	Subject string
	HTML    string
	Text    string
}

func otpMessage(code, purpose string) message {
	subject := "Your Sports Social verification code"
	intro := "Use this code to finish creating your Sports Social account."
	if purpose == "password_reset" {
		subject = "Your Sports Social password reset code"
		intro = "Use this code to reset your Sports Social password."
	}

	html := fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<head><meta charset="UTF-8"></head>
		<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: #333;">
			<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
				<h1>%s</h1>
				<p>%s</p>
				<p style="font-size: 32px; letter-spacing: 8px; font-weight: bold;">%s</p>
				<p>The code expires in 10 minutes. If you didn't ask for it, you can ignore this email.</p>
			</div>
		</body>
		</html>
	`, subject, intro, code)

	text := fmt.Sprintf(`
%s

%s

%s

The code expires in 10 minutes. If you didn't ask for it, you can ignore this email.
	`, subject, intro, code)

	return message{Subject: subject, HTML: html, Text: text}
}

func welcomeMessage(username, baseURL string) message {
	subject := "Welcome to Sports Social"
	html := fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<head><meta charset="UTF-8"></head>
		<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: #333;">
			<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
				<h1>Welcome, %s!</h1>
				<p>Your account is ready. Find a game near you at <a href="%s">%s</a>.</p>
			</div>
		</body>
		</html>
	`, username, baseURL, baseURL)
	text := fmt.Sprintf("Welcome, %s!\n\nYour account is ready. Find a game near you at %s.\n", username, baseURL)
	return message{Subject: subject, HTML: html, Text: text}
}

// SentOTP is one code captured by LogMailer.
type SentOTP struct {
	To      string
	Code    string
	Purpose string
}

// LogMailer writes codes to the log instead of sending them. It is used
// when SES is not configured, and tests read codes back with LastOTP.
type LogMailer struct {
	mu   sync.Mutex
	sent []SentOTP
}

func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (m *LogMailer) SendOTP(_ context.Context, to, code, purpose string) error {
	m.mu.Lock()
	m.sent = append(m.sent, SentOTP{To: to, Code: code, Purpose: purpose})
	m.mu.Unlock()

	logger.Log.Info("OTP issued (email delivery disabled)",
		zap.String("to", to),
		zap.String("purpose", purpose),
		zap.String("code", code),
	)
	return nil
}

func (m *LogMailer) SendWelcome(_ context.Context, to, username string) error {
	logger.Log.Info("Welcome email skipped (email delivery disabled)",
		zap.String("to", to),
		zap.String("username", username),
	)
	return nil
}

// LastOTP returns the most recent code sent to addr.
func (m *LogMailer) LastOTP(addr string) (SentOTP, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To == addr {
			return m.sent[i], true
		}
	}
	return SentOTP{}, false
}
