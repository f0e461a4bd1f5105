package email

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/telemetry"
	"go.uber.org/zap"
)

// SESMailer sends emails via AWS SES
type SESMailer struct {
	client    *ses.Client
	fromEmail string
	fromName  string
	baseURL   string
}

// NewSESMailer loads the default AWS credential chain for region. Requests
// go through the traced HTTP client.
func NewSESMailer(region, fromEmail, fromName, baseURL string) (*SESMailer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithHTTPClient(telemetry.NewInstrumentedHTTPClient(15*time.Second)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESMailer{
		client:    ses.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
		baseURL:   baseURL,
	}, nil
}

// SendOTP sends the verification or reset code.
func (m *SESMailer) SendOTP(ctx context.Context, to, code, purpose string) error {
	msg := otpMessage(code, purpose)
	if err := m.send(ctx, to, msg); err != nil {
		return fmt.Errorf("failed to send %s code: %w", purpose, err)
	}
	logger.Log.Info("OTP email sent", zap.String("purpose", purpose))
	return nil
}

// SendWelcome greets a newly verified user.
func (m *SESMailer) SendWelcome(ctx context.Context, to, username string) error {
	if err := m.send(ctx, to, welcomeMessage(username, m.baseURL)); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}
	return nil
}

func (m *SESMailer) send(ctx context.Context, to string, msg message) error {
	from := m.fromEmail
	if m.fromName != "" {
		from = fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(msg.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(msg.HTML),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(msg.Text),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	_, err := m.client.SendEmail(ctx, input)
	return err
}
