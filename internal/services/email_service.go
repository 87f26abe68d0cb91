package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Mailer defines the interface for sending account emails. Delivery is
// fire-and-forget: callers observe no delivery confirmation and do not
// retry failures.
type Mailer interface {
	SendVerification(ctx context.Context, email, username, nonce, link string) error
}

// AWSSESMailer sends emails using AWS SES
type AWSSESMailer struct {
	sesClient   *ses.Client
	fromAddress string
	brandname   string
	logger      *slog.Logger
}

// NewAWSSESMailer creates a new AWS SES mailer
func NewAWSSESMailer(region, fromAddress, brandname string, logger *slog.Logger) (*AWSSESMailer, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESMailer{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		brandname:   brandname,
		logger:      logger,
	}, nil
}

// SendVerification sends the email verification message for a newly
// registered account.
func (m *AWSSESMailer) SendVerification(ctx context.Context, email, username, nonce, link string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h1>Welcome to %s, %s!</h1>
    <p>To activate your account, please verify your email address:</p>
    <p><a href="%s">Verify Email Address</a></p>
    <p>Or copy and paste this link in your browser:<br>
    <code>%s</code></p>
    <p>If you didn't create this account, you can ignore this email.</p>
</body>
</html>
`, m.brandname, username, link, link)

	textBody := fmt.Sprintf(`Welcome to %s, %s!

To activate your account, open the link below to verify your email address:

%s

Your verification code: %s

If you didn't create this account, you can ignore this email.
`, m.brandname, username, link, nonce)

	input := &ses.SendEmailInput{
		Source: aws.String(m.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(fmt.Sprintf("Verify your %s email address", m.brandname)),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := m.sesClient.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("verification email sent",
		slog.String("username", username),
		slog.String("message_id", *result.MessageId))

	return nil
}

// LogMailer writes emails to the log instead of delivering them. Used
// in development where no SES credentials exist.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerification(ctx context.Context, email, username, nonce, link string) error {
	m.logger.Info("verification email (not delivered)",
		slog.String("email", email),
		slog.String("username", username),
		slog.String("link", link))
	return nil
}
