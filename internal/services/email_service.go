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

// MagicLinkData is the data bag rendered into transactional email templates
type MagicLinkData struct {
	Name            string
	ActionURL       string
	OperatingSystem string
	DeviceName      string
	Origin          string
}

// EmailService defines the interface for sending transactional email.
// Send failures are logged by callers and never propagated as fatal.
type EmailService interface {
	SendTwoFactorEmail(ctx context.Context, email string, data MagicLinkData) error
	SendVerificationEmail(ctx context.Context, email string, data MagicLinkData) error
	SendPasswordResetEmail(ctx context.Context, email string, data MagicLinkData) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendTwoFactorEmail delivers the two-factor login link
func (s *AWSSESEmailService) SendTwoFactorEmail(ctx context.Context, email string, data MagicLinkData) error {
	subject := "Confirm your login"
	intro := fmt.Sprintf(
		"A login to your account was attempted from an unrecognized device (%s, %s, origin %s). "+
			"If this was you, use the link below to finish signing in.",
		data.OperatingSystem, data.DeviceName, data.Origin)

	return s.send(ctx, email, subject, intro, data, "Confirm Login")
}

// SendVerificationEmail delivers the email verification link
func (s *AWSSESEmailService) SendVerificationEmail(ctx context.Context, email string, data MagicLinkData) error {
	subject := "Verify your email address"
	intro := "Thanks for creating an account. Please verify your email address by clicking the link below."

	return s.send(ctx, email, subject, intro, data, "Verify Email")
}

// SendPasswordResetEmail delivers the password reset link
func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email string, data MagicLinkData) error {
	subject := "Reset your password"
	intro := fmt.Sprintf(
		"A password reset was requested from %s (%s, origin %s). "+
			"Use the link below to choose a new password. If you did not request this, you can ignore this email.",
		data.DeviceName, data.OperatingSystem, data.Origin)

	return s.send(ctx, email, subject, intro, data, "Reset Password")
}

func (s *AWSSESEmailService) send(ctx context.Context, email, subject, intro string, data MagicLinkData, action string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<p>Hi %s,</p>
		<p>%s</p>
		<p><a href="%s" style="display: inline-block; background-color: #3d7a4a; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">%s</a></p>
		<p>Or copy and paste this link in your browser:<br><code>%s</code></p>
		<p>This link can be used once and expires in 24 hours.</p>
	</div>
</body>
</html>
`, data.Name, intro, data.ActionURL, action, data.ActionURL)

	textBody := fmt.Sprintf(`Hi %s,

%s

%s

This link can be used once and expires in 24 hours.
`, data.Name, intro, data.ActionURL)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}

	s.logger.Info("transactional email sent", slog.String("subject", subject))
	return nil
}
