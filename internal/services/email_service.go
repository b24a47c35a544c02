package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/BradenHooton/jardim/pkg/logger"
)

// EmailService defines the interface for sending security e-mails
type EmailService interface {
	SendPasswordChangedEmail(ctx context.Context, to, name string, changedAt time.Time) error
}

// SESSender is the subset of the SES client used here
type SESSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   SESSender
	fromAddress string
	appName     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(ctx context.Context, region, fromAddress, appName string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESEmailServiceWithClient(ses.NewFromConfig(cfg), fromAddress, appName, logger), nil
}

// NewSESEmailServiceWithClient creates the service around an existing client
func NewSESEmailServiceWithClient(client SESSender, fromAddress, appName string, logger *slog.Logger) *AWSSESEmailService {
	return &AWSSESEmailService{
		sesClient:   client,
		fromAddress: fromAddress,
		appName:     appName,
		logger:      logger,
	}
}

// SendPasswordChangedEmail tells an account holder their password changed
func (s *AWSSESEmailService) SendPasswordChangedEmail(ctx context.Context, to, name string, changedAt time.Time) error {
	when := changedAt.UTC().Format("2006-01-02 15:04 MST")

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <p>Hello %s,</p>
    <p>The password of your %s account was changed on <strong>%s</strong>.</p>
    <p>If you made this change, no action is needed. If you did not, contact an administrator right away.</p>
    <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
</body>
</html>
`, name, s.appName, when)

	textBody := fmt.Sprintf(`Hello %s,

The password of your %s account was changed on %s.

If you made this change, no action is needed. If you did not, contact an administrator right away.

This is an automated message. Please do not reply to this email.
`, name, s.appName, when)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(fmt.Sprintf("Your %s password was changed", s.appName)),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send password-changed email via SES",
			slog.String("email", pkglogger.SanitizedEmail(to)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("password-changed email sent",
		slog.String("email", pkglogger.SanitizedEmail(to)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
