package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPasswordChangedEmail(t *testing.T) {
	var got *ses.SendEmailInput
	sender := &MockSESSender{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			got = params
			return &ses.SendEmailOutput{MessageId: aws.String("id-1")}, nil
		},
	}
	svc := NewSESEmailServiceWithClient(sender, "noreply@jardim.example", "Jardim", discardLogger())

	err := svc.SendPasswordChangedEmail(context.Background(), "ana@example.com", "Ana",
		time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, "noreply@jardim.example", aws.ToString(got.Source))
	assert.Equal(t, []string{"ana@example.com"}, got.Destination.ToAddresses)
	assert.Equal(t, "Your Jardim password was changed", aws.ToString(got.Message.Subject.Data))
	assert.Contains(t, aws.ToString(got.Message.Body.Text.Data), "2026-03-01 12:30 UTC")
	assert.Contains(t, aws.ToString(got.Message.Body.Html.Data), "Hello Ana")
}

func TestSendPasswordChangedEmail_Error(t *testing.T) {
	sender := &MockSESSender{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	svc := NewSESEmailServiceWithClient(sender, "noreply@jardim.example", "Jardim", discardLogger())

	err := svc.SendPasswordChangedEmail(context.Background(), "ana@example.com", "Ana", time.Now())

	assert.Error(t, err)
}
