package notifications

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	inputs []*ses.SendEmailInput
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, params)
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSinkSendsToOwner(t *testing.T) {
	fake := &fakeSES{}
	sink := newSESSink(fake, "alerts@spendwatch.dev", nil)

	err := sink.Notify(context.Background(), Event{
		Email:        "owner@example.com",
		EmailAllowed: true,
		AlertName:    "OpenAI budget",
		AlertType:    "budget_limit",
		ProviderName: "openai",
		Severity:     SeverityCritical,
		Value:        decimal.RequireFromString("120.5"),
		Threshold:    decimal.RequireFromString("100"),
		Percent:      decimal.RequireFromString("120.5"),
		Timestamp:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, fake.inputs, 1)

	input := fake.inputs[0]
	require.Equal(t, "alerts@spendwatch.dev", aws.ToString(input.Source))
	require.Equal(t, []string{"owner@example.com"}, input.Destination.ToAddresses)
	require.Equal(t, "[Spend alert Triggered] OpenAI budget", aws.ToString(input.Message.Subject.Data))
	body := aws.ToString(input.Message.Body.Text.Data)
	require.True(t, strings.Contains(body, "Spend: $120.50 / $100.00"), body)
	require.True(t, strings.Contains(body, "Provider: openai"), body)
}

func TestSESSinkSkipsWhenEmailNotAllowed(t *testing.T) {
	fake := &fakeSES{}
	sink := newSESSink(fake, "alerts@spendwatch.dev", nil)

	require.NoError(t, sink.Notify(context.Background(), Event{Email: "owner@example.com"}))
	require.Empty(t, fake.inputs)
}
