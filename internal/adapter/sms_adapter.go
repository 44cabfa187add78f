package adapter

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/cflagle/unified-events/internal/models"
)

// SNSLeg sends SMS via AWS SNS. It is the primary leg of the SMS adapter's
// failover chain.
type SNSLeg struct {
	client *sns.Client
	from   string
}

func NewSNSLeg(ctx context.Context, cfg Config) (*SNSLeg, error) {
	var opts []func(*config.LoadOptions) error
	if region := cfg.str("aws_region"); region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if ak, sk := cfg.str("aws_access_key_id"), cfg.str("aws_secret_access_key"); ak != "" && sk != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, sk, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sns: load aws config: %w", err)
	}
	return &SNSLeg{client: sns.NewFromConfig(awsCfg), from: cfg.str("sender_id")}, nil
}

func (l *SNSLeg) Name() string { return "AWS SNS" }

func (l *SNSLeg) send(ctx context.Context, phone, body string) (*Result, error) {
	input := &sns.PublishInput{
		Message:     aws.String(body),
		PhoneNumber: aws.String(phone),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	}
	if l.from != "" {
		input.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType: aws.String("String"), StringValue: aws.String(l.from),
		}
	}
	out, err := l.client.Publish(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("sns publish: %w", err)
	}
	return &Result{
		Success:      true,
		ResponseCode: 200,
		ResponseBody: aws.ToString(out.MessageId),
		ProviderData: map[string]interface{}{"provider": "sns", "message_id": aws.ToString(out.MessageId)},
	}, nil
}

// SMSAdapter delivers a purchase/lead notification by SMS, falling back from
// SNS to a plain Twilio REST call on the primary leg's failure.
type SMSAdapter struct {
	chain *FailoverChain
}

func NewSMSAdapter(ctx context.Context, cfg Config) (*SMSAdapter, error) {
	var legs []SMSLeg

	sns, err := NewSNSLeg(ctx, cfg)
	if err != nil {
		return nil, err
	}
	legs = append(legs, sns)

	if sid, token, from := cfg.str("twilio_account_sid"), cfg.str("twilio_auth_token"), cfg.str("twilio_from"); sid != "" && token != "" {
		legs = append(legs, NewTwilioLeg(sid, token, from))
	}

	return &SMSAdapter{chain: NewFailoverChain(legs)}, nil
}

func (a *SMSAdapter) Name() string { return "sms" }

func (a *SMSAdapter) Send(ctx context.Context, event *models.Event) (*Result, error) {
	digits := digitsOnly(event.Phone)
	if len(digits) < 11 {
		return &Result{
			Success:      false,
			ResponseCode: 0,
			ResponseBody: "Invalid or missing phone number",
		}, nil
	}

	body := fmt.Sprintf("Thanks for your submission, %s!", event.FirstName)
	return a.chain.Send(ctx, event.Phone, body)
}

func digitsOnly(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b = append(b, s[i])
		}
	}
	return string(b)
}
