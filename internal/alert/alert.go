// Package alert sends best-effort operator notifications when the worker's
// reaper pass recovers an unusual number of stuck jobs, or a validation
// platform's daily quota crosses its warning threshold. This is narrow and
// fire-and-forget, not an operator dashboard: no UI, no per-event detail,
// and every send failure is logged and swallowed rather than propagated.
package alert

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// Config configures the SES email leg and the optional FCM push leg.
type Config struct {
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	SESFrom     string
	SESFromName string
	AdminEmail  string

	FCMProjectID   string
	FCMCredentials string
	FCMOpsTopic    string
}

// Notifier is the operational alert sink; construct once at startup and
// pass into the worker pool, which calls it from the reaper loop and, via
// the Processor's validation-quota check, on quota warnings.
type Notifier struct {
	ses        *ses.Client
	sesFrom    string
	sesFromTo  string
	fcm        *messaging.Client
	fcmTopic   string
	logger     *logrus.Entry
}

// New constructs a Notifier. SES is mandatory (there is always an operator
// to email); FCM is optional and silently skipped if no credentials are
// configured.
func New(ctx context.Context, cfg Config, logger *logrus.Logger) (*Notifier, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithField("component", "alert")

	var awsOpts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		awsOpts = append(awsOpts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, fmt.Errorf("alert: load AWS config: %w", err)
	}

	n := &Notifier{
		ses:       ses.NewFromConfig(awsCfg),
		sesFrom:   cfg.SESFrom,
		sesFromTo: cfg.AdminEmail,
		fcmTopic:  cfg.FCMOpsTopic,
		logger:    entry,
	}

	if cfg.FCMCredentials != "" {
		var opts []option.ClientOption
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.FCMCredentials)))
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FCMProjectID}, opts...)
		if err != nil {
			entry.WithError(err).Warn("firebase app init failed, push alerts disabled")
		} else if client, err := app.Messaging(ctx); err != nil {
			entry.WithError(err).Warn("FCM messaging client init failed, push alerts disabled")
		} else {
			n.fcm = client
		}
	}

	return n, nil
}

// AlertQuotaThreshold fires when a validation platform crosses 90% of its
// configured daily limit.
func (n *Notifier) AlertQuotaThreshold(ctx context.Context, platformCode string, count, limit int) {
	n.send(ctx, "Validation quota nearing limit",
		fmt.Sprintf("Platform %s has used %d/%d validation calls today.", platformCode, count, limit))
}

// AlertStuckLeaseRecovery fires when the reaper recovers at least the
// configured threshold of stuck jobs in one pass.
func (n *Notifier) AlertStuckLeaseRecovery(ctx context.Context, recovered int64, threshold int) {
	n.send(ctx, "Stuck lease recovery threshold exceeded",
		fmt.Sprintf("Reaper recovered %d jobs in one pass (threshold %d).", recovered, threshold))
}

func (n *Notifier) send(ctx context.Context, subject, body string) {
	if n == nil {
		return
	}
	if err := n.sendEmail(ctx, subject, body); err != nil {
		n.logger.WithError(err).Warn("alert email send failed")
	}
	if n.fcm != nil {
		if err := n.sendPush(ctx, subject, body); err != nil {
			n.logger.WithError(err).Warn("alert push send failed")
		}
	}
}

func (n *Notifier) sendEmail(ctx context.Context, subject, body string) error {
	if n.sesFrom == "" || n.sesFromTo == "" {
		return nil
	}
	input := &ses.SendEmailInput{
		Source:      aws.String(n.sesFrom),
		Destination: &types.Destination{ToAddresses: []string{n.sesFromTo}},
		Message: &types.Message{
			Subject: &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(body)},
			},
		},
	}
	_, err := n.ses.SendEmail(ctx, input)
	return err
}

func (n *Notifier) sendPush(ctx context.Context, title, body string) error {
	if n.fcmTopic == "" {
		return nil
	}
	_, err := n.fcm.Send(ctx, &messaging.Message{
		Topic: n.fcmTopic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	})
	return err
}
