// internal/common/notify/receipts.go
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"masqanicore/internal/common/config"
	"masqanicore/internal/common/logger"
	"masqanicore/internal/models"
)

// Notifier delivers payment receipts after a confirmed transaction. Receipts
// are best effort: a delivery failure never fails the transaction.
type Notifier interface {
	UnlockReceipt(ctx context.Context, payer *models.Account, listing *models.Listing, fee int64, receiptID string)
	ActivationReceipt(ctx context.Context, landlord *models.Account, listingID string, fee int64, receiptID string)
}

// Receipts sends receipts over SES email and SNS SMS, whichever channels are
// enabled in config.
type Receipts struct {
	ses    *SESClient
	sns    *SNSClient
	cfg    config.NotificationConfig
	logger logger.Logger
}

func NewReceipts(ses *SESClient, sns *SNSClient, cfg config.NotificationConfig, log logger.Logger) *Receipts {
	return &Receipts{
		ses:    ses,
		sns:    sns,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "receipts"}),
	}
}

func (r *Receipts) UnlockReceipt(ctx context.Context, payer *models.Account, listing *models.Listing, fee int64, receiptID string) {
	msg := fmt.Sprintf(
		"Masqani Poa: contact unlock confirmed for %s. Ksh %d paid. Receipt %s.",
		listing.PublicTitle(), fee, receiptID,
	)
	r.deliver(ctx, payer, "Contact Unlock Receipt", msg)
}

func (r *Receipts) ActivationReceipt(ctx context.Context, landlord *models.Account, listingID string, fee int64, receiptID string) {
	msg := fmt.Sprintf(
		"Masqani Poa: listing %s is now live. Ksh %d listing fee paid. Receipt %s.",
		listingID, fee, receiptID,
	)
	r.deliver(ctx, landlord, "Listing Activation Receipt", msg)
}

func (r *Receipts) deliver(ctx context.Context, account *models.Account, subject, body string) {
	if r.cfg.SMS.Enabled && r.sns != nil && account.Phone != "" {
		input := &sns.PublishInput{
			Message:     aws.String(body),
			PhoneNumber: aws.String(account.Phone),
		}
		if r.cfg.SMS.SenderID != "" {
			input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
				"AWS.SNS.SMS.SenderID": {
					DataType:    aws.String("String"),
					StringValue: aws.String(r.cfg.SMS.SenderID),
				},
			}
		}
		if _, err := r.sns.Publish(ctx, input); err != nil {
			r.logger.Warn("sms receipt delivery failed", map[string]interface{}{
				"accountId": account.ID,
				"error":     err.Error(),
			})
		}
	}

	if r.cfg.Email.Enabled && r.ses != nil && account.Email != "" {
		input := &ses.SendEmailInput{
			Source: aws.String(r.cfg.Email.FromEmail),
			Destination: &sestypes.Destination{
				ToAddresses: []string{account.Email},
			},
			Message: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(body)},
				},
			},
		}
		if _, err := r.ses.SendEmail(ctx, input); err != nil {
			r.logger.Warn("email receipt delivery failed", map[string]interface{}{
				"accountId": account.ID,
				"error":     err.Error(),
			})
		}
	}
}

// NoopNotifier drops all receipts; used in tests and when notifications are
// disabled.
type NoopNotifier struct{}

func (NoopNotifier) UnlockReceipt(context.Context, *models.Account, *models.Listing, int64, string) {
}

func (NoopNotifier) ActivationReceipt(context.Context, *models.Account, string, int64, string) {}
