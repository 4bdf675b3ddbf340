package delivery

import (
	"context"
	"errors"
	"fmt"

	awsclient "courier-notifier/internal/common/aws"
	"courier-notifier/internal/common/rabbitmq"
	"courier-notifier/internal/common/validation"
	"courier-notifier/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// ErrRecipientUnreachable means the recipient has no address on a channel.
var ErrRecipientUnreachable = errors.New("recipient unreachable on channel")

// Message is one rendered notification addressed to one user.
type Message struct {
	NotificationID int64
	Type           models.NotificationType
	Recipient      models.User
	Title          string
	Body           string
}

// Channel is an outbound delivery surface besides the site inbox.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// BotMessage is the payload bot consumers read from the exchange.
type BotMessage struct {
	ChatID           string `json:"chatId"`
	NotificationID   int64  `json:"notificationId"`
	NotificationType string `json:"notificationType"`
	UserUUID         string `json:"userUuid,omitempty"`
	Title            string `json:"title,omitempty"`
	Body             string `json:"body"`
}

// BotChannel publishes to a messaging bot through the notification exchange.
type BotChannel struct {
	name       string
	routingKey string
	producer   string
	publisher  rabbitmq.Publisher
	chatID     func(models.User) string
}

func NewTelegramChannel(publisher rabbitmq.Publisher, routingKey, producer string) *BotChannel {
	return &BotChannel{
		name:       "telegram",
		routingKey: routingKey,
		producer:   producer,
		publisher:  publisher,
		chatID:     func(u models.User) string { return u.TelegramChatID },
	}
}

func NewViberChannel(publisher rabbitmq.Publisher, routingKey, producer string) *BotChannel {
	return &BotChannel{
		name:       "viber",
		routingKey: routingKey,
		producer:   producer,
		publisher:  publisher,
		chatID:     func(u models.User) string { return u.ViberChatID },
	}
}

func (b *BotChannel) Name() string { return b.name }

func (b *BotChannel) Send(ctx context.Context, msg Message) error {
	chatID := b.chatID(msg.Recipient)
	if chatID == "" {
		return ErrRecipientUnreachable
	}

	var producer *string
	if b.producer != "" {
		producer = &b.producer
	}
	return b.publisher.Publish(ctx, b.routingKey, rabbitmq.Envelope{
		Meta: rabbitmq.Meta{
			Producer: producer,
			Type:     fmt.Sprintf("notification.%s.v1", b.name),
		},
		Data: BotMessage{
			ChatID:           chatID,
			NotificationID:   msg.NotificationID,
			NotificationType: string(msg.Type),
			UserUUID:         msg.Recipient.UUID,
			Title:            msg.Title,
			Body:             msg.Body,
		},
	})
}

// EmailChannel sends plain-text email through SES.
type EmailChannel struct {
	client         awsclient.SESService
	from           string
	defaultSubject string
}

func NewEmailChannel(client awsclient.SESService, from, defaultSubject string) *EmailChannel {
	return &EmailChannel{client: client, from: from, defaultSubject: defaultSubject}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) Send(ctx context.Context, msg Message) error {
	if !validation.ValidateEmail(msg.Recipient.Email) {
		return ErrRecipientUnreachable
	}
	subject := msg.Title
	if subject == "" {
		subject = e.defaultSubject
	}

	_, err := e.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(e.from),
		Destination: &sestypes.Destination{ToAddresses: []string{msg.Recipient.Email}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	return nil
}

// SMSChannel sends transactional SMS through SNS.
type SMSChannel struct {
	client   awsclient.SNSService
	senderID string
}

func NewSMSChannel(client awsclient.SNSService, senderID string) *SMSChannel {
	return &SMSChannel{client: client, senderID: senderID}
}

func (s *SMSChannel) Name() string { return "sms" }

func (s *SMSChannel) Send(ctx context.Context, msg Message) error {
	if !validation.ValidatePhone(msg.Recipient.Phone) {
		return ErrRecipientUnreachable
	}

	attrs := map[string]snstypes.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = snstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(msg.Recipient.Phone),
		Message:           aws.String(msg.Body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
