// Package notifications tells operators about negative feedback and oracle
// outages, through SNS when a topic is configured and the log otherwise.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type NotificationType string

const (
	NotificationNegativeFeedback NotificationType = "negative_feedback"
	NotificationOracleDown       NotificationType = "oracle_down"
	NotificationOracleUp         NotificationType = "oracle_up"
)

type Notification struct {
	Type    NotificationType `json:"type"`
	Subject string           `json:"subject,omitempty"`
	Message string           `json:"message"`
	Data    map[string]any   `json:"data,omitempty"`
}

type Notifier interface {
	Send(ctx context.Context, notification Notification) error
}

type publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSNotifier struct {
	client   publisher
	topicArn string
}

func NewSNSNotifier(ctx context.Context, region, topicArn string) (*SNSNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSNSNotifierWithConfig(cfg, topicArn), nil
}

func NewSNSNotifierWithConfig(cfg aws.Config, topicArn string) *SNSNotifier {
	return &SNSNotifier{
		client:   sns.NewFromConfig(cfg),
		topicArn: topicArn,
	}
}

func (n *SNSNotifier) Send(ctx context.Context, notification Notification) error {
	message, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Message:  aws.String(string(message)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"Type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(notification.Type)),
			},
		},
	}
	if notification.Subject != "" {
		// SNS caps email subjects at 100 characters.
		input.Subject = aws.String(truncate(notification.Subject, 100))
	}

	if _, err := n.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	slog.Info("notification sent", "type", notification.Type)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, notification Notification) error {
	n.logger.InfoContext(ctx, "notification",
		"type", notification.Type,
		"subject", notification.Subject,
		"message", notification.Message,
		"data", notification.Data,
	)
	return nil
}

type InMemoryNotifier struct {
	mu            sync.Mutex
	notifications []Notification
	err           error
}

func NewInMemoryNotifier() *InMemoryNotifier {
	return &InMemoryNotifier{}
}

func (n *InMemoryNotifier) Send(_ context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.err != nil {
		return n.err
	}
	n.notifications = append(n.notifications, notification)
	return nil
}

// FailWith makes every subsequent Send return err.
func (n *InMemoryNotifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *InMemoryNotifier) GetNotifications() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	result := make([]Notification, len(n.notifications))
	copy(result, n.notifications)
	return result
}
