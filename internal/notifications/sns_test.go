package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type mockPublisher struct {
	input *sns.PublishInput
	err   error
}

func (m *mockPublisher) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.input = in
	if m.err != nil {
		return nil, m.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSNSNotifier_Send(t *testing.T) {
	pub := &mockPublisher{}
	n := &SNSNotifier{client: pub, topicArn: "arn:aws:sns:us-east-1:123456789012:feedback"}

	err := n.Send(context.Background(), Notification{
		Type:    NotificationNegativeFeedback,
		Subject: strings.Repeat("s", 150),
		Message: "explanation marked not helpful",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got := aws.ToString(pub.input.TopicArn); got != n.topicArn {
		t.Errorf("TopicArn = %s", got)
	}
	if got := len(aws.ToString(pub.input.Subject)); got != 100 {
		t.Errorf("Subject length = %d, want 100", got)
	}
	if got := aws.ToString(pub.input.MessageAttributes["Type"].StringValue); got != string(NotificationNegativeFeedback) {
		t.Errorf("Type attribute = %s", got)
	}

	var body Notification
	if err := json.Unmarshal([]byte(aws.ToString(pub.input.Message)), &body); err != nil {
		t.Fatalf("message body: %v", err)
	}
	if body.Message != "explanation marked not helpful" {
		t.Errorf("Message = %q", body.Message)
	}
}

func TestSNSNotifier_PublishError(t *testing.T) {
	n := &SNSNotifier{client: &mockPublisher{err: errors.New("throttled")}, topicArn: "arn"}

	if err := n.Send(context.Background(), Notification{Type: NotificationOracleDown}); err == nil {
		t.Error("expected error")
	}
}

func TestInMemoryNotifier(t *testing.T) {
	n := NewInMemoryNotifier()
	ctx := context.Background()

	n.Send(ctx, Notification{Type: NotificationOracleDown})
	n.Send(ctx, Notification{Type: NotificationOracleUp})

	got := n.GetNotifications()
	if len(got) != 2 || got[1].Type != NotificationOracleUp {
		t.Errorf("notifications = %+v", got)
	}

	n.FailWith(errors.New("down"))
	if err := n.Send(ctx, Notification{}); err == nil {
		t.Error("expected FailWith error")
	}
}

func TestLogNotifier(t *testing.T) {
	if err := NewLogNotifier(nil).Send(context.Background(), Notification{Type: NotificationNegativeFeedback}); err != nil {
		t.Errorf("LogNotifier.Send: %v", err)
	}
}
