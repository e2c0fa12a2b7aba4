package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

const eventTransactionsChanged = "transactions_changed"

// Notification announces that the transaction store changed.
type Notification struct {
	EventID    string    `json:"event_id"`
	Source     string    `json:"source"`
	Rows       int       `json:"rows"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewNotification stamps a fresh event id and time.
func NewNotification(source string, rows int) Notification {
	return Notification{
		EventID:    uuid.NewString(),
		Source:     source,
		Rows:       rows,
		OccurredAt: time.Now().UTC(),
	}
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) *gcppubsub.PublishResult
}

// Publish sends n and waits for the server id.
func Publish(ctx context.Context, pub publisher, n Notification) (string, error) {
	if pub == nil {
		return "", errors.New("publisher required")
	}
	msg, err := encode(n)
	if err != nil {
		return "", err
	}
	id, err := pub.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish transactions notification: %w", err)
	}
	return id, nil
}

func encode(n Notification) (*gcppubsub.Message, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}
	return &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type": eventTransactionsChanged,
			"event_id":   n.EventID,
			"source":     n.Source,
			"rows":       strconv.Itoa(n.Rows),
		},
	}, nil
}

func decode(msg *gcppubsub.Message) (*Notification, error) {
	if eventType := strings.TrimSpace(msg.Attributes["event_type"]); eventType != "" && eventType != eventTransactionsChanged {
		return nil, fmt.Errorf("unexpected event_type %q", eventType)
	}
	var n Notification
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &n); err != nil {
			return nil, fmt.Errorf("decode notification: %w", err)
		}
	}
	if strings.TrimSpace(n.EventID) == "" {
		n.EventID = strings.TrimSpace(msg.Attributes["event_id"])
	}
	if n.EventID == "" {
		return nil, errors.New("event_id missing")
	}
	if _, err := uuid.Parse(n.EventID); err != nil {
		return nil, fmt.Errorf("event_id: %w", err)
	}
	if n.OccurredAt.IsZero() {
		n.OccurredAt = msg.PublishTime
	}
	n.OccurredAt = n.OccurredAt.UTC()
	return &n, nil
}
