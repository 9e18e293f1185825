// Package notify decodes object-created notifications and produces them
// locally for the filesystem backend.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// Notification sources.
const (
	SourceManual     = "manual"
	SourceS3         = "aws:s3"
	SourceSQS        = "aws:sqs"
	SourceFilesystem = "filesystem"
)

// ErrInvalidPayload is returned for payloads that are neither empty nor a
// known event shape.
var ErrInvalidPayload = errors.New("invalid notification payload")

// Notification names the objects an event refers to.
type Notification struct {
	Source string   `json:"source"`
	Keys   []string `json:"keys"`
}

// Manual returns a notification for an invocation without a payload.
func Manual() *Notification {
	return &Notification{Source: SourceManual}
}

// Matches reports whether the report should run for prefix. Manual
// invocations always match.
func (n *Notification) Matches(prefix string) bool {
	if n.Source == SourceManual || prefix == "" {
		return true
	}

	for _, key := range n.Keys {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}

	return false
}

type envelope struct {
	Records []struct {
		EventSource string `json:"eventSource"`
	} `json:"Records"`
}

// Parse decodes an S3 event, an SQS event carrying S3 events in its message
// bodies, or an empty payload.
func Parse(payload []byte) (*Notification, error) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return Manual(), nil
	}

	var p envelope
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if len(p.Records) == 0 {
		return Manual(), nil
	}

	switch source := p.Records[0].EventSource; source {
	case SourceS3:
		var event events.S3Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}

		return &Notification{Source: SourceS3, Keys: s3Keys(event)}, nil
	case SourceSQS:
		var event events.SQSEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}

		return fromSQS(event)
	default:
		return nil, fmt.Errorf("%w: unknown event source %q", ErrInvalidPayload, source)
	}
}

func fromSQS(event events.SQSEvent) (*Notification, error) {
	n := &Notification{Source: SourceSQS}

	for _, msg := range event.Records {
		var inner events.S3Event
		if err := json.Unmarshal([]byte(msg.Body), &inner); err != nil {
			return nil, fmt.Errorf("%w: message %s: %w", ErrInvalidPayload, msg.MessageId, err)
		}

		// s3:TestEvent messages carry no records.
		n.Keys = append(n.Keys, s3Keys(inner)...)
	}

	return n, nil
}

func s3Keys(event events.S3Event) []string {
	keys := make([]string, 0, len(event.Records))

	for _, rec := range event.Records {
		key := rec.S3.Object.URLDecodedKey
		if key == "" {
			key = rec.S3.Object.Key
			if decoded, err := url.QueryUnescape(key); err == nil {
				key = decoded
			}
		}

		keys = append(keys, key)
	}

	return keys
}
