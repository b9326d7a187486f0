package activitymap_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/activitymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAccountEvent(t *testing.T) {
	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := accounts.ActivityEvent{
		EventType:  accounts.ActivityEventExternalLogin,
		AccountID:  "acc-1",
		Email:      "ada@example.com",
		Provider:   "github",
		Metadata:   map[string]any{"persistent": true},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "acc-1", out.ActorID)
	assert.Equal(t, "acc-1", out.ObjectID)
	assert.Equal(t, string(accounts.ActivityEventExternalLogin), out.Verb)
	assert.Equal(t, "account", out.ObjectType)
	assert.Equal(t, "accounts", out.Channel)
	assert.Equal(t, ts, out.OccurredAt)
	assert.Equal(t, map[string]any{
		"persistent":                   true,
		activitymap.MetadataKeyProvider: "github",
		activitymap.MetadataKeyEmail:    "a**@example.com",
	}, out.Metadata)

	assert.Len(t, event.Metadata, 1, "source metadata is not modified")
}

func TestNormalizeMasksShortMailboxes(t *testing.T) {
	out := activitymap.Normalize(accounts.ActivityEvent{
		EventType: accounts.ActivityEventLoginFailure,
		Email:     "x@example.com",
	})
	assert.Equal(t, "*@example.com", out.Metadata[activitymap.MetadataKeyEmail])

	out = activitymap.Normalize(accounts.ActivityEvent{
		EventType: accounts.ActivityEventLoginFailure,
		Email:     "margaret@example.com",
	})
	assert.Equal(t, "m*******@example.com", out.Metadata[activitymap.MetadataKeyEmail])
}

func TestNormalizeAnonymousEvent(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	out := activitymap.Normalize(accounts.ActivityEvent{
		EventType: accounts.ActivityEventLoginFailure,
		Email:     "ghost@example.com",
	},
		activitymap.WithChannel("web"),
		activitymap.WithEmailMasking(false),
		activitymap.WithClock(func() time.Time { return now }),
	)

	assert.Equal(t, "anonymous", out.ActorID)
	assert.Empty(t, out.ObjectID)
	assert.Equal(t, "web", out.Channel)
	assert.Equal(t, now, out.OccurredAt)
	assert.Equal(t, "ghost@example.com", out.Metadata[activitymap.MetadataKeyEmail])
}

type captureLogger struct {
	lines []string
}

func (c *captureLogger) Debug(msg string, args ...any) {}
func (c *captureLogger) Warn(msg string, args ...any)  {}
func (c *captureLogger) Error(msg string, args ...any) {}
func (c *captureLogger) Info(msg string, args ...any) {
	c.lines = append(c.lines, fmt.Sprint(append([]any{msg}, args...)...))
}

func TestAuditSinkLogsRecord(t *testing.T) {
	logger := &captureLogger{}
	sink := activitymap.NewAuditSink(logger)

	require.NoError(t, sink.Record(context.Background(), accounts.ActivityEvent{
		EventType: accounts.ActivityEventRegistered,
		AccountID: "acc-2",
	}))

	require.Len(t, logger.lines, 1)
	assert.Contains(t, logger.lines[0], "account.registered")
	assert.Contains(t, logger.lines[0], "acc-2")
}
