// Package activitymap turns account activity into a flat audit record and
// writes it to a logger.
package activitymap

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-masker"
)

// Metadata keys added on top of the event metadata.
const (
	MetadataKeyProvider = "provider"
	MetadataKeyEmail    = "email"
)

const (
	defaultChannel    = "accounts"
	defaultObjectType = "account"
	anonymousActor    = "anonymous"
)

// Record is a transport agnostic audit entry.
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Option func(*options)

type options struct {
	channel   string
	maskEmail bool
	now       func() time.Time
}

// WithChannel overrides the "accounts" channel.
func WithChannel(channel string) Option {
	return func(o *options) {
		if c := strings.TrimSpace(channel); c != "" {
			o.channel = c
		}
	}
}

// WithEmailMasking keeps only the first character of the local part.
// Enabled by default.
func WithEmailMasking(enabled bool) Option {
	return func(o *options) { o.maskEmail = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func resolve(opts []Option) options {
	o := options{channel: defaultChannel, maskEmail: true, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Normalize maps an account activity event to a Record. Events without an
// account (failed logins for unknown emails) are attributed to "anonymous".
func Normalize(event accounts.ActivityEvent, opts ...Option) Record {
	return normalize(event, resolve(opts))
}

func normalize(event accounts.ActivityEvent, o options) Record {
	accountID := strings.TrimSpace(event.AccountID)
	actor := accountID
	if actor == "" {
		actor = anonymousActor
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = o.now().UTC()
	}

	return Record{
		ActorID:    actor,
		Verb:       string(event.EventType),
		ObjectType: defaultObjectType,
		ObjectID:   accountID,
		Channel:    o.channel,
		Metadata:   metadata(event, o.maskEmail),
		OccurredAt: occurredAt,
	}
}

func metadata(event accounts.ActivityEvent, mask bool) map[string]any {
	var out map[string]any
	if len(event.Metadata) > 0 {
		out = maps.Clone(event.Metadata)
	}

	set := func(key, value string) {
		if value == "" {
			return
		}
		if out == nil {
			out = map[string]any{}
		}
		if _, exists := out[key]; !exists {
			out[key] = value
		}
	}

	set(MetadataKeyProvider, strings.TrimSpace(event.Provider))

	email := strings.TrimSpace(event.Email)
	if mask {
		email = maskEmail(email)
	}
	set(MetadataKeyEmail, email)

	return out
}

// localPartMask keeps the first character of the mailbox name.
const localPartMask = masker.MaskTypePreserveEnds + "(1,0)"

func maskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	local, err := masker.Default.String(localPartMask, email[:at])
	if err != nil {
		return email[at:]
	}
	return local + email[at:]
}

// AuditSink logs a Record for every event it receives.
type AuditSink struct {
	logger  accounts.Logger
	options options
}

var _ accounts.ActivitySink = (*AuditSink)(nil)

func NewAuditSink(logger accounts.Logger, opts ...Option) *AuditSink {
	if logger == nil {
		logger = accounts.ResolveLogger("audit", nil, nil)
	}
	return &AuditSink{logger: logger, options: resolve(opts)}
}

func (s *AuditSink) Record(_ context.Context, event accounts.ActivityEvent) error {
	r := normalize(event, s.options)
	s.logger.Info("audit",
		"actor_id", r.ActorID,
		"verb", r.Verb,
		"object_type", r.ObjectType,
		"object_id", r.ObjectID,
		"channel", r.Channel,
		"metadata", r.Metadata,
		"occurred_at", r.OccurredAt,
	)
	return nil
}
