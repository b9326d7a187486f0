package accounts

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegistered           ActivityEventType = "account.registered"
	ActivityEventRegistrationFailed   ActivityEventType = "account.registration.failed"
	ActivityEventEmailConfirmed       ActivityEventType = "account.email.confirmed"
	ActivityEventEmailConfirmFailed   ActivityEventType = "account.email.confirm_failed"
	ActivityEventLoginSuccess         ActivityEventType = "account.login.success"
	ActivityEventLoginFailure         ActivityEventType = "account.login.failure"
	ActivityEventLockedOut            ActivityEventType = "account.login.locked_out"
	ActivityEventLogout               ActivityEventType = "account.logout"
	ActivityEventPasswordResetRequest ActivityEventType = "account.password.reset_requested"
	ActivityEventPasswordReset        ActivityEventType = "account.password.reset"
	ActivityEventPasswordResetFailed  ActivityEventType = "account.password.reset_failed"
	ActivityEventExternalChallenge    ActivityEventType = "account.external.challenge"
	ActivityEventExternalLogin        ActivityEventType = "account.external.login"
	ActivityEventExternalLinked       ActivityEventType = "account.external.linked"
	ActivityEventExternalFailure      ActivityEventType = "account.external.failure"
	ActivityEventEmailFailed          ActivityEventType = "account.email.send_failed"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	AccountID  string
	Email      string
	Provider   string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiActivitySink fans an event out to every sink. The first error is
// returned after all sinks ran.
type MultiActivitySink []ActivitySink

// Record implements ActivitySink.
func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
