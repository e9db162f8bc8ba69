// Package queue carries fire-and-forget side effects (emails, SMS,
// notification rows) out of the request path. Jobs run either in an
// in-process worker pool or in a separate worker fed through RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindOTPSend                    Kind = "otp.send"
	KindWelcomeEmail               Kind = "email.welcome"
	KindAccountExistsEmail         Kind = "email.account_exists"
	KindPasswordResetEmail         Kind = "email.password_reset"
	KindSubscriptionConfirmation   Kind = "subscription.confirmation"
	KindSubscriptionCancelled      Kind = "subscription.cancelled"
	KindSubscriptionRenewed        Kind = "subscription.renewed"
	KindSubscriptionExpired        Kind = "subscription.expired"
	KindSubscriptionRenewalFailed  Kind = "subscription.renewal_failed"
	KindSubscriptionExpiryReminder Kind = "subscription.expiry_reminder"
	KindNotificationCreate         Kind = "notification.create"
)

// Job is the unit of work. Payload must be JSON-serialisable.
type Job struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	Recipient  string         `json:"recipient"`
	Payload    map[string]any `json:"payload"`
	Attempt    int            `json:"attempt"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`
}

func NewJob(kind Kind, recipient string, payload map[string]any) Job {
	if payload == nil {
		payload = map[string]any{}
	}
	return Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Recipient:  recipient,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
}

// String returns the payload value for key formatted as a string.
func (j Job) String(key string) string {
	v, ok := j.Payload[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Uint reads an id from the payload. JSON decoding turns numbers into
// float64, so every numeric form is accepted.
func (j Job) Uint(key string) uint {
	switch t := j.Payload[key].(type) {
	case uint:
		return t
	case int:
		if t > 0 {
			return uint(t)
		}
	case int64:
		if t > 0 {
			return uint(t)
		}
	case float64:
		if t > 0 {
			return uint(t)
		}
	case json.Number:
		n, _ := strconv.ParseUint(t.String(), 10, 64)
		return uint(n)
	case string:
		n, _ := strconv.ParseUint(t, 10, 64)
		return uint(n)
	}
	return 0
}

func (j Job) Int(key string) int {
	switch t := j.Payload[key].(type) {
	case int:
		return t
	case int64:
		return int(t)
	case uint:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	}
	return 0
}

func (j Job) Bool(key string) bool {
	b, _ := j.Payload[key].(bool)
	return b
}

// Map returns a nested object from the payload, or nil.
func (j Job) Map(key string) map[string]any {
	m, _ := j.Payload[key].(map[string]any)
	return m
}

// Dispatcher enqueues a job without waiting for it to run. Failures are
// logged by the implementation and never surfaced to the caller.
type Dispatcher interface {
	Enqueue(ctx context.Context, kind Kind, recipient string, payload map[string]any)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, kind Kind, recipient string, payload map[string]any)

func (f DispatcherFunc) Enqueue(ctx context.Context, kind Kind, recipient string, payload map[string]any) {
	f(ctx, kind, recipient, payload)
}

type Handler func(ctx context.Context, job Job) error

var ErrNoHandler = errors.New("queue: no handler registered")

// Registry maps job kinds to handlers. It is shared by the in-process
// pool and the AMQP consumer.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Kind]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Kind]Handler)}
}

func (r *Registry) Register(kind Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Kinds lists registered kinds in a stable order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (r *Registry) Handle(ctx context.Context, job Job) error {
	r.mu.RLock()
	h, ok := r.handlers[job.Kind]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, job.Kind)
	}
	return h(ctx, job)
}
