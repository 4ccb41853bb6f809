// Package runctx carries a per-run diagnostic scope as an explicit
// context.Context value. Tags are serialized into a Sentry scope at the
// point an engine error is raised.
package runctx

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

type scopeKey struct{}

// Scope holds structured tags for one in-flight run.
type Scope struct {
	RequestID string
	Language  string
	Extra     map[string]string
}

// WithScope attaches a new Scope tagged with language to ctx.
func WithScope(ctx context.Context, language string) context.Context {
	s := &Scope{
		RequestID: uuid.NewString(),
		Language:  language,
		Extra:     make(map[string]string),
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the Scope attached to ctx, or a zero-value Scope if none.
func FromContext(ctx context.Context) *Scope {
	if s, ok := ctx.Value(scopeKey{}).(*Scope); ok {
		return s
	}
	return &Scope{Extra: make(map[string]string)}
}

// Tag records an additional key/value on the scope for later reporting.
func (s *Scope) Tag(key, value string) {
	if s.Extra == nil {
		s.Extra = make(map[string]string)
	}
	s.Extra[key] = value
}

// ReportEngineError serializes the scope's tags into Sentry along with err.
// A no-op if Sentry was never initialized (DSN empty).
func (s *Scope) ReportEngineError(err error) {
	if !sentry.HasHubOnContext(context.Background()) && sentry.CurrentHub().Client() == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("language", s.Language)
		scope.SetTag("request_id", s.RequestID)
		for k, v := range s.Extra {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}
