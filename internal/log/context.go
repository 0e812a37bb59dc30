// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log provides structured logging utilities.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

type scopeKey struct{}

// scope holds the identifiers a request or render carries into its logs.
type scope struct {
	releaseID     string
	correlationID string
}

func scopeFrom(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, update func(*scope)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	s := scopeFrom(ctx)
	update(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// ContextWithReleaseID tags ctx with the release being rendered.
func ContextWithReleaseID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *scope) { s.releaseID = id })
}

// ContextWithCorrelationID tags ctx with a request ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *scope) { s.correlationID = id })
}

func ReleaseIDFromContext(ctx context.Context) string { return scopeFrom(ctx).releaseID }

func CorrelationIDFromContext(ctx context.Context) string { return scopeFrom(ctx).correlationID }

// WithContext adds the release and correlation IDs found in ctx to logger.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	s := scopeFrom(ctx)
	if s == (scope{}) {
		return logger
	}
	lc := logger.With()
	if s.releaseID != "" {
		lc = lc.Str(FieldReleaseID, s.releaseID)
	}
	if s.correlationID != "" {
		lc = lc.Str(FieldCorrelationID, s.correlationID)
	}
	return lc.Logger()
}

// WithComponentFromContext is WithComponent enriched by WithContext.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
