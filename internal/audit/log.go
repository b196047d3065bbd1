// Package audit records privileged actions (invites, request decisions, role
// changes) as structured log events enriched with request and actor context.
package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"huddler.io/internal/identity"
	"huddler.io/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// requestIDFromContext extracts the audit request id from context if present.
func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry enriched with request and actor context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}

	zfields := []zap.Field{
		zap.String("type", "audit"),
		zap.String("event", event),
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		zfields = append(zfields, zap.String("request_id", rid))
	}
	if actor, ok := identity.IdentityFromContext(ctx); ok {
		zfields = append(zfields, zap.String("actor_id", actor.ID))
	}
	if len(fields) > 0 {
		copyFields := make(map[string]any, len(fields))
		for k, v := range fields {
			copyFields[k] = v
		}
		zfields = append(zfields, zap.Any("fields", copyFields))
	}

	obs.Logger().Info("audit", zfields...)
	return nil
}
