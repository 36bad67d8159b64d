package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/praxishq/praxis/pkg/constants"
)

var (
	ErrNoUser     = errors.New("no acting user found in context")
	ErrNoTenantID = errors.New("no tenant bound to context")
)

// WithUserID returns a new context carrying the acting principal.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.UserKey, userID)
}

// UseUserID returns the acting principal from the context.
func UseUserID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(constants.UserKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrNoUser
	}
	return id, nil
}

// WithTenantID returns a new context with the resolved tenant bound.
// The resolver is the only writer; business logic and the policy
// evaluator read it back with UseTenantID.
func WithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.TenantIDKey, tenantID)
}

// UseTenantID returns the tenant the current operation is bound to.
func UseTenantID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(constants.TenantIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrNoTenantID
	}
	return id, nil
}

// UseLogger returns the logger from the context, or a default entry if
// none was attached.
func UseLogger(ctx context.Context) *logrus.Entry {
	logger := ctx.Value(constants.LoggerKey)
	if logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return logger.(*logrus.Entry)
}

// WithLogger returns a new context carrying the given log entry.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, entry)
}
