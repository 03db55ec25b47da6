package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"finledger/internal/core"
)

// Invalidator drops cached per-user views after a mutation.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID string)
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateUser(context.Context, string) {}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrUnauthorized
	}
	return nil
}

func newID() string {
	return uuid.NewString()
}

func utcNow() time.Time {
	return time.Now().UTC()
}
