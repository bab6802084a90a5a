package logging

import (
	"context"

	"github.com/google/uuid"
)

// NewRunID returns a fresh identifier for one engine run.
func NewRunID() string {
	return uuid.NewString()
}

// StartRun attaches a new run ID to ctx and returns both.
func StartRun(ctx context.Context) (context.Context, string) {
	runID := NewRunID()
	return WithRunID(ctx, runID), runID
}
