// Package notifier provides abstraction for sending notifications about
// nuclear failure escalations. It defines the Notifier interface which
// allows different notification mechanisms (Discord, Slack) to be used
// interchangeably through dependency injection.
//
// The package includes implementations for Discord and Slack webhooks and
// a no-op notifier for when notifications are disabled.
package notifier

import (
	"context"

	"ingestengine/internal/domain/entity"
)

// Notifier is an interface for sending nuclear-failure escalation
// notifications. Implementations should handle rate limiting, retries,
// and error logging internally.
type Notifier interface {
	// NotifyEscalation sends a notification that a Nuclear Failure record
	// has transitioned to human-intervention-required (spec's Nuclear
	// Failure Record invariant) after exhausting every automated retry
	// tactic.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - failure: The escalated record (must not be nil)
	//
	// Returns:
	//   - error: Non-nil if the notification failed after all retry attempts
	//
	// Implementations should:
	//   - Generate a unique request ID for tracing
	//   - Apply rate limiting to prevent API abuse
	//   - Retry transient failures with exponential backoff
	//   - Log all attempts with the request ID for debugging
	//   - Respect context cancellation
	NotifyEscalation(ctx context.Context, failure *entity.NuclearFailure) error
}
