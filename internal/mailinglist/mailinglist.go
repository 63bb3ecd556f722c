// Package mailinglist defines the capability interface the notifier uses to
// talk to a mailing-list transport: listing archived conversations within a
// lookback window and posting messages.
package mailinglist

import (
	"context"
	"time"

	"github.com/nick-arm/skara/internal/email"
)

// Conversation is one email thread, messages in arrival order.
type Conversation struct {
	Messages []email.Message
}

// First returns the thread root.
func (c Conversation) First() email.Message {
	if len(c.Messages) == 0 {
		return email.Message{}
	}
	return c.Messages[0]
}

// List is one mailing list on a server.
//
// Implementations must be safe for concurrent use: several pipelines may
// share one transport.
type List interface {
	// Conversations returns the threads whose root message arrived within
	// the lookback window.
	Conversations(ctx context.Context, lookback time.Duration) ([]Conversation, error)

	// Post submits an email to the list. Delivery guarantees are the
	// transport's concern; the notifier performs no retries.
	Post(ctx context.Context, e email.Email) error
}

// Server hands out lists by name.
type Server interface {
	List(name string) List
}
