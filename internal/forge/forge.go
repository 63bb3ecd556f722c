// Package forge defines the capability interface the notifier uses to talk
// to the hosting forge: pull-request lookup by marker comment and web URL
// construction.
package forge

import (
	"context"

	"github.com/nick-arm/skara/internal/vcs"
)

// PullRequest is a review request candidate found on the forge.
type PullRequest struct {
	WebURL string
}

// HostedRepository is one repository on a forge.
type HostedRepository interface {
	// Name is the repository's short name, used in notification subjects.
	Name() string

	// TypeShortName identifies the repository type ("git", "hg") for
	// notification subjects.
	TypeShortName() string

	// WebURL returns the browsable URL for a commit.
	WebURL(h vcs.Hash) string

	// PullRequestsWithComment returns every open or closed pull request
	// carrying a comment whose body is exactly the given text.
	PullRequestsWithComment(ctx context.Context, body string) ([]PullRequest, error)
}
