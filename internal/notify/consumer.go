// Package notify turns batches of newly observed repository changes into
// outbound notifications: threaded replies into the review threads that
// approved them, combined digest mails, and JSON status files.
package notify

import (
	"context"

	"github.com/nick-arm/skara/internal/forge"
	"github.com/nick-arm/skara/internal/vcs"
)

// UpdateConsumer receives change batches from a repository pipeline. Each
// call is processed synchronously to completion or failure before the
// pipeline accepts the next event.
type UpdateConsumer interface {
	// HandleCommits is invoked for commits newly pushed to a watched branch.
	HandleCommits(ctx context.Context, repo forge.HostedRepository, commits []vcs.Commit, branch vcs.Branch) error

	// HandleTagCommits is invoked for commits newly covered by a tag, in
	// history order; the last commit is the tagged one.
	HandleTagCommits(ctx context.Context, repo forge.HostedRepository, commits []vcs.Commit, tag vcs.Tag) error

	// HandleNewBranch is invoked when a branch is created, with the commits
	// unique to it relative to its parent.
	HandleNewBranch(ctx context.Context, repo forge.HostedRepository, commits []vcs.Commit, parent, branch vcs.Branch) error
}
