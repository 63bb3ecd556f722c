package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nick-arm/skara/internal/email"
	"github.com/nick-arm/skara/internal/forge"
	"github.com/nick-arm/skara/internal/mailinglist"
	"github.com/nick-arm/skara/internal/vcs"
	logx "github.com/nick-arm/skara/pkg/logx"
)

// Review threads older than this are never considered for correlation.
const reviewThreadLookback = 365 * 24 * time.Hour

const reviewSubjectPrefix = "RFR: "

// MailingListConfig configures one mailing-list pipeline.
//
// Exactly one of Author and AllowedDomains must be set. With Author, every
// notification carries that fixed identity. With AllowedDomains, the last
// commit's committer becomes the author when its email domain fully matches
// the pattern, and the Sender identity is used otherwise so the message stays
// attributable to the channel rather than spoofing the committer.
type MailingListConfig struct {
	List      mailinglist.List
	Recipient email.Address
	Sender    email.Address

	Author         *email.Address
	AllowedDomains string

	IncludeBranch bool
	Mode          Mode
	Headers       map[string]string
	Log           logx.Logger
}

// MailingListUpdater renders change batches into mailing-list traffic,
// correlating reviewed commits back to their originating review threads
// where the delivery mode asks for it.
type MailingListUpdater struct {
	list      mailinglist.List
	recipient email.Address
	sender    email.Address

	author  *email.Address
	allowed *regexp.Regexp

	includeBranch bool
	mode          Mode
	headers       map[string]string
	log           logx.Logger
}

func NewMailingListUpdater(cfg MailingListConfig) (*MailingListUpdater, error) {
	if cfg.List == nil {
		return nil, errors.New("mailing list transport is required")
	}
	if cfg.Author != nil && cfg.AllowedDomains != "" {
		return nil, errors.New("author and domains are mutually exclusive")
	}

	var allowed *regexp.Regexp
	if cfg.Author == nil {
		if cfg.AllowedDomains == "" {
			return nil, errors.New("either author or domains must be configured")
		}
		// Full-match semantics, not search.
		re, err := regexp.Compile(`\A(?:` + cfg.AllowedDomains + `)\z`)
		if err != nil {
			return nil, fmt.Errorf("invalid domains pattern %q: %w", cfg.AllowedDomains, err)
		}
		allowed = re
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &MailingListUpdater{
		list:          cfg.List,
		recipient:     cfg.Recipient,
		sender:        cfg.Sender,
		author:        cfg.Author,
		allowed:       allowed,
		includeBranch: cfg.IncludeBranch,
		mode:          cfg.Mode,
		headers:       headers,
		log:           cfg.Log,
	}, nil
}

// batchAuthor resolves the outbound author identity for a batch. The batch
// may be empty only for a brand-new branch with no unique commits, in which
// case the sender identity is used directly.
func (u *MailingListUpdater) batchAuthor(commits []vcs.Commit) email.Address {
	if u.author != nil {
		return *u.author
	}
	if len(commits) == 0 {
		return u.sender
	}
	last := commits[len(commits)-1]
	addr := email.Address{Name: last.Committer.Name, Address: last.Committer.Email}
	if u.allowed.MatchString(addr.Domain()) {
		return addr
	}
	return u.sender
}

// notifyReviewedCommits posts a threaded reply for every commit that
// correlates to exactly one pull request and exactly one review thread, and
// returns the commits that did not. Ambiguity at either step is an
// operational diagnostic, never an error: the commit simply falls through to
// the digest path. Correlation runs in commit order, one forge lookup at a
// time, so log output and thread replies are deterministic.
func (u *MailingListUpdater) notifyReviewedCommits(ctx context.Context, repo forge.HostedRepository, commits []vcs.Commit) ([]vcs.Commit, error) {
	conversations, err := u.list.Conversations(ctx, reviewThreadLookback)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	var reviewRoots []email.Message
	for _, conv := range conversations {
		if first := conv.First(); strings.HasPrefix(first.Subject, reviewSubjectPrefix) {
			reviewRoots = append(reviewRoots, first)
		}
	}

	var uncorrelated []vcs.Commit
	for _, commit := range commits {
		marker := fmt.Sprintf("Pushed as commit %s.", commit.Hash)
		candidates, err := repo.PullRequestsWithComment(ctx, marker)
		if err != nil {
			return nil, fmt.Errorf("pull request lookup for %s: %w", commit.Hash, err)
		}
		if len(candidates) != 1 {
			u.log.Warn("commit matched by an unexpected number of pull requests",
				logx.String("commit", commit.Hash.String()),
				logx.Int("matches", len(candidates)))
			uncorrelated = append(uncorrelated, commit)
			continue
		}

		prLink := candidates[0].WebURL
		linkPattern := regexp.MustCompile(`(?m)^(?:PR: )?` + regexp.QuoteMeta(prLink))
		var threads []email.Message
		for _, root := range reviewRoots {
			if linkPattern.MatchString(root.Body) {
				threads = append(threads, root)
			}
		}
		if len(threads) != 1 {
			u.log.Warn("pull request found in an unexpected number of review threads",
				logx.String("pr", prLink),
				logx.Int("matches", len(threads)))
			uncorrelated = append(uncorrelated, commit)
			continue
		}

		root := threads[0]
		body, err := commitToText(repo, commit)
		if err != nil {
			return nil, err
		}
		reply := email.Reply(root, "Re: [Integrated] "+root.Subject, body).
			Sender(u.sender).
			Author(u.batchAuthor(commits)).
			Recipient(u.recipient).
			Headers(u.headers).
			Build()
		if err := u.list.Post(ctx, reply); err != nil {
			return nil, fmt.Errorf("posting reply for %s: %w", commit.Hash, err)
		}
	}

	return uncorrelated, nil
}

// sendCombined posts one digest email covering the given commits, or nothing
// when there are none.
func (u *MailingListUpdater) sendCombined(ctx context.Context, repo forge.HostedRepository, commits []vcs.Commit, branch vcs.Branch) error {
	if len(commits) == 0 {
		return nil
	}

	var body strings.Builder
	for _, commit := range commits {
		text, err := commitToText(repo, commit)
		if err != nil {
			return err
		}
		body.WriteString(text)
		body.WriteString("\n")
	}

	digest := email.New(commitsSubject(repo, commits, branch, u.includeBranch), body.String()).
		Sender(u.sender).
		Author(u.batchAuthor(commits)).
		Recipient(u.recipient).
		Headers(u.headers).
		Build()
	return u.list.Post(ctx, digest)
}

// HandleCommits routes a pushed-commits batch according to the pipeline's
// mode. The relationship between the PR modes is explicit composition:
// correlate first, then digest the leftovers (PR) or stop (PR_ONLY).
func (u *MailingListUpdater) HandleCommits(ctx context.Context, repo forge.HostedRepository, commits []vcs.Commit, branch vcs.Branch) error {
	switch u.mode {
	case ModePROnly:
		_, err := u.notifyReviewedCommits(ctx, repo, commits)
		return err
	case ModePR:
		uncorrelated, err := u.notifyReviewedCommits(ctx, repo, commits)
		if err != nil {
			return err
		}
		return u.sendCombined(ctx, repo, uncorrelated, branch)
	default:
		return u.sendCombined(ctx, repo, commits, branch)
	}
}

func (u *MailingListUpdater) HandleTagCommits(ctx context.Context, repo forge.HostedRepository, commits []vcs.Commit, tag vcs.Tag) error {
	if u.mode == ModePROnly {
		return nil
	}
	if len(commits) == 0 {
		return nil
	}

	var body strings.Builder
	fmt.Fprintf(&body, "The following commits are included in %s\n", tag.Label)
	body.WriteString(sectionBanner)
	body.WriteString("\n")
	body.WriteString(commitListing(commits))

	tagged := commits[len(commits)-1]
	digest := email.New(tagSubject(repo, tagged.Hash, tag), body.String()).
		Sender(u.sender).
		Author(u.batchAuthor(commits)).
		Recipient(u.recipient).
		Headers(u.headers).
		Build()
	return u.list.Post(ctx, digest)
}

func (u *MailingListUpdater) HandleNewBranch(ctx context.Context, repo forge.HostedRepository, commits []vcs.Commit, parent, branch vcs.Branch) error {
	if u.mode == ModePROnly {
		return nil
	}

	var body strings.Builder
	if len(commits) > 0 {
		fmt.Fprintf(&body, "The following commits are unique to the %s branch\n", branch)
		body.WriteString(sectionBanner)
		body.WriteString("\n")
		body.WriteString(commitListing(commits))
	} else {
		fmt.Fprintf(&body, "The new branch %s is currently identical to the %s branch.\n", branch, parent)
	}

	notice := email.New(newBranchSubject(repo, len(commits), parent, branch), body.String()).
		Sender(u.sender).
		Author(u.batchAuthor(commits)).
		Recipient(u.recipient).
		Headers(u.headers).
		Build()
	return u.list.Post(ctx, notice)
}
