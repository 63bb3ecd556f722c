package notify

import (
	"context"
	"errors"
	"regexp"

	"github.com/nick-arm/skara/internal/forge"
	"github.com/nick-arm/skara/internal/vcs"
	logx "github.com/nick-arm/skara/pkg/logx"
)

// Pipeline fans one repository's change events out to its configured
// consumers. Consumers are independent: a failure in one is logged and does
// not stop the others, and all failures are surfaced joined so the caller
// can retry the event.
type Pipeline struct {
	repo      forge.HostedRepository
	branches  *regexp.Regexp
	consumers []UpdateConsumer
	log       logx.Logger
}

func NewPipeline(repo forge.HostedRepository, branches *regexp.Regexp, consumers []UpdateConsumer, log logx.Logger) *Pipeline {
	return &Pipeline{repo: repo, branches: branches, consumers: consumers, log: log}
}

func (p *Pipeline) Repository() forge.HostedRepository { return p.repo }

func (p *Pipeline) fanout(fn func(c UpdateConsumer) error) error {
	var errs []error
	for i, c := range p.consumers {
		if err := fn(c); err != nil {
			p.log.Error("consumer failed", logx.Int("consumer", i), logx.Err(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) watched(branch vcs.Branch) bool {
	if p.branches.MatchString(branch.String()) {
		return true
	}
	p.log.Debug("branch not watched; skipping event", logx.String("branch", branch.String()))
	return false
}

func (p *Pipeline) HandleCommits(ctx context.Context, commits []vcs.Commit, branch vcs.Branch) error {
	if !p.watched(branch) {
		return nil
	}
	return p.fanout(func(c UpdateConsumer) error {
		return c.HandleCommits(ctx, p.repo, commits, branch)
	})
}

func (p *Pipeline) HandleTagCommits(ctx context.Context, commits []vcs.Commit, tag vcs.Tag) error {
	return p.fanout(func(c UpdateConsumer) error {
		return c.HandleTagCommits(ctx, p.repo, commits, tag)
	})
}

func (p *Pipeline) HandleNewBranch(ctx context.Context, commits []vcs.Commit, parent, branch vcs.Branch) error {
	if !p.watched(branch) {
		return nil
	}
	return p.fanout(func(c UpdateConsumer) error {
		return c.HandleNewBranch(ctx, p.repo, commits, parent, branch)
	})
}
