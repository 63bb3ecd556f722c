package notify

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/nick-arm/skara/internal/config"
	"github.com/nick-arm/skara/internal/email"
	"github.com/nick-arm/skara/internal/forge"
	"github.com/nick-arm/skara/internal/mailinglist"
	logx "github.com/nick-arm/skara/pkg/logx"
)

const defaultBranchPattern = "^master$"

// Deps holds the shared, read-only resources pipelines are wired to:
// one mailing-list transport and one forge binding per repository. Both must
// be safe for concurrent use; nothing else is shared between pipelines.
type Deps struct {
	Lists        mailinglist.Server
	Repositories map[string]forge.HostedRepository
	Log          logx.Logger
}

// Assemble builds one pipeline per configured repository from declarative
// settings. A configuration error aborts only the offending target: the
// error is logged, the rest of the repository's targets are still built, and
// assembly continues with the next repository. A repository declaring no
// targets at all is not an error; it is logged and left inert.
func Assemble(cfg *config.Config, deps Deps) map[string]*Pipeline {
	sender, senderErr := email.ParseAddress(cfg.Email.Sender)

	pipelines := make(map[string]*Pipeline)
	for name, rc := range cfg.Repositories {
		log := deps.Log.With(logx.String("repository", name))

		repo, ok := deps.Repositories[name]
		if !ok {
			log.Error("no forge binding for repository")
			continue
		}

		pattern := rc.Branches
		if pattern == "" {
			pattern = defaultBranchPattern
		}
		branches, err := regexp.Compile(pattern)
		if err != nil {
			log.Error("invalid branch pattern", logx.String("pattern", pattern), logx.Err(err))
			continue
		}

		var consumers []UpdateConsumer
		if rc.JSON != nil {
			consumers = append(consumers, NewJSONUpdater(rc.JSON.Folder, rc.JSON.Version, rc.JSON.Build))
		}
		for i, target := range rc.MailingLists {
			updater, err := buildMailingListUpdater(target, rc.BranchNames, sender, senderErr, deps.Lists, log)
			if err != nil {
				log.Error("skipping mailing list target",
					logx.Int("target", i),
					logx.String("recipient", target.Recipient),
					logx.Err(err))
				continue
			}
			consumers = append(consumers, updater)
		}

		if len(consumers) == 0 {
			log.Warn("no consumers configured for repository; notifications disabled")
			continue
		}

		pipelines[name] = NewPipeline(repo, branches, consumers, log)
	}
	return pipelines
}

func buildMailingListUpdater(target config.MailingListTarget, includeBranch bool,
	sender email.Address, senderErr error, lists mailinglist.Server, log logx.Logger) (*MailingListUpdater, error) {

	if lists == nil {
		return nil, errors.New("no mailing list transport configured")
	}
	if senderErr != nil {
		return nil, fmt.Errorf("shared sender address: %w", senderErr)
	}

	recipient, err := email.ParseAddress(target.Recipient)
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}

	mode, err := ParseMode(target.Mode)
	if err != nil {
		return nil, err
	}

	var author *email.Address
	if target.Author != "" {
		a, err := email.ParseAddress(target.Author)
		if err != nil {
			return nil, fmt.Errorf("author: %w", err)
		}
		author = &a
	}

	return NewMailingListUpdater(MailingListConfig{
		List:           lists.List(recipient.Address),
		Recipient:      recipient,
		Sender:         sender,
		Author:         author,
		AllowedDomains: target.Domains,
		IncludeBranch:  includeBranch,
		Mode:           mode,
		Headers:        target.Headers,
		Log:            log,
	})
}
