package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nick-arm/skara/internal/email"
	"github.com/nick-arm/skara/internal/forge"
	"github.com/nick-arm/skara/internal/mailinglist"
	"github.com/nick-arm/skara/internal/vcs"
)

// fakeRepo serves pull-request lookups from a fixed marker-comment table and
// counts how often the forge is consulted.
type fakeRepo struct {
	name    string
	prs     map[string][]forge.PullRequest
	lookups int
}

func (r *fakeRepo) Name() string {
	if r.name == "" {
		return "skara"
	}
	return r.name
}

func (r *fakeRepo) TypeShortName() string { return "git" }

func (r *fakeRepo) WebURL(h vcs.Hash) string {
	return "https://git.example.org/skara/commit/" + h.String()
}

func (r *fakeRepo) PullRequestsWithComment(_ context.Context, body string) ([]forge.PullRequest, error) {
	r.lookups++
	return r.prs[body], nil
}

// fakeList records posted emails and serves a fixed set of conversations.
type fakeList struct {
	mu            sync.Mutex
	conversations []mailinglist.Conversation
	posted        []email.Email
}

func (l *fakeList) Conversations(context.Context, time.Duration) ([]mailinglist.Conversation, error) {
	return l.conversations, nil
}

func (l *fakeList) Post(_ context.Context, e email.Email) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.posted = append(l.posted, e)
	return nil
}

func (l *fakeList) sent() []email.Email {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]email.Email(nil), l.posted...)
}

type fakeServer struct {
	mu    sync.Mutex
	lists map[string]*fakeList
}

func (s *fakeServer) List(name string) mailinglist.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lists == nil {
		s.lists = map[string]*fakeList{}
	}
	if _, ok := s.lists[name]; !ok {
		s.lists[name] = &fakeList{}
	}
	return s.lists[name]
}

func testCommit(hash, firstLine string) vcs.Commit {
	return vcs.Commit{
		Hash:      vcs.Hash(hash),
		Author:    vcs.Author{Name: "Duke", Email: "duke@openjdk.org"},
		Committer: vcs.Author{Name: "Duke", Email: "duke@openjdk.org"},
		Date:      time.Date(2020, 3, 5, 13, 30, 0, 0, time.UTC),
		Message:   []string{firstLine},
		ParentDiffs: []vcs.Diff{{Patches: []vcs.Patch{
			{Status: vcs.StatusModified, Source: "src/main.c", Target: "src/main.c"},
		}}},
	}
}

func rfrConversation(id, subject, prLink string) mailinglist.Conversation {
	return mailinglist.Conversation{Messages: []email.Message{{
		ID:      id,
		Subject: subject,
		Body:    fmt.Sprintf("Please review this change.\n\nPR: %s\n", prLink),
		Author:  email.Address{Name: "Reviewer", Address: "reviewer@openjdk.org"},
		Date:    time.Date(2020, 3, 1, 9, 0, 0, 0, time.UTC),
	}}}
}

func markerFor(hash string) string {
	return fmt.Sprintf("Pushed as commit %s.", hash)
}

var (
	testSender    = email.Address{Name: "notify", Address: "notify@openjdk.org"}
	testRecipient = email.Address{Name: "", Address: "skara-dev@openjdk.org"}
)

func newTestUpdater(t interface{ Fatalf(string, ...any) }, cfg MailingListConfig) *MailingListUpdater {
	if cfg.Recipient.IsZero() {
		cfg.Recipient = testRecipient
	}
	if cfg.Sender.IsZero() {
		cfg.Sender = testSender
	}
	if cfg.Author == nil && cfg.AllowedDomains == "" {
		cfg.AllowedDomains = `openjdk\.org`
	}
	u, err := NewMailingListUpdater(cfg)
	if err != nil {
		t.Fatalf("NewMailingListUpdater: %v", err)
	}
	return u
}
