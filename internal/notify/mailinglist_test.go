package notify

import (
	"context"
	"strings"
	"testing"

	"github.com/nick-arm/skara/internal/email"
	"github.com/nick-arm/skara/internal/forge"
	"github.com/nick-arm/skara/internal/mailinglist"
	"github.com/nick-arm/skara/internal/vcs"
)

func TestNewMailingListUpdaterValidation(t *testing.T) {
	t.Parallel()

	author := email.Address{Name: "Fixed", Address: "fixed@openjdk.org"}
	tests := []struct {
		name    string
		cfg     MailingListConfig
		wantErr bool
	}{
		{"author only", MailingListConfig{List: &fakeList{}, Author: &author}, false},
		{"domains only", MailingListConfig{List: &fakeList{}, AllowedDomains: `openjdk\.org`}, false},
		{"both author and domains", MailingListConfig{List: &fakeList{}, Author: &author, AllowedDomains: `openjdk\.org`}, true},
		{"neither author nor domains", MailingListConfig{List: &fakeList{}}, true},
		{"bad domains pattern", MailingListConfig{List: &fakeList{}, AllowedDomains: `openjdk\.(org`}, true},
		{"no list", MailingListConfig{AllowedDomains: `openjdk\.org`}, true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewMailingListUpdater(tc.cfg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("NewMailingListUpdater error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestHandleCommitsDefaultModeSkipsForge(t *testing.T) {
	t.Parallel()

	list := &fakeList{}
	repo := &fakeRepo{}
	u := newTestUpdater(t, MailingListConfig{List: list, Mode: ModeAll})

	commits := []vcs.Commit{
		testCommit("0123456789abcdef", "First"),
		testCommit("fedcba9876543210", "Second"),
	}
	if err := u.HandleCommits(context.Background(), repo, commits, "master"); err != nil {
		t.Fatalf("HandleCommits: %v", err)
	}

	if repo.lookups != 0 {
		t.Fatalf("forge consulted %d times in default mode, want 0", repo.lookups)
	}
	sent := list.sent()
	if len(sent) != 1 {
		t.Fatalf("posted %d emails, want 1 digest", len(sent))
	}
	digest := sent[0]
	if digest.Subject != "git: skara: 2 new changesets" {
		t.Fatalf("digest subject = %q", digest.Subject)
	}
	if digest.InReplyTo != "" {
		t.Fatalf("digest unexpectedly threaded under %q", digest.InReplyTo)
	}
	for _, hash := range []string{"01234567", "fedcba98"} {
		if !strings.Contains(digest.Body, "Changeset: "+hash) {
			t.Fatalf("digest body missing changeset %s:\n%s", hash, digest.Body)
		}
	}
	first := strings.Index(digest.Body, "First")
	second := strings.Index(digest.Body, "Second")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("digest blocks out of push order:\n%s", digest.Body)
	}
}

func TestHandleCommitsPROnlyAllCorrelated(t *testing.T) {
	t.Parallel()

	list := &fakeList{conversations: []mailinglist.Conversation{
		rfrConversation("<rfr-1@openjdk.org>", "RFR: 8241234: Fix the frobnicator", "https://git.example.org/pr/1"),
		rfrConversation("<rfr-2@openjdk.org>", "RFR: 8245678: Polish the widget", "https://git.example.org/pr/2"),
	}}
	repo := &fakeRepo{prs: map[string][]forge.PullRequest{
		markerFor("cafebabe01"): {{WebURL: "https://git.example.org/pr/1"}},
		markerFor("cafebabe02"): {{WebURL: "https://git.example.org/pr/2"}},
	}}
	u := newTestUpdater(t, MailingListConfig{List: list, Mode: ModePROnly})

	commits := []vcs.Commit{
		testCommit("cafebabe01", "8241234: Fix the frobnicator"),
		testCommit("cafebabe02", "8245678: Polish the widget"),
	}
	if err := u.HandleCommits(context.Background(), repo, commits, "master"); err != nil {
		t.Fatalf("HandleCommits: %v", err)
	}

	sent := list.sent()
	if len(sent) != 2 {
		t.Fatalf("posted %d emails, want 2 replies", len(sent))
	}
	wantSubjects := []string{
		"Re: [Integrated] RFR: 8241234: Fix the frobnicator",
		"Re: [Integrated] RFR: 8245678: Polish the widget",
	}
	wantParents := []string{"<rfr-1@openjdk.org>", "<rfr-2@openjdk.org>"}
	for i, e := range sent {
		if e.Subject != wantSubjects[i] {
			t.Fatalf("reply %d subject = %q, want %q", i, e.Subject, wantSubjects[i])
		}
		if e.InReplyTo != wantParents[i] {
			t.Fatalf("reply %d In-Reply-To = %q, want %q", i, e.InReplyTo, wantParents[i])
		}
		if n := len(e.References); n == 0 || e.References[n-1] != wantParents[i] {
			t.Fatalf("reply %d references = %v, want chain ending in %q", i, e.References, wantParents[i])
		}
	}
}

func TestHandleCommitsPRModeDigestsLeftovers(t *testing.T) {
	t.Parallel()

	list := &fakeList{conversations: []mailinglist.Conversation{
		rfrConversation("<rfr-1@openjdk.org>", "RFR: 8241234: Fix the frobnicator", "https://git.example.org/pr/1"),
	}}
	repo := &fakeRepo{prs: map[string][]forge.PullRequest{
		markerFor("cafebabe02"): {{WebURL: "https://git.example.org/pr/1"}},
	}}
	u := newTestUpdater(t, MailingListConfig{List: list, Mode: ModePR})

	commits := []vcs.Commit{
		testCommit("cafebabe01", "First leftover"),
		testCommit("cafebabe02", "8241234: Fix the frobnicator"),
		testCommit("cafebabe03", "Second leftover"),
	}
	if err := u.HandleCommits(context.Background(), repo, commits, "master"); err != nil {
		t.Fatalf("HandleCommits: %v", err)
	}

	sent := list.sent()
	if len(sent) != 2 {
		t.Fatalf("posted %d emails, want 1 reply + 1 digest", len(sent))
	}
	reply, digest := sent[0], sent[1]
	if reply.InReplyTo != "<rfr-1@openjdk.org>" {
		t.Fatalf("reply In-Reply-To = %q", reply.InReplyTo)
	}
	if digest.Subject != "git: skara: 2 new changesets" {
		t.Fatalf("digest subject = %q", digest.Subject)
	}
	if strings.Contains(digest.Body, "8241234") {
		t.Fatalf("correlated commit leaked into digest:\n%s", digest.Body)
	}
	first := strings.Index(digest.Body, "First leftover")
	second := strings.Index(digest.Body, "Second leftover")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("digest leftovers missing or out of order:\n%s", digest.Body)
	}
}

func TestHandleCommitsAmbiguousPullRequests(t *testing.T) {
	t.Parallel()

	list := &fakeList{conversations: []mailinglist.Conversation{
		rfrConversation("<rfr-1@openjdk.org>", "RFR: 8241234: Fix the frobnicator", "https://git.example.org/pr/1"),
	}}
	repo := &fakeRepo{prs: map[string][]forge.PullRequest{
		markerFor("cafebabe01"): {
			{WebURL: "https://git.example.org/pr/1"},
			{WebURL: "https://git.example.org/pr/9"},
		},
	}}
	u := newTestUpdater(t, MailingListConfig{List: list, Mode: ModePR})

	commits := []vcs.Commit{testCommit("cafebabe01", "8241234: Fix the frobnicator")}
	if err := u.HandleCommits(context.Background(), repo, commits, "master"); err != nil {
		t.Fatalf("HandleCommits: %v", err)
	}

	sent := list.sent()
	if len(sent) != 1 {
		t.Fatalf("posted %d emails, want the digest only", len(sent))
	}
	if sent[0].InReplyTo != "" {
		t.Fatalf("ambiguous commit was threaded under %q", sent[0].InReplyTo)
	}
}

func TestHandleCommitsAmbiguousReviewThreads(t *testing.T) {
	t.Parallel()

	// Two distinct review threads both carry the pull request link.
	list := &fakeList{conversations: []mailinglist.Conversation{
		rfrConversation("<rfr-1@openjdk.org>", "RFR: 8241234: Fix the frobnicator", "https://git.example.org/pr/1"),
		rfrConversation("<rfr-2@openjdk.org>", "RFR: 8241234: Fix the frobnicator v2", "https://git.example.org/pr/1"),
	}}
	repo := &fakeRepo{prs: map[string][]forge.PullRequest{
		markerFor("cafebabe01"): {{WebURL: "https://git.example.org/pr/1"}},
	}}
	u := newTestUpdater(t, MailingListConfig{List: list, Mode: ModePROnly})

	commits := []vcs.Commit{testCommit("cafebabe01", "8241234: Fix the frobnicator")}
	if err := u.HandleCommits(context.Background(), repo, commits, "master"); err != nil {
		t.Fatalf("HandleCommits: %v", err)
	}
	if sent := list.sent(); len(sent) != 0 {
		t.Fatalf("posted %d emails for an ambiguous thread match, want 0", len(sent))
	}
}

func TestHandleCommitsIgnoresNonReviewThreads(t *testing.T) {
	t.Parallel()

	// The link appears in a thread without the review prefix; it must not count.
	list := &fakeList{conversations: []mailinglist.Conversation{
		rfrConversation("<chat-1@openjdk.org>", "Question about the frobnicator", "https://git.example.org/pr/1"),
	}}
	repo := &fakeRepo{prs: map[string][]forge.PullRequest{
		markerFor("cafebabe01"): {{WebURL: "https://git.example.org/pr/1"}},
	}}
	u := newTestUpdater(t, MailingListConfig{List: list, Mode: ModePROnly})

	commits := []vcs.Commit{testCommit("cafebabe01", "8241234: Fix the frobnicator")}
	if err := u.HandleCommits(context.Background(), repo, commits, "master"); err != nil {
		t.Fatalf("HandleCommits: %v", err)
	}
	if sent := list.sent(); len(sent) != 0 {
		t.Fatalf("posted %d emails, want 0 when only non-review threads match", len(sent))
	}
}

func TestBatchAuthorDomainMatch(t *testing.T) {
	t.Parallel()

	u := newTestUpdater(t, MailingListConfig{List: &fakeList{}, AllowedDomains: `openjdk\.org`})

	match := testCommit("cafebabe01", "First")
	match.Committer = vcs.Author{Name: "Robin", Email: "robin@openjdk.org"}
	mismatch := testCommit("cafebabe02", "Second")
	mismatch.Committer = vcs.Author{Name: "Drive-by", Email: "someone@example.com"}
	subdomain := testCommit("cafebabe03", "Third")
	subdomain.Committer = vcs.Author{Name: "Sub", Email: "sub@mail.openjdk.org"}

	tests := []struct {
		name    string
		commits []vcs.Commit
		want    email.Address
	}{
		{"last committer in allowed domain", []vcs.Commit{mismatch, match}, email.Address{Name: "Robin", Address: "robin@openjdk.org"}},
		{"last committer outside allowed domain", []vcs.Commit{match, mismatch}, testSender},
		{"full match required, not substring", []vcs.Commit{subdomain}, testSender},
		{"empty batch falls back to sender", nil, testSender},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := u.batchAuthor(tc.commits); got != tc.want {
				t.Fatalf("batchAuthor = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBatchAuthorFixedOverride(t *testing.T) {
	t.Parallel()

	fixed := email.Address{Name: "Announce", Address: "announce@openjdk.org"}
	u := newTestUpdater(t, MailingListConfig{List: &fakeList{}, Author: &fixed})

	c := testCommit("cafebabe01", "First")
	c.Committer = vcs.Author{Name: "Robin", Email: "robin@openjdk.org"}
	if got := u.batchAuthor([]vcs.Commit{c}); got != fixed {
		t.Fatalf("batchAuthor = %v, want fixed identity %v", got, fixed)
	}
}

func TestHandleTagCommits(t *testing.T) {
	t.Parallel()

	list := &fakeList{}
	u := newTestUpdater(t, MailingListConfig{List: list, Mode: ModeAll})

	commits := []vcs.Commit{
		testCommit("0123456789abcdef", "First change"),
		testCommit("fedcba9876543210", "Second change"),
	}
	tag := vcs.Tag{Name: "jdk-15+5", Label: "jdk-15+5"}
	if err := u.HandleTagCommits(context.Background(), &fakeRepo{}, commits, tag); err != nil {
		t.Fatalf("HandleTagCommits: %v", err)
	}

	sent := list.sent()
	if len(sent) != 1 {
		t.Fatalf("posted %d emails, want 1", len(sent))
	}
	e := sent[0]
	if want := "git: skara: Added tag jdk-15+5 for changeset fedcba98"; e.Subject != want {
		t.Fatalf("subject = %q, want %q", e.Subject, want)
	}
	wantBody := "The following commits are included in jdk-15+5\n" +
		sectionBanner + "\n" +
		"01234567: First change\nfedcba98: Second change\n"
	if e.Body != wantBody {
		t.Fatalf("body mismatch:\n got: %q\nwant: %q", e.Body, wantBody)
	}
}

func TestHandleTagCommitsEmptyBatch(t *testing.T) {
	t.Parallel()

	list := &fakeList{}
	u := newTestUpdater(t, MailingListConfig{List: list, Mode: ModeAll})
	if err := u.HandleTagCommits(context.Background(), &fakeRepo{}, nil, vcs.Tag{Label: "jdk-15+5"}); err != nil {
		t.Fatalf("HandleTagCommits: %v", err)
	}
	if sent := list.sent(); len(sent) != 0 {
		t.Fatalf("posted %d emails for an empty tag batch, want 0", len(sent))
	}
}

func TestHandleNewBranch(t *testing.T) {
	t.Parallel()

	list := &fakeList{}
	u := newTestUpdater(t, MailingListConfig{List: list, Mode: ModeAll})

	commits := []vcs.Commit{testCommit("0123456789abcdef", "Unique change")}
	if err := u.HandleNewBranch(context.Background(), &fakeRepo{}, commits, "master", "feature"); err != nil {
		t.Fatalf("HandleNewBranch: %v", err)
	}

	sent := list.sent()
	if len(sent) != 1 {
		t.Fatalf("posted %d emails, want 1", len(sent))
	}
	e := sent[0]
	if want := "git: skara: created branch feature based on the branch master containing 1 unique commit"; e.Subject != want {
		t.Fatalf("subject = %q, want %q", e.Subject, want)
	}
	if !strings.Contains(e.Body, "unique to the feature branch") ||
		!strings.Contains(e.Body, "01234567: Unique change") {
		t.Fatalf("body mismatch:\n%s", e.Body)
	}
}

func TestHandleNewBranchIdentical(t *testing.T) {
	t.Parallel()

	list := &fakeList{}
	u := newTestUpdater(t, MailingListConfig{List: list, Mode: ModeAll})
	if err := u.HandleNewBranch(context.Background(), &fakeRepo{}, nil, "master", "feature"); err != nil {
		t.Fatalf("HandleNewBranch: %v", err)
	}

	sent := list.sent()
	if len(sent) != 1 {
		t.Fatalf("posted %d emails, want 1", len(sent))
	}
	e := sent[0]
	if want := "The new branch feature is currently identical to the master branch.\n"; e.Body != want {
		t.Fatalf("body = %q, want %q", e.Body, want)
	}
	if e.Author != testSender {
		t.Fatalf("author = %v, want sender %v for an empty batch", e.Author, testSender)
	}
}

func TestPROnlySuppressesTagAndBranchNotices(t *testing.T) {
	t.Parallel()

	list := &fakeList{}
	u := newTestUpdater(t, MailingListConfig{List: list, Mode: ModePROnly})

	commits := []vcs.Commit{testCommit("cafebabe01", "First")}
	if err := u.HandleTagCommits(context.Background(), &fakeRepo{}, commits, vcs.Tag{Label: "jdk-15+5"}); err != nil {
		t.Fatalf("HandleTagCommits: %v", err)
	}
	if err := u.HandleNewBranch(context.Background(), &fakeRepo{}, commits, "master", "feature"); err != nil {
		t.Fatalf("HandleNewBranch: %v", err)
	}
	if sent := list.sent(); len(sent) != 0 {
		t.Fatalf("posted %d emails in pr-only mode, want 0", len(sent))
	}
}

func TestHandleCommitsAppliesCustomHeaders(t *testing.T) {
	t.Parallel()

	list := &fakeList{}
	u := newTestUpdater(t, MailingListConfig{
		List:    list,
		Mode:    ModeAll,
		Headers: map[string]string{"Approved": "yes"},
	})

	commits := []vcs.Commit{testCommit("cafebabe01", "First")}
	if err := u.HandleCommits(context.Background(), &fakeRepo{}, commits, "master"); err != nil {
		t.Fatalf("HandleCommits: %v", err)
	}
	sent := list.sent()
	if len(sent) != 1 || sent[0].Headers["Approved"] != "yes" {
		t.Fatalf("custom headers not carried: %+v", sent)
	}
}
