package notify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nick-arm/skara/internal/forge"
	"github.com/nick-arm/skara/internal/vcs"
)

// ErrMissingPath reports a patch whose expected side has no path for its
// status. This is a contract violation in the upstream diff, not a normal
// case, so rendering the commit fails instead of emitting malformed text.
var ErrMissingPath = errors.New("patch is missing the path for its status")

const sectionBanner = "========================================================"

// Dates in changeset blocks are always rendered at UTC offset zero,
// whatever timezone the commit carries.
const changesetDateFormat = "2006-01-02 15:04:05 +0000"

func patchToLine(p vcs.Patch) (string, error) {
	switch p.Status {
	case vcs.StatusAdded:
		if p.Target == "" {
			return "", fmt.Errorf("%w: added patch has no target", ErrMissingPath)
		}
		return "+ " + p.Target, nil
	case vcs.StatusDeleted:
		if p.Source == "" {
			return "", fmt.Errorf("%w: deleted patch has no source", ErrMissingPath)
		}
		return "- " + p.Source, nil
	case vcs.StatusModified:
		if p.Target == "" {
			return "", fmt.Errorf("%w: modified patch has no target", ErrMissingPath)
		}
		return "! " + p.Target, nil
	default:
		if p.Target == "" {
			return "", fmt.Errorf("%w: renamed patch has no target", ErrMissingPath)
		}
		return "= " + p.Target, nil
	}
}

// commitToText renders one commit as a changeset block: header lines, blank
// line, full message, blank line, one marker line per patch across every
// parent diff. The block ends with a newline.
func commitToText(repo forge.HostedRepository, c vcs.Commit) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Changeset: %s\n", c.Hash.Abbreviate())
	fmt.Fprintf(&b, "Author:    %s\n", c.Author)
	if c.Author != c.Committer {
		fmt.Fprintf(&b, "Committer: %s\n", c.Committer)
	}
	fmt.Fprintf(&b, "Date:      %s\n", c.Date.UTC().Format(changesetDateFormat))
	fmt.Fprintf(&b, "URL:       %s\n", repo.WebURL(c.Hash))
	b.WriteString("\n")
	b.WriteString(strings.Join(c.Message, "\n"))
	b.WriteString("\n\n")

	for _, diff := range c.ParentDiffs {
		for _, patch := range diff.Patches {
			line, err := patchToLine(patch)
			if err != nil {
				return "", fmt.Errorf("commit %s: %w", c.Hash, err)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return b.String(), nil
}

func firstMessageLine(c vcs.Commit) string {
	if len(c.Message) == 0 {
		return ""
	}
	return c.Message[0]
}

func commitsSubject(repo forge.HostedRepository, commits []vcs.Commit, branch vcs.Branch, includeBranch bool) string {
	var b strings.Builder
	b.WriteString(repo.TypeShortName())
	b.WriteString(": ")
	b.WriteString(repo.Name())
	b.WriteString(": ")
	if includeBranch {
		b.WriteString(branch.String())
		b.WriteString(": ")
	}
	if len(commits) > 1 {
		fmt.Fprintf(&b, "%d new changesets", len(commits))
	} else {
		b.WriteString(firstMessageLine(commits[0]))
	}
	return b.String()
}

func tagSubject(repo forge.HostedRepository, hash vcs.Hash, tag vcs.Tag) string {
	return fmt.Sprintf("%s: %s: Added tag %s for changeset %s",
		repo.TypeShortName(), repo.Name(), tag.Label, hash.Abbreviate())
}

func newBranchSubject(repo forge.HostedRepository, commits int, parent, branch vcs.Branch) string {
	subject := fmt.Sprintf("%s: %s: created branch %s based on the branch %s containing %d unique commit",
		repo.TypeShortName(), repo.Name(), branch, parent, commits)
	if commits != 1 {
		subject += "s"
	}
	return subject
}

// commitListing renders the one-line-per-commit body used by tag digests and
// new-branch notices.
func commitListing(commits []vcs.Commit) string {
	var b strings.Builder
	for _, c := range commits {
		b.WriteString(c.Hash.Abbreviate())
		if len(c.Message) > 0 {
			b.WriteString(": ")
			b.WriteString(c.Message[0])
		}
		b.WriteString("\n")
	}
	return b.String()
}
