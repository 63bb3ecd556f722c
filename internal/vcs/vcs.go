// Package vcs holds the read-only value types describing repository state
// as handed to the notifier by the external diffing engine: commits, their
// per-parent diffs, branches and tags.
package vcs

import (
	"fmt"
	"time"
)

// Hash is a full commit hash in hex form.
type Hash string

func (h Hash) String() string { return string(h) }

// Abbreviate returns the short changeset notation used in outbound mails.
func (h Hash) Abbreviate() string {
	if len(h) <= 8 {
		return string(h)
	}
	return string(h[:8])
}

// Author is a name plus email identity, used for both commit authors and
// committers.
type Author struct {
	Name  string
	Email string
}

func (a Author) String() string {
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// Status classifies a single file-level change within a diff.
type Status int

const (
	// StatusUnchanged covers everything that is neither an add, delete nor a
	// content modification; in practice this means pure renames.
	StatusUnchanged Status = iota
	StatusAdded
	StatusDeleted
	StatusModified
)

func (s Status) String() string {
	switch s {
	case StatusAdded:
		return "added"
	case StatusDeleted:
		return "deleted"
	case StatusModified:
		return "modified"
	default:
		return "unchanged"
	}
}

// ParseStatus maps the wire form used in spool events back to a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "added":
		return StatusAdded, nil
	case "deleted":
		return StatusDeleted, nil
	case "modified":
		return StatusModified, nil
	case "unchanged":
		return StatusUnchanged, nil
	}
	return StatusUnchanged, fmt.Errorf("unknown patch status %q", s)
}

// Patch is one file-level change. Source and Target are repository-relative
// paths; whether each side is present depends on the status (an added file
// has no source, a deleted file has no target). An absent path is the empty
// string.
type Patch struct {
	Status Status
	Source string
	Target string
}

// Diff is the set of patches against one parent of a commit.
type Diff struct {
	Patches []Patch
}

// Commit is an immutable commit record. Message holds the commit message as
// ordered lines; ParentDiffs holds one diff per parent, in parent order.
type Commit struct {
	Hash        Hash
	Author      Author
	Committer   Author
	Date        time.Time
	Message     []string
	ParentDiffs []Diff
}

// Branch is a branch name.
type Branch string

func (b Branch) String() string { return string(b) }

// Tag is a repository tag. Label is the display form used in notifications,
// which may differ from the raw name the VCS knows the tag by.
type Tag struct {
	Name  string
	Label string
}

func (t Tag) String() string { return t.Label }
