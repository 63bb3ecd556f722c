package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nick-arm/skara/internal/vcs"
)

// EventKind discriminates the three change shapes the diffing engine
// reports.
type EventKind string

const (
	EventCommits   EventKind = "commits"
	EventTag       EventKind = "tag"
	EventNewBranch EventKind = "branch"
)

// Event is one change notification produced by the external diffing engine
// and dropped into the spool directory as a JSON file.
type Event struct {
	Repository string
	Kind       EventKind
	Branch     vcs.Branch
	Parent     vcs.Branch
	Tag        vcs.Tag
	Commits    []vcs.Commit
}

type eventJSON struct {
	Repository string       `json:"repository"`
	Type       string       `json:"type"`
	Branch     string       `json:"branch,omitempty"`
	Parent     string       `json:"parent,omitempty"`
	Tag        *tagJSON     `json:"tag,omitempty"`
	Commits    []commitJSON `json:"commits"`
}

type tagJSON struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

type identityJSON struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type commitJSON struct {
	Hash      string       `json:"hash"`
	Author    identityJSON `json:"author"`
	Committer identityJSON `json:"committer"`
	Date      time.Time    `json:"date"`
	Message   []string     `json:"message"`
	Diffs     []diffJSON   `json:"diffs,omitempty"`
}

type diffJSON struct {
	Patches []patchJSON `json:"patches"`
}

type patchJSON struct {
	Status string `json:"status"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
}

// ParseEvent strictly decodes one spool event. Unknown keys and unknown
// event types are rejected so a schema drift between the diffing engine and
// the notifier surfaces immediately instead of dropping fields.
func ParseEvent(b []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var raw eventJSON
	if err := dec.Decode(&raw); err != nil {
		return Event{}, err
	}

	if raw.Repository == "" {
		return Event{}, fmt.Errorf("event has no repository")
	}

	ev := Event{
		Repository: raw.Repository,
		Kind:       EventKind(raw.Type),
		Branch:     vcs.Branch(raw.Branch),
		Parent:     vcs.Branch(raw.Parent),
	}

	switch ev.Kind {
	case EventCommits:
		if raw.Branch == "" {
			return Event{}, fmt.Errorf("commits event has no branch")
		}
	case EventTag:
		if raw.Tag == nil {
			return Event{}, fmt.Errorf("tag event has no tag")
		}
		ev.Tag = vcs.Tag{Name: raw.Tag.Name, Label: raw.Tag.Label}
	case EventNewBranch:
		if raw.Branch == "" || raw.Parent == "" {
			return Event{}, fmt.Errorf("branch event needs both branch and parent")
		}
	default:
		return Event{}, fmt.Errorf("unknown event type %q", raw.Type)
	}

	for _, rc := range raw.Commits {
		c, err := parseCommit(rc)
		if err != nil {
			return Event{}, err
		}
		ev.Commits = append(ev.Commits, c)
	}
	return ev, nil
}

func parseCommit(raw commitJSON) (vcs.Commit, error) {
	if raw.Hash == "" {
		return vcs.Commit{}, fmt.Errorf("commit has no hash")
	}
	c := vcs.Commit{
		Hash:      vcs.Hash(raw.Hash),
		Author:    vcs.Author{Name: raw.Author.Name, Email: raw.Author.Email},
		Committer: vcs.Author{Name: raw.Committer.Name, Email: raw.Committer.Email},
		Date:      raw.Date,
		Message:   raw.Message,
	}
	for _, rd := range raw.Diffs {
		var d vcs.Diff
		for _, rp := range rd.Patches {
			status, err := vcs.ParseStatus(rp.Status)
			if err != nil {
				return vcs.Commit{}, fmt.Errorf("commit %s: %w", raw.Hash, err)
			}
			d.Patches = append(d.Patches, vcs.Patch{Status: status, Source: rp.Source, Target: rp.Target})
		}
		c.ParentDiffs = append(c.ParentDiffs, d)
	}
	return c, nil
}
