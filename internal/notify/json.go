package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nick-arm/skara/internal/forge"
	"github.com/nick-arm/skara/internal/vcs"
)

// JSONUpdater writes one machine-readable status file per change batch into
// a folder, stamped with a fixed version/build pair. Files are written to a
// temp name and renamed so readers never observe a partial file.
type JSONUpdater struct {
	folder  string
	version string
	build   string
}

func NewJSONUpdater(folder, version, build string) *JSONUpdater {
	return &JSONUpdater{folder: folder, version: version, build: build}
}

type jsonIdentity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type jsonCommit struct {
	Hash      string       `json:"hash"`
	Author    jsonIdentity `json:"author"`
	Committer jsonIdentity `json:"committer"`
	Date      string       `json:"date"`
	URL       string       `json:"url"`
	Message   []string     `json:"message"`
}

type jsonStatus struct {
	Version string       `json:"version"`
	Build   string       `json:"build"`
	Branch  string       `json:"branch,omitempty"`
	Parent  string       `json:"parent,omitempty"`
	Tag     string       `json:"tag,omitempty"`
	Commits []jsonCommit `json:"commits"`
}

func (j *JSONUpdater) statusFor(repo forge.HostedRepository, commits []vcs.Commit) jsonStatus {
	status := jsonStatus{
		Version: j.version,
		Build:   j.build,
		Commits: make([]jsonCommit, 0, len(commits)),
	}
	for _, c := range commits {
		status.Commits = append(status.Commits, jsonCommit{
			Hash:      c.Hash.String(),
			Author:    jsonIdentity{Name: c.Author.Name, Email: c.Author.Email},
			Committer: jsonIdentity{Name: c.Committer.Name, Email: c.Committer.Email},
			Date:      c.Date.UTC().Format(time.RFC3339),
			URL:       repo.WebURL(c.Hash),
			Message:   c.Message,
		})
	}
	return status
}

func (j *JSONUpdater) write(status jsonStatus) error {
	if err := os.MkdirAll(j.folder, 0o755); err != nil {
		return fmt.Errorf("creating status folder: %w", err)
	}

	b, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}

	suffix := "empty"
	if n := len(status.Commits); n > 0 {
		suffix = vcs.Hash(status.Commits[n-1].Hash).Abbreviate()
	}
	name := fmt.Sprintf("%d-%s.json", time.Now().UnixNano(), suffix)
	tmp := filepath.Join(j.folder, "."+name+".tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(j.folder, name))
}

func (j *JSONUpdater) HandleCommits(_ context.Context, repo forge.HostedRepository, commits []vcs.Commit, branch vcs.Branch) error {
	status := j.statusFor(repo, commits)
	status.Branch = branch.String()
	return j.write(status)
}

func (j *JSONUpdater) HandleTagCommits(_ context.Context, repo forge.HostedRepository, commits []vcs.Commit, tag vcs.Tag) error {
	status := j.statusFor(repo, commits)
	status.Tag = tag.Label
	return j.write(status)
}

func (j *JSONUpdater) HandleNewBranch(_ context.Context, repo forge.HostedRepository, commits []vcs.Commit, parent, branch vcs.Branch) error {
	status := j.statusFor(repo, commits)
	status.Branch = branch.String()
	status.Parent = parent.String()
	return j.write(status)
}
