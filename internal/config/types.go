// Package config declares and loads the notifier's declarative
// configuration. Files may be JSON or YAML; YAML is coerced to JSON so both
// formats share one strict decoder.
package config

type Config struct {
	Log   LogConfig   `json:"log"`
	Spool SpoolConfig `json:"spool"`
	Email EmailConfig `json:"email"`
	Forge ForgeConfig `json:"forge"`

	// Repositories maps a repository's short name to its notification
	// targets. A repository with no targets at all is valid but inert.
	Repositories map[string]RepositoryConfig `json:"repositories"`
}

type LogConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SpoolConfig locates the directory the external diffing engine drops change
// events into. Sweep is a cron spec for the periodic rescan that backs up the
// filesystem watcher; it defaults to once a minute.
type SpoolConfig struct {
	Dir   string `json:"dir"`
	Sweep string `json:"sweep,omitempty"`
}

// EmailConfig holds the shared mailing-list transport settings.
//
// Interval is a Go duration string bounding how fast messages are submitted
// to the list server; it defaults to 1s.
type EmailConfig struct {
	SMTP     string `json:"smtp"`
	Sender   string `json:"sender"`
	Archive  string `json:"archive"`
	Interval string `json:"interval,omitempty"`
}

type ForgeConfig struct {
	API   string `json:"api,omitempty"`
	Token string `json:"token,omitempty"`
}

type RepositoryConfig struct {
	// URL is the repository's browsable web URL on the forge.
	URL string `json:"url"`

	// Type is the repository type short name; defaults to "git".
	Type string `json:"type,omitempty"`

	// Branches is a pattern selecting which branches generate
	// notifications; defaults to "^master$".
	Branches string `json:"branches,omitempty"`

	// BranchNames includes the branch name in combined-digest subjects.
	BranchNames bool `json:"branchnames,omitempty"`

	JSON         *JSONTarget         `json:"json,omitempty"`
	MailingLists []MailingListTarget `json:"mailinglists,omitempty"`
}

// JSONTarget declares one JSON status-file pipeline.
type JSONTarget struct {
	Folder  string `json:"folder"`
	Version string `json:"version"`
	Build   string `json:"build"`
}

// MailingListTarget declares one mailing-list pipeline.
//
// Exactly one of Author and Domains must be set: either every notification
// carries the fixed author identity, or the last committer is used when its
// email domain fully matches the Domains pattern (falling back to the shared
// sender otherwise).
type MailingListTarget struct {
	Recipient string `json:"recipient"`

	// Mode is "" (all), "pr" or "pr-only".
	Mode string `json:"mode,omitempty"`

	Author  string            `json:"author,omitempty"`
	Domains string            `json:"domains,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}
