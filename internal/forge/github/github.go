// Package github implements the forge interface against the GitHub REST
// API with a plain HTTP client.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nick-arm/skara/internal/forge"
	"github.com/nick-arm/skara/internal/vcs"
	logx "github.com/nick-arm/skara/pkg/logx"
)

const defaultAPI = "https://api.github.com"

type Config struct {
	// API is the REST endpoint base; defaults to the public github.com API.
	API   string
	Token string

	// URL is the repository's browsable URL, e.g.
	// "https://github.com/openjdk/skara".
	URL string

	// Name is the short name used in notification subjects; defaults to the
	// repository part of URL.
	Name string

	// Type is the repository type short name; defaults to "git".
	Type string

	Log logx.Logger
}

// Repository is one GitHub repository. Safe for concurrent use.
type Repository struct {
	client    *http.Client
	api       string
	token     string
	owner     string
	repo      string
	web       string
	name      string
	typeShort string
	log       logx.Logger
}

func NewRepository(cfg Config) (*Repository, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("repository url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("repository url %q: expected <host>/<owner>/<name>", cfg.URL)
	}

	api := strings.TrimRight(cfg.API, "/")
	if api == "" {
		api = defaultAPI
	}
	name := cfg.Name
	if name == "" {
		name = parts[1]
	}
	typeShort := cfg.Type
	if typeShort == "" {
		typeShort = "git"
	}

	return &Repository{
		client:    &http.Client{Timeout: 30 * time.Second},
		api:       api,
		token:     cfg.Token,
		owner:     parts[0],
		repo:      parts[1],
		web:       strings.TrimRight(cfg.URL, "/"),
		name:      name,
		typeShort: typeShort,
		log:       cfg.Log,
	}, nil
}

func (r *Repository) Name() string          { return r.name }
func (r *Repository) TypeShortName() string { return r.typeShort }

func (r *Repository) WebURL(h vcs.Hash) string {
	return r.web + "/commit/" + h.String()
}

type pullJSON struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

type commentJSON struct {
	Body string `json:"body"`
}

// PullRequestsWithComment scans the repository's pull requests (open and
// closed) for a comment whose body is exactly the given text. The issue
// comment listing is paged; per_page=100 keeps the round trips down.
func (r *Repository) PullRequestsWithComment(ctx context.Context, body string) ([]forge.PullRequest, error) {
	want := strings.TrimSpace(body)

	var matches []forge.PullRequest
	for page := 1; ; page++ {
		var pulls []pullJSON
		path := fmt.Sprintf("/repos/%s/%s/pulls?state=all&per_page=100&page=%d", r.owner, r.repo, page)
		if err := r.get(ctx, path, &pulls); err != nil {
			return nil, err
		}
		if len(pulls) == 0 {
			break
		}

		for _, pr := range pulls {
			ok, err := r.hasComment(ctx, pr.Number, want)
			if err != nil {
				return nil, err
			}
			if ok {
				matches = append(matches, forge.PullRequest{WebURL: pr.HTMLURL})
			}
		}
		if len(pulls) < 100 {
			break
		}
	}
	return matches, nil
}

func (r *Repository) hasComment(ctx context.Context, number int, want string) (bool, error) {
	for page := 1; ; page++ {
		var comments []commentJSON
		path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments?per_page=100&page=%d", r.owner, r.repo, number, page)
		if err := r.get(ctx, path, &comments); err != nil {
			return false, err
		}
		for _, c := range comments {
			if strings.TrimSpace(c.Body) == want {
				return true, nil
			}
		}
		if len(comments) < 100 {
			return false, nil
		}
	}
}

func (r *Repository) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.api+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
