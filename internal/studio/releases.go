package studio

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tt-studio/console/internal/model"
)

// GitHubAPIURL is the public GitHub REST API origin.
const GitHubAPIURL = "https://api.github.com"

const routeReleases = "/repos/{owner}/{repo}/releases"

// Releases reads published releases from the GitHub API. It is a separate
// client so backend middleware such as the browser id header never reaches
// GitHub.
type Releases struct {
	client *Client
}

func NewReleases(base string, opts ...Option) (*Releases, error) {
	if base == "" {
		base = GitHubAPIURL
	}
	c, err := New(base, opts...)
	if err != nil {
		return nil, err
	}
	return &Releases{client: c}, nil
}

// List returns releases of repo ("owner/name"), newest first. Drafts are
// dropped.
func (r *Releases) List(ctx context.Context, repo string, limit int) ([]model.Release, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("invalid repository %q, want owner/name", repo)
	}
	query := url.Values{}
	if limit > 0 {
		query.Set("per_page", fmt.Sprint(limit))
	}

	var releases []model.Release
	if err := r.client.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/repos/%s/%s/releases", url.PathEscape(owner), url.PathEscape(name)),
		route:  routeReleases,
		query:  query,
		accept: "application/vnd.github+json",
	}, &releases); err != nil {
		return nil, err
	}

	published := releases[:0]
	for _, rel := range releases {
		if !rel.Draft {
			published = append(published, rel)
		}
	}
	return published, nil
}

// Latest returns the newest non-prerelease release, or false if none exist.
func (r *Releases) Latest(ctx context.Context, repo string) (model.Release, bool, error) {
	releases, err := r.List(ctx, repo, 20)
	if err != nil {
		return model.Release{}, false, err
	}
	for _, rel := range releases {
		if !rel.Prerelease {
			return rel, true, nil
		}
	}
	return model.Release{}, false, nil
}
