package lastcommit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const githubAPIBase = "https://api.github.com"

// Commit is the site freshness widget payload: when the site repo was
// last touched, and a link to that commit.
type Commit struct {
	Date string `json:"date"`
	URL  string `json:"url"`
}

// Client fetches the latest commit of a repo over the GitHub REST api,
// unauthenticated. The rate limit is tight, callers cache.
type Client struct {
	apiBase    string
	owner      string
	repo       string
	httpClient *http.Client
}

func NewClient(apiBase, owner, repo string, httpClient *http.Client) *Client {
	if apiBase == "" {
		apiBase = githubAPIBase
	}
	return &Client{
		apiBase:    apiBase,
		owner:      owner,
		repo:       repo,
		httpClient: httpClient,
	}
}

type commitsResponse []struct {
	HtmlURL string `json:"html_url"`
	Commit  struct {
		Committer struct {
			Date time.Time `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
}

func (c *Client) LatestCommit(ctx context.Context) (Commit, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=1", c.apiBase, c.owner, c.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Commit{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Commit{}, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	// rate limiting comes back as 403 with a message body
	if resp.StatusCode != http.StatusOK {
		return Commit{}, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var commits commitsResponse
	if err := json.NewDecoder(resp.Body).Decode(&commits); err != nil {
		return Commit{}, fmt.Errorf("decode response: %w", err)
	}
	if len(commits) == 0 {
		return Commit{}, errors.New("repo has no commits")
	}

	return Commit{
		Date: commits[0].Commit.Committer.Date.Format("2006-01-02"),
		URL:  commits[0].HtmlURL,
	}, nil
}
