package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"summarist/internal/domain"

	"github.com/google/go-github/v66/github"
)

const githubMaxPerPage = 100

// GitHub lists pull requests through the issue search API and fetches their
// unified diffs.
type GitHub struct {
	client *github.Client
	log    *slog.Logger
}

// NewGitHub builds a connector authenticated with token. baseURL is optional and
// targets GitHub Enterprise or a test server.
func NewGitHub(token string, baseURL string, log *slog.Logger) (*GitHub, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.NewError(domain.KindAuthentication, domain.PhaseList, nil,
			errors.New("GitHub token is empty"))
	}

	client := github.NewClient(nil).WithAuthToken(token)

	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}

		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base URL: %w", err)
		}
		client.BaseURL = u
	}

	return &GitHub{client: client, log: log}, nil
}

func (g *GitHub) List(ctx context.Context, filter Filter) ([]domain.Item, error) {
	if filter.MaxItems <= 0 {
		return nil, nil
	}

	query := githubSearchQuery(filter)
	opts := &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: min(filter.MaxItems, githubMaxPerPage)},
	}

	items := make([]domain.Item, 0, opts.PerPage)

	for {
		result, resp, err := g.client.Search.Issues(ctx, query, opts)
		if err != nil {
			return nil, classifyGitHubError(domain.PhaseList, nil, fmt.Errorf("search issues: %w", err))
		}

		for _, issue := range result.Issues {
			item, ok := pullRequestItem(issue)
			if !ok {
				g.log.WarnContext(ctx, "Skipping search result without repository",
					"number", issue.GetNumber(),
					"url", issue.GetHTMLURL())

				continue
			}

			items = append(items, item)
			if len(items) == filter.MaxItems {
				return items, nil
			}
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	g.log.DebugContext(ctx, "Pull requests are listed",
		"query", query,
		"count", len(items))

	return items, nil
}

func (g *GitHub) Detail(ctx context.Context, item domain.Item) (string, error) {
	owner, repo := item.Meta["owner"], item.Meta["repo"]

	number, err := strconv.Atoi(item.Meta["number"])
	if err != nil || owner == "" || repo == "" {
		return "", domain.NewError(domain.KindFetch, domain.PhaseDetail, &item,
			fmt.Errorf("incomplete pull request locator (owner = %q, repo = %q, number = %q)",
				owner, repo, item.Meta["number"]))
	}

	diff, _, err := g.client.PullRequests.GetRaw(ctx, owner, repo, number,
		github.RawOptions{Type: github.Diff})
	if err != nil {
		return "", classifyGitHubError(domain.PhaseDetail, &item, fmt.Errorf("get diff: %w", err))
	}

	return diff, nil
}

func githubSearchQuery(filter Filter) string {
	parts := []string{"is:pr"}

	if !filter.Since.IsZero() {
		parts = append(parts, "created:>"+filter.Since.UTC().Format(time.RFC3339))
	}
	if label := strings.TrimSpace(filter.Label); label != "" {
		parts = append(parts, fmt.Sprintf("label:%q", label))
	}
	if query := strings.TrimSpace(filter.Query); query != "" {
		parts = append(parts, query)
	}

	return strings.Join(parts, " ")
}

func pullRequestItem(issue *github.Issue) (domain.Item, bool) {
	owner, repo, ok := repositoryFromAPIURL(issue.GetRepositoryURL())
	if !ok {
		return domain.Item{}, false
	}

	number := issue.GetNumber()
	origin := owner + "/" + repo

	return domain.Item{
		ID:          fmt.Sprintf("%s#%d", origin, number),
		Title:       strings.TrimSpace(issue.GetTitle()),
		Origin:      origin,
		URL:         issue.GetHTMLURL(),
		Description: strings.TrimSpace(issue.GetBody()),
		CreatedAt:   issue.GetCreatedAt().Time,
		Meta: map[string]string{
			"owner":  owner,
			"repo":   repo,
			"number": strconv.Itoa(number),
			"author": issue.GetUser().GetLogin(),
		},
	}, true
}

// repositoryFromAPIURL splits ".../repos/{owner}/{repo}" into its parts.
func repositoryFromAPIURL(raw string) (string, string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "repos" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], true
		}
	}

	return "", "", false
}

func classifyGitHubError(phase domain.Phase, item *domain.Item, err error) error {
	kind := domain.KindFetch

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil &&
		respErr.Response.StatusCode == http.StatusUnauthorized {
		kind = domain.KindAuthentication
	}

	return domain.NewError(kind, phase, item, err)
}
