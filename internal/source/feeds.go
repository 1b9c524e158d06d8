package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"summarist/internal/domain"

	"github.com/mmcdole/gofeed"
	"mvdan.cc/xurls/v2"
)

const (
	feedsClientTimeout = 20 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"
)

// Feeds lists entries of RSS/Atom feeds and extracts article text.
type Feeds struct {
	urls       []string
	libParser  *gofeed.Parser
	httpClient *http.Client
	log        *slog.Logger
}

// NewFeeds builds a connector over every https URL found in text.
func NewFeeds(text string, httpClient *http.Client, log *slog.Logger) (*Feeds, error) {
	urls, err := FindFeedURLs(text)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, errors.New("no feed URLs found")
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: feedsClientTimeout}
	}

	libParser := gofeed.NewParser()
	libParser.Client = httpClient
	libParser.UserAgent = userAgent

	return &Feeds{
		urls:       urls,
		libParser:  libParser,
		httpClient: httpClient,
		log:        log,
	}, nil
}

// FindFeedURLs extracts distinct https URLs from free text, in order of appearance.
func FindFeedURLs(text string) ([]string, error) {
	httpsURLRe, err := xurls.StrictMatchingScheme("https://")
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	found := httpsURLRe.FindAllString(strings.TrimSpace(text), -1)

	urls := make([]string, 0, len(found))
	seen := make(map[string]struct{}, len(found))

	for _, u := range found {
		u = strings.TrimSpace(u)
		if _, ok := seen[u]; ok {
			continue
		}

		urls = append(urls, u)
		seen[u] = struct{}{}
	}

	return urls, nil
}

func (f *Feeds) List(ctx context.Context, filter Filter) ([]domain.Item, error) {
	if filter.MaxItems <= 0 {
		return nil, nil
	}

	var items []domain.Item

	for _, feedURL := range f.urls {
		parsed, err := f.libParser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			return nil, classifyFeedError(domain.PhaseList, nil,
				fmt.Errorf("parse feed (URL = %s): %w", feedURL, err))
		}

		feedTitle := strings.TrimSpace(parsed.Title)
		if feedTitle == "" {
			f.log.WarnContext(ctx, "Empty feed title",
				"feedURL", feedURL,
				"fallbackTitle", feedURL)

			feedTitle = feedURL
		}

		for _, entry := range parsed.Items {
			item, ok := f.feedItem(ctx, feedURL, feedTitle, entry, filter)
			if !ok {
				continue
			}

			items = append(items, item)
			if len(items) == filter.MaxItems {
				return items, nil
			}
		}
	}

	return items, nil
}

func (f *Feeds) feedItem(
	ctx context.Context,
	feedURL string,
	feedTitle string,
	entry *gofeed.Item,
	filter Filter,
) (domain.Item, bool) {
	var published time.Time
	if entry.PublishedParsed != nil {
		published = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		published = *entry.UpdatedParsed
	}

	// Undated entries cannot be placed in the window.
	if published.IsZero() || !published.After(filter.Since) {
		return domain.Item{}, false
	}

	link := strings.TrimSpace(entry.Link)
	if link == "" {
		f.log.WarnContext(ctx, "Skipping feed item with empty URL",
			"feedURL", feedURL,
			"feedTitle", feedTitle,
			"itemTitle", entry.Title)

		return domain.Item{}, false
	}

	if !entryMatches(entry, filter) {
		return domain.Item{}, false
	}

	id := strings.TrimSpace(entry.GUID)
	if id == "" {
		id = link
	}

	return domain.Item{
		ID:          id,
		Title:       strings.TrimSpace(entry.Title),
		Origin:      feedTitle,
		URL:         link,
		Description: strings.TrimSpace(entry.Description),
		CreatedAt:   published.UTC(),
		Meta: map[string]string{
			"feedURL": feedURL,
			"content": entry.Content,
		},
	}, true
}

// entryMatches applies the label as a category filter and the query as a
// case-insensitive substring of title or description.
func entryMatches(entry *gofeed.Item, filter Filter) bool {
	if label := strings.TrimSpace(filter.Label); label != "" {
		found := false
		for _, c := range entry.Categories {
			if strings.EqualFold(strings.TrimSpace(c), label) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if query := strings.ToLower(strings.TrimSpace(filter.Query)); query != "" {
		haystack := strings.ToLower(entry.Title + "\n" + entry.Description)
		if !strings.Contains(haystack, query) {
			return false
		}
	}

	return true
}

// Detail prefers the entry's inline content and falls back to the linked page.
func (f *Feeds) Detail(ctx context.Context, item domain.Item) (string, error) {
	text, err := HTMLToText(item.Meta["content"])
	if err != nil {
		return "", domain.NewError(domain.KindFetch, domain.PhaseDetail, &item,
			fmt.Errorf("convert inline content: %w", err))
	}
	if text != "" {
		return text, nil
	}

	return f.fetchArticle(ctx, item)
}

func (f *Feeds) fetchArticle(ctx context.Context, item domain.Item) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return "", domain.NewError(domain.KindFetch, domain.PhaseDetail, &item,
			fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req) //nolint:gosec // URL comes from the configured feed
	if err != nil {
		return "", domain.NewError(domain.KindFetch, domain.PhaseDetail, &item,
			fmt.Errorf("do request: %w", err))
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			f.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", item.URL,
				"operation", "fetchArticle")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", domain.NewError(domain.KindFetch, domain.PhaseDetail, &item,
			fmt.Errorf("do request: unexpected status: %d", resp.StatusCode))
	}

	text, err := readableText(resp.Body)
	if err != nil {
		return "", domain.NewError(domain.KindFetch, domain.PhaseDetail, &item,
			fmt.Errorf("extract article text: %w", err))
	}

	return text, nil
}

func classifyFeedError(phase domain.Phase, item *domain.Item, err error) error {
	kind := domain.KindFetch

	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) &&
		(httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden) {
		kind = domain.KindAuthentication
	}

	return domain.NewError(kind, phase, item, err)
}
