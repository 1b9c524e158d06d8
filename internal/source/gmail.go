package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"summarist/internal/domain"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	gmailUser          = "me"
	gmailMaxPageSize   = 500
	gmailWebMessageURL = "https://mail.google.com/mail/u/0/#all/"
)

var gmailMetadataHeaders = []string{"From", "Subject", "Date"}

// Gmail lists messages of the authenticated mailbox and extracts plain-text bodies.
type Gmail struct {
	srv *gmail.Service
	log *slog.Logger
}

// NewGmail builds a connector from an OAuth2 access token. endpoint and
// httpClient are optional and only set when talking to a non-default server.
func NewGmail(
	ctx context.Context,
	token string,
	endpoint string,
	httpClient *http.Client,
	log *slog.Logger,
) (*Gmail, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.NewError(domain.KindAuthentication, domain.PhaseList, nil,
			errors.New("Gmail token is empty"))
	}

	var opts []option.ClientOption
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	} else {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		opts = append(opts, option.WithTokenSource(ts))
	}
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create Gmail service: %w", err)
	}

	return &Gmail{srv: srv, log: log}, nil
}

func (g *Gmail) List(ctx context.Context, filter Filter) ([]domain.Item, error) {
	if filter.MaxItems <= 0 {
		return nil, nil
	}

	query := gmailSearchQuery(filter)

	var ids []string
	pageToken := ""

	for len(ids) < filter.MaxItems {
		call := g.srv.Users.Messages.List(gmailUser).
			Q(query).
			MaxResults(int64(min(filter.MaxItems-len(ids), gmailMaxPageSize))).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, classifyGmailError(domain.PhaseList, nil, fmt.Errorf("list messages: %w", err))
		}

		for _, m := range resp.Messages {
			if len(ids) == filter.MaxItems {
				break
			}
			ids = append(ids, m.Id)
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	items := make([]domain.Item, 0, len(ids))

	for _, id := range ids {
		msg, err := g.srv.Users.Messages.Get(gmailUser, id).
			Format("metadata").
			MetadataHeaders(gmailMetadataHeaders...).
			Context(ctx).
			Do()
		if err != nil {
			return nil, classifyGmailError(domain.PhaseList, &domain.Item{ID: id},
				fmt.Errorf("get message metadata: %w", err))
		}

		items = append(items, messageItem(msg))
	}

	g.log.DebugContext(ctx, "Messages are listed",
		"query", query,
		"count", len(items))

	return items, nil
}

func (g *Gmail) Detail(ctx context.Context, item domain.Item) (string, error) {
	msg, err := g.srv.Users.Messages.Get(gmailUser, item.ID).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return "", classifyGmailError(domain.PhaseDetail, &item, fmt.Errorf("get message: %w", err))
	}

	body, err := MessageBody(msg.Payload)
	if err != nil {
		return "", domain.NewError(domain.KindFetch, domain.PhaseDetail, &item,
			fmt.Errorf("extract body: %w", err))
	}

	if body == "" {
		g.log.DebugContext(ctx, "Message has no plain-text body",
			"messageID", item.ID)
	}

	return body, nil
}

func gmailSearchQuery(filter Filter) string {
	var parts []string

	if !filter.Since.IsZero() {
		parts = append(parts, fmt.Sprintf("after:%d", filter.Since.Unix()))
	}
	if label := strings.TrimSpace(filter.Label); label != "" {
		parts = append(parts, "label:"+strings.ReplaceAll(label, " ", "-"))
	}
	if query := strings.TrimSpace(filter.Query); query != "" {
		parts = append(parts, query)
	}

	return strings.Join(parts, " ")
}

func messageItem(msg *gmail.Message) domain.Item {
	var from, subject, date string
	if msg.Payload != nil {
		from = headerValue(msg.Payload.Headers, "From")
		subject = headerValue(msg.Payload.Headers, "Subject")
		date = headerValue(msg.Payload.Headers, "Date")
	}

	var received time.Time
	if msg.InternalDate > 0 {
		received = time.UnixMilli(msg.InternalDate).UTC()
	}

	return domain.Item{
		ID:          msg.Id,
		Title:       subject,
		Origin:      from,
		URL:         gmailWebMessageURL + url.PathEscape(msg.Id),
		Description: strings.TrimSpace(msg.Snippet),
		CreatedAt:   received,
		Meta: map[string]string{
			"threadID": msg.ThreadId,
			"date":     date,
		},
	}
}

func headerValue(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if h != nil && strings.EqualFold(h.Name, name) {
			return strings.TrimSpace(h.Value)
		}
	}
	return ""
}

func classifyGmailError(phase domain.Phase, item *domain.Item, err error) error {
	kind := domain.KindFetch

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		kind = domain.KindAuthentication
	}

	return domain.NewError(kind, phase, item, err)
}
