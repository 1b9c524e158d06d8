package source_test

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"summarist/internal/domain"
	"summarist/internal/source"

	"github.com/stretchr/testify/require"
)

const gmailMessagesPath = "/gmail/v1/users/me/messages"

func newGmail(t *testing.T, handler http.Handler) *source.Gmail {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g, err := source.NewGmail(context.Background(), "ya29.test", server.URL+"/",
		server.Client(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	return g
}

func metadataMessage(id string, subject string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"threadId": "t-%s",
		"internalDate": "1740830400000",
		"snippet": "snippet %s",
		"payload": {
			"mimeType": "multipart/alternative",
			"headers": [
				{"name": "From", "value": "Alice <alice@example.com>"},
				{"name": "Subject", "value": %q},
				{"name": "Date", "value": "Sat, 1 Mar 2025 12:00:00 +0000"}
			]
		}
	}`, id, id, id, subject)
}

func TestGmailListPaginatesAndCaps(t *testing.T) {
	var listQueries []string
	var pageSizes []string

	mux := http.NewServeMux()
	mux.HandleFunc(gmailMessagesPath, func(w http.ResponseWriter, r *http.Request) {
		listQueries = append(listQueries, r.URL.Query().Get("q"))
		pageSizes = append(pageSizes, r.URL.Query().Get("maxResults"))

		w.Header().Set("Content-Type", "application/json")

		if r.URL.Query().Get("pageToken") == "" {
			_, _ = io.WriteString(w, `{"messages": [{"id": "m1"}, {"id": "m2"}], "nextPageToken": "p2"}`)
			return
		}

		_, _ = io.WriteString(w, `{"messages": [{"id": "m3"}, {"id": "m4"}]}`)
	})
	mux.HandleFunc(gmailMessagesPath+"/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, gmailMessagesPath+"/")
		if got := r.URL.Query().Get("format"); got != "metadata" {
			t.Errorf("unexpected format: %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, metadataMessage(id, "subject "+id))
	})

	g := newGmail(t, mux)

	since := time.Date(2025, 2, 22, 0, 0, 0, 0, time.UTC)
	items, err := g.List(context.Background(), source.Filter{
		Since:    since,
		Label:    "Work",
		Query:    "from:alice",
		MaxItems: 3,
	})
	require.NoError(t, err)

	require.Len(t, items, 3)
	require.Equal(t, "m1", items[0].ID)
	require.Equal(t, "subject m3", items[2].Title)
	require.Equal(t, "Alice <alice@example.com>", items[0].Origin)
	require.Equal(t, "Sat, 1 Mar 2025 12:00:00 +0000", items[0].Meta["date"])
	require.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), items[0].CreatedAt)
	require.Contains(t, items[0].URL, "m1")

	require.Equal(t, []string{"3", "1"}, pageSizes)
	require.Equal(t, fmt.Sprintf("after:%d label:Work from:alice", since.Unix()), listQueries[0])
}

func TestGmailListEmptyMakesNoMessageRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(gmailMessagesPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"resultSizeEstimate": 0}`)
	})
	mux.HandleFunc(gmailMessagesPath+"/", func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no message request expected")
	})

	items, err := newGmail(t, mux).List(context.Background(), source.Filter{MaxItems: 30})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestGmailListUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(gmailMessagesPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": {"code": 401, "message": "Invalid Credentials", "status": "UNAUTHENTICATED"}}`)
	})

	_, err := newGmail(t, mux).List(context.Background(), source.Filter{MaxItems: 30})
	require.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestGmailDetailExtractsPlainText(t *testing.T) {
	plain := base64.URLEncoding.EncodeToString([]byte("Quarterly numbers attached."))
	html := base64.URLEncoding.EncodeToString([]byte("<p>Quarterly numbers attached.</p>"))

	mux := http.NewServeMux()
	mux.HandleFunc(gmailMessagesPath+"/m1", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("format"); got != "full" {
			t.Errorf("unexpected format: %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{
			"id": "m1",
			"payload": {
				"mimeType": "multipart/alternative",
				"parts": [
					{"mimeType": "text/html", "body": {"data": %q}},
					{"mimeType": "text/plain", "body": {"data": %q}}
				]
			}
		}`, html, plain)
	})

	got, err := newGmail(t, mux).Detail(context.Background(), domain.Item{ID: "m1"})
	require.NoError(t, err)
	require.Equal(t, "Quarterly numbers attached.", got)
}

func TestGmailDetailFailureIsFetchError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(gmailMessagesPath+"/m1", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error": {"code": 404, "message": "Requested entity was not found."}}`)
	})

	_, err := newGmail(t, mux).Detail(context.Background(), domain.Item{ID: "m1"})
	require.ErrorIs(t, err, domain.ErrFetch)
}
