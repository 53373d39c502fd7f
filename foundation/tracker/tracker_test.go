package tracker_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dcapri/hubmirror/foundation/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	Nodes    []json.RawMessage `json:"nodes"`
	PageInfo tracker.PageInfo  `json:"pageInfo"`
}

func TestIssuesWalksPagination(t *testing.T) {
	var authSeen []string
	var cursorsSeen []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/issues", r.URL.Path)
		require.Equal(t, "team-1", r.URL.Query().Get("team"))

		authSeen = append(authSeen, r.Header.Get("Authorization"))

		cursor := r.URL.Query().Get("after")
		cursorsSeen = append(cursorsSeen, cursor)

		var resp page
		switch cursor {
		case "":
			resp = page{
				Nodes: []json.RawMessage{
					json.RawMessage(`{"id":"iss-1","identifier":"ENG-1","title":"One"}`),
					json.RawMessage(`{"id":"iss-2","identifier":"ENG-2","title":"Two"}`),
				},
				PageInfo: tracker.PageInfo{HasNextPage: true, EndCursor: "cur-2"},
			}
		case "cur-2":
			resp = page{
				Nodes: []json.RawMessage{
					json.RawMessage(`{"id":"iss-3","identifier":"ENG-3","title":"Three"}`),
				},
			}
		default:
			t.Fatalf("unexpected cursor %q", cursor)
		}

		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := tracker.New(tracker.Config{APIURL: srv.URL, APIKey: "key-123"})

	issues, err := client.Issues(context.Background(), "team-1")
	require.NoError(t, err)

	require.Len(t, issues, 3)
	assert.Equal(t, []string{"", "cur-2"}, cursorsSeen)
	assert.Equal(t, []string{"key-123", "key-123"}, authSeen)

	// Each entity keeps its original payload verbatim.
	assert.Equal(t, "iss-1", issues[0].ID)
	assert.JSONEq(t, `{"id":"iss-1","identifier":"ENG-1","title":"One"}`, string(issues[0].Raw))
}

func TestIssuesSinceSendsWatermark(t *testing.T) {
	since := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, since.Format(time.RFC3339), r.URL.Query().Get("updatedSince"))
		json.NewEncoder(w).Encode(page{})
	}))
	defer srv.Close()

	client := tracker.New(tracker.Config{APIURL: srv.URL, APIKey: "key-123"})

	issues, err := client.IssuesSince(context.Background(), "team-1", since)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestUpstreamErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := tracker.New(tracker.Config{APIURL: srv.URL, APIKey: "key-123"})

	_, err := client.Teams(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprint(http.StatusTooManyRequests))
}

func TestCreateComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/comments", r.URL.Path)

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "iss-1", in["issueId"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(tracker.Comment{ID: "cmt-1", IssueID: "iss-1", Body: in["body"]})
	}))
	defer srv.Close()

	client := tracker.New(tracker.Config{APIURL: srv.URL, APIKey: "key-123"})

	cmt, err := client.CreateComment(context.Background(), "iss-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "cmt-1", cmt.ID)
	assert.Equal(t, "hello", cmt.Body)
}
