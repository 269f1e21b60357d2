package bugzilla

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugboard/internal/model"
	"bugboard/internal/source"
)

// newBugzillaServer serves a fixed pair of bugs: one unassigned, one
// assigned to "hello".
func newBugzillaServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/rest/bug", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "abc123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		resp := BugsResponse{Bugs: []Bug{
			{
				ID:           1234567,
				Product:      "Product",
				Component:    "Something",
				Status:       "NEW",
				Summary:      "This is the issue summary",
				Priority:     "urgent",
				Severity:     "normal",
				AssignedTo:   "",
				Creator:      "reporter@one.com",
				CreationTime: "2024-05-01T10:00:00Z",
				LastChange:   "2024-05-03T09:00:00Z",
			},
			{
				ID:           1234568,
				Product:      "Product",
				Component:    "Other",
				Status:       "ASSIGNED",
				Summary:      "An assigned bug",
				Priority:     "normal",
				Severity:     "major",
				AssignedTo:   "hello",
				Creator:      "reporter@one.com",
				CreationTime: "2024-05-02T10:00:00Z",
				LastChange:   "2024-05-04T09:00:00Z",
			},
		}}
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/rest/whoami", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "abc123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(WhoAmI{
			ID:       7,
			Name:     "hello",
			RealName: "Hello There",
		})
	})

	mux.HandleFunc("/rest/bug/1234568/history", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(HistoryResponse{Bugs: []BugHistory{{
			ID: 1234568,
			History: []HistoryChange{
				{
					When: "2024-05-02T11:00:00Z",
					Who:  "triager@one.com",
					Changes: []FieldChange{
						{FieldName: "assigned_to", Removed: "", Added: "hello"},
					},
				},
				{
					When: "2024-05-02T12:00:00Z",
					Who:  "triager@one.com",
					Changes: []FieldChange{
						{FieldName: "status", Removed: "NEW", Added: "ASSIGNED"},
					},
				},
			},
		}}})
	})

	return httptest.NewServer(mux)
}

func testConfig(baseURI string) Config {
	return Config{
		BaseURI:  baseURI,
		Username: "hello",
		APIKey:   "abc123",
	}
}

func TestValidateConnection(t *testing.T) {
	srv := newBugzillaServer(t)
	defer srv.Close()

	adapter := NewAdapter(testConfig(srv.URL), "src-1")

	name, err := adapter.ValidateConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello There", name)
}

func TestFetchItemsNoFilter(t *testing.T) {
	srv := newBugzillaServer(t)
	defer srv.Close()

	adapter := NewAdapter(testConfig(srv.URL), "src-1")

	result, err := adapter.FetchItems(context.Background(), source.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, 2, result.Total)
	assert.False(t, result.HasMore)
}

func TestFetchItemsOnlyIfAssigned(t *testing.T) {
	srv := newBugzillaServer(t)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.OnlyIfAssigned = "hello"
	adapter := NewAdapter(cfg, "src-1")

	result, err := adapter.FetchItems(context.Background(), source.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "1234568", result.Items[0].SourceItemID)
	assert.Equal(t, "hello", result.Items[0].Assignee)
}

func TestFetchItemsAlsoUnassigned(t *testing.T) {
	srv := newBugzillaServer(t)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.OnlyIfAssigned = "hello"
	cfg.AlsoUnassigned = true
	adapter := NewAdapter(cfg, "src-1")

	result, err := adapter.FetchItems(context.Background(), source.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)

	ids := []string{result.Items[0].SourceItemID, result.Items[1].SourceItemID}
	assert.Contains(t, ids, "1234567")
	assert.Contains(t, ids, "1234568")
}

func TestFetchItemsAssignedToSomeoneElse(t *testing.T) {
	srv := newBugzillaServer(t)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.OnlyIfAssigned = "somebody-else"
	cfg.AlsoUnassigned = true
	adapter := NewAdapter(cfg, "src-1")

	result, err := adapter.FetchItems(context.Background(), source.FetchOptions{})
	require.NoError(t, err)

	// Only the unassigned bug passes; 1234568 belongs to another user.
	require.Len(t, result.Items, 1)
	assert.Equal(t, "1234567", result.Items[0].SourceItemID)
}

func TestFetchItemsAuthError(t *testing.T) {
	srv := newBugzillaServer(t)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIKey = "wrong-key"
	adapter := NewAdapter(cfg, "src-1")

	_, err := adapter.FetchItems(context.Background(), source.FetchOptions{})
	require.Error(t, err)
	assert.True(t, source.IsAuthError(err))
}

func TestRecordToTask(t *testing.T) {
	adapter := NewAdapter(testConfig("https://one.com/"), "src-1")

	task := adapter.recordToTask(Bug{
		ID:           1234567,
		Product:      "Product",
		Component:    "Something",
		Status:       "NEW",
		Summary:      "This is the issue summary",
		Priority:     "urgent",
		Severity:     "normal",
		AssignedTo:   "hello",
		Creator:      "reporter@one.com",
		CreationTime: "2024-05-01T10:00:00Z",
		LastChange:   "2024-05-03T09:00:00Z",
	})

	assert.Equal(t, "bugzilla-1234567", task.ID)
	assert.Equal(t, model.SourceTypeBugzilla, task.SourceType)
	assert.Equal(t, "1234567", task.SourceItemID)
	assert.Equal(t, "src-1", task.SourceID)
	assert.Equal(t, "This is the issue summary", task.Title)
	assert.Equal(t, model.StatusOpen, task.Status)
	assert.Equal(t, model.PriorityCritical, task.Priority)
	assert.Equal(t, "Something", task.Project)
	assert.Equal(t, "https://one.com/show_bug.cgi?id=1234567", task.SourceURL)
	assert.Equal(
		t,
		time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		task.CreatedAt.UTC(),
	)
	assert.NotEmpty(t, task.RawData)
}

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		priority string
		want     int
	}{
		{"urgent", model.PriorityCritical},
		{"blocker", model.PriorityCritical},
		{"major", model.PriorityHigh},
		{"high", model.PriorityHigh},
		{"normal", model.PriorityMedium},
		{"unspecified", model.PriorityMedium},
		{"minor", model.PriorityLow},
		{"trivial", model.PriorityLowest},
		{"P1", model.PriorityMedium},
		{"", model.PriorityMedium},
	}
	for _, tt := range tests {
		assert.Equal(
			t, tt.want, normalizePriority(tt.priority),
			"priority %q", tt.priority,
		)
	}
}

func TestNormalizeStatus(t *testing.T) {
	adapter := NewAdapter(testConfig("https://one.com/"), "src-1")

	tests := []struct {
		status string
		want   string
	}{
		{"UNCONFIRMED", model.StatusOpen},
		{"NEW", model.StatusOpen},
		{"CONFIRMED", model.StatusOpen},
		{"REOPENED", model.StatusOpen},
		{"ASSIGNED", model.StatusInProgress},
		{"IN_PROGRESS", model.StatusInProgress},
		{"RESOLVED", model.StatusDone},
		{"VERIFIED", model.StatusDone},
		{"CLOSED", model.StatusDone},
		{"SOMETHING_ELSE", model.StatusOpen},
	}
	for _, tt := range tests {
		got := adapter.normalizeStatus(Bug{Status: tt.status})
		assert.Equal(t, tt.want, got, "status %q", tt.status)
	}

	// An open needinfo request for the configured user wins.
	got := adapter.normalizeStatus(Bug{
		Status: "ASSIGNED",
		Flags: []Flag{{
			Name:         "needinfo",
			Status:       "?",
			Requestee:    "hello",
			CreationDate: "2024-05-02T08:00:00Z",
		}},
	})
	assert.Equal(t, model.StatusReview, got)
}

func TestIssuesExportPath(t *testing.T) {
	srv := newBugzillaServer(t)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.OnlyIfAssigned = "hello"
	cfg.AlsoUnassigned = true
	adapter := NewAdapter(cfg, "src-1")

	issues, err := adapter.Issues(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 2)

	byID := map[int]*Issue{}
	for _, issue := range issues {
		byID[issue.Record.ID] = issue
	}

	unassigned := byID[1234567]
	require.NotNil(t, unassigned)
	assert.Equal(t, srv.URL+"/show_bug.cgi?id=1234567", unassigned.Extra.URL)
	assert.Empty(t, unassigned.Extra.AssignedOn)

	assigned := byID[1234568]
	require.NotNil(t, assigned)
	assert.Equal(t, "2024-05-02T11:00:00Z", assigned.Extra.AssignedOn)
}

func TestPaginate(t *testing.T) {
	adapter := NewAdapter(testConfig("https://one.com/"), "src-1")

	records := make([]Bug, 7)
	for i := range records {
		records[i] = Bug{ID: i + 1, Summary: "bug", Status: "NEW"}
	}

	page1 := adapter.paginate(records, source.FetchOptions{Page: 1, PageSize: 5})
	assert.Len(t, page1.Items, 5)
	assert.Equal(t, 7, page1.Total)
	assert.True(t, page1.HasMore)

	page2 := adapter.paginate(records, source.FetchOptions{Page: 2, PageSize: 5})
	assert.Len(t, page2.Items, 2)
	assert.False(t, page2.HasMore)

	empty := adapter.paginate(records, source.FetchOptions{Page: 9, PageSize: 5})
	assert.Empty(t, empty.Items)
	assert.False(t, empty.HasMore)
}
