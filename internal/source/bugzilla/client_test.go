package bugzilla

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugboard/internal/source"
)

func TestClientPasswordLogin(t *testing.T) {
	mux := http.NewServeMux()

	loginCount := 0
	mux.HandleFunc("/rest/login", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("login") != "hello" ||
			r.URL.Query().Get("password") != "there" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		loginCount++
		json.NewEncoder(w).Encode(LoginResponse{ID: 7, Token: "tok-42"})
	})

	mux.HandleFunc("/rest/whoami", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok-42" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(WhoAmI{ID: 7, Name: "hello"})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "hello", "there", "")

	var me WhoAmI
	require.NoError(t, client.Get(context.Background(), "/rest/whoami", nil, &me))
	assert.Equal(t, "hello", me.Name)

	// The token is cached; a second call must not log in again.
	require.NoError(t, client.Get(context.Background(), "/rest/whoami", nil, &me))
	assert.Equal(t, 1, loginCount)
}

func TestClientConcurrentLogin(t *testing.T) {
	mux := http.NewServeMux()

	var loginCount int64
	mux.HandleFunc("/rest/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&loginCount, 1)
		json.NewEncoder(w).Encode(LoginResponse{ID: 7, Token: "tok-42"})
	})
	mux.HandleFunc("/rest/whoami", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok-42" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(WhoAmI{ID: 7, Name: "hello"})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "hello", "there", "")

	// The poller and UI commands share one client; simultaneous first
	// requests must produce a single login.
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var me WhoAmI
			errs[i] = client.Get(context.Background(), "/rest/whoami", nil, &me)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&loginCount))
}

func TestClientBadLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "hello", "wrong", "")

	var me WhoAmI
	err := client.Get(context.Background(), "/rest/whoami", nil, &me)
	require.Error(t, err)
	assert.True(t, source.IsAuthError(err))
}

func TestClientPost(t *testing.T) {
	var received map[string]string

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/bug/1234567/comment", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "abc123", r.URL.Query().Get("api_key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]int{"id": 99})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "hello", "", "abc123")

	err := client.Post(
		context.Background(),
		"/rest/bug/1234567/comment",
		map[string]string{"comment": "looks fixed to me"},
		nil,
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"comment": "looks fixed to me"}, received)
}

func TestClientDecodesBugzillaError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/bug", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{
			Error:   true,
			Code:    32000,
			Message: "API key is not valid",
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "hello", "", "abc123")

	var resp BugsResponse
	err := client.Get(context.Background(), "/rest/bug", nil, &resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is not valid")
	assert.Contains(t, err.Error(), "32000")
}

func TestGetItemDetail(t *testing.T) {
	mux := http.NewServeMux()

	mux.HandleFunc("/rest/bug/1234567", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(BugsResponse{Bugs: []Bug{{
			ID:        1234567,
			Product:   "Product",
			Component: "Something",
			Status:    "NEW",
			Summary:   "This is the issue summary",
			Severity:  "urgent",
		}}})
	})

	mux.HandleFunc("/rest/bug/1234567/comment", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(CommentsResponse{
			Bugs: map[string]CommentList{
				"1234567": {Comments: []Comment{
					{
						ID:           1,
						BugID:        1234567,
						Creator:      "reporter@one.com",
						Text:         "Steps to reproduce...",
						CreationTime: "2024-05-01T10:00:00Z",
					},
					{
						ID:           2,
						BugID:        1234567,
						Creator:      "dev@one.com",
						Text:         "Cannot reproduce on main.",
						CreationTime: "2024-05-02T10:00:00Z",
					},
				}},
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	adapter := NewAdapter(testConfig(srv.URL), "src-1")

	detail, err := adapter.GetItemDetail(context.Background(), "1234567")
	require.NoError(t, err)

	// Comment 0 is the bug description; the rest form the thread.
	assert.Equal(t, "Steps to reproduce...", detail.RenderedBody)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "dev@one.com", detail.Comments[0].Author)
	assert.Equal(t, "Cannot reproduce on main.", detail.Comments[0].Body)

	assert.Equal(t, "Product", detail.Metadata["Product"])
	assert.Equal(t, "Something", detail.Metadata["Component"])
	assert.Equal(t, "urgent", detail.Metadata["Severity"])
}
