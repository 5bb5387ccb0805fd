package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ryo246912/gh-issues-export/internal/models"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type item struct {
	ID int `json:"id"`
}

// sleepRecorder replaces real sleeping in tests
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// requestLog records the request URIs a test server saw
type requestLog struct {
	mu   sync.Mutex
	uris []string
}

func (l *requestLog) add(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.uris = append(l.uris, r.URL.RequestURI())
}

func (l *requestLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.uris...)
}

func newTestClient(t *testing.T, apiURL string, mutate func(*Options)) (*Client, *sleepRecorder) {
	t.Helper()
	opts := Options{
		APIURL:          apiURL,
		Token:           "test-token",
		MaxRetries:      3,
		Backoff:         2 * time.Second,
		WaitOnRateLimit: true,
	}
	if mutate != nil {
		mutate(&opts)
	}
	c, err := NewClient(opts)
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	rec := &sleepRecorder{}
	c.sleep = rec.sleep
	c.now = func() time.Time { return fixedNow }
	return c, rec
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestPaginate_ConcatenatesPagesInOrder(t *testing.T) {
	log := &requestLog{}
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r)
		switch r.URL.Path {
		case "/items":
			w.Header().Set("Link", fmt.Sprintf(`<%s/page2>; rel="next", <%s/page3>; rel="last"`, server.URL, server.URL))
			writeJSON(w, http.StatusOK, `[{"id":1},{"id":2}]`)
		case "/page2":
			w.Header().Set("Link", fmt.Sprintf(`<%s/items>; rel="first", <%s/page3>; rel="next"`, server.URL, server.URL))
			writeJSON(w, http.StatusOK, `{"total_count":5,"items":[{"id":3},{"id":4}]}`)
		case "/page3":
			writeJSON(w, http.StatusOK, `[{"id":5}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c, rec := newTestClient(t, server.URL, nil)
	params := map[string][]string{"state": {"all"}, "per_page": {"100"}}

	got, err := paginate[item](context.Background(), c, server.URL+"/items", params)
	if err != nil {
		t.Fatalf("paginate() error: %v", err)
	}

	want := []item{{1}, {2}, {3}, {4}, {5}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("paginate() = %v, want %v", got, want)
	}

	wantURIs := []string{"/items?per_page=100&state=all", "/page2", "/page3"}
	if uris := log.all(); !reflect.DeepEqual(uris, wantURIs) {
		t.Errorf("requests = %v, want %v", uris, wantURIs)
	}
	if len(rec.recorded()) != 0 {
		t.Errorf("Expected no sleeps, got %v", rec.recorded())
	}
}

func TestPaginate_KeyedPageWithoutItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"total_count":0}`)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, nil)
	got, err := paginate[item](context.Background(), c, server.URL+"/search", nil)
	if err != nil {
		t.Fatalf("paginate() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty result, got %v", got)
	}
}

func TestPaginate_IsRepeatable(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/items" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/items2>; rel="next"`, server.URL))
			writeJSON(w, http.StatusOK, `[{"id":10},{"id":11}]`)
			return
		}
		writeJSON(w, http.StatusOK, `[{"id":12}]`)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, nil)
	first, err := paginate[item](context.Background(), c, server.URL+"/items", nil)
	if err != nil {
		t.Fatalf("first paginate() error: %v", err)
	}
	second, err := paginate[item](context.Background(), c, server.URL+"/items", nil)
	if err != nil {
		t.Fatalf("second paginate() error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical results, got %v and %v", first, second)
	}
}

func TestPaginate_WaitsOutRateLimitAndReissuesSameRequest(t *testing.T) {
	log := &requestLog{}
	var calls atomic.Int32
	reset := fixedNow.Add(30 * time.Second).Unix()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r)
		if calls.Add(1) == 1 {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
			writeJSON(w, http.StatusForbidden, `{"message":"API rate limit exceeded"}`)
			return
		}
		writeJSON(w, http.StatusOK, `[{"id":1}]`)
	}))
	defer server.Close()

	// a zero retry budget proves rate-limit waits are not counted as retries
	c, rec := newTestClient(t, server.URL, func(o *Options) { o.MaxRetries = 0 })
	params := map[string][]string{"per_page": {"100"}}

	got, err := paginate[item](context.Background(), c, server.URL+"/items", params)
	if err != nil {
		t.Fatalf("paginate() error: %v", err)
	}
	if !reflect.DeepEqual(got, []item{{1}}) {
		t.Errorf("paginate() = %v, want [{1}]", got)
	}

	wantURIs := []string{"/items?per_page=100", "/items?per_page=100"}
	if uris := log.all(); !reflect.DeepEqual(uris, wantURIs) {
		t.Errorf("requests = %v, want %v", uris, wantURIs)
	}
	if delays := rec.recorded(); !reflect.DeepEqual(delays, []time.Duration{31 * time.Second}) {
		t.Errorf("sleeps = %v, want [31s]", delays)
	}
}

func TestPaginate_RateLimitWithoutWaiting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(fixedNow.Add(time.Minute).Unix(), 10))
		writeJSON(w, http.StatusForbidden, `{"message":"API rate limit exceeded"}`)
	}))
	defer server.Close()

	c, rec := newTestClient(t, server.URL, func(o *Options) { o.WaitOnRateLimit = false })
	_, err := paginate[item](context.Background(), c, server.URL+"/items", nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Expected ErrRateLimited, got %v", err)
	}
	if len(rec.recorded()) != 0 {
		t.Errorf("Expected no sleeps, got %v", rec.recorded())
	}
}

func TestPaginate_ForbiddenWithoutRateLimitIsPermanent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("X-RateLimit-Remaining", "4999")
		writeJSON(w, http.StatusForbidden, `{"message":"Resource not accessible by integration"}`)
	}))
	defer server.Close()

	c, rec := newTestClient(t, server.URL, nil)
	if _, err := paginate[item](context.Background(), c, server.URL+"/items", nil); err == nil {
		t.Fatal("Expected error but got none")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 request, got %d", calls.Load())
	}
	if len(rec.recorded()) != 0 {
		t.Errorf("Expected no sleeps, got %v", rec.recorded())
	}
}

func TestPaginate_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, `{"message":"Not Found"}`)
	}))
	defer server.Close()

	c, rec := newTestClient(t, server.URL, nil)
	_, err := paginate[item](context.Background(), c, server.URL+"/items", nil)
	if err == nil {
		t.Fatal("Expected error but got none")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 request, got %d", calls.Load())
	}
	if len(rec.recorded()) != 0 {
		t.Errorf("Expected no sleeps, got %v", rec.recorded())
	}
}

func TestPaginate_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusBadGateway, `{"message":"Bad Gateway"}`)
			return
		}
		writeJSON(w, http.StatusOK, `[{"id":7}]`)
	}))
	defer server.Close()

	c, rec := newTestClient(t, server.URL, nil)
	got, err := paginate[item](context.Background(), c, server.URL+"/items", nil)
	if err != nil {
		t.Fatalf("paginate() error: %v", err)
	}
	if !reflect.DeepEqual(got, []item{{7}}) {
		t.Errorf("paginate() = %v, want [{7}]", got)
	}
	if delays := rec.recorded(); !reflect.DeepEqual(delays, []time.Duration{2 * time.Second}) {
		t.Errorf("sleeps = %v, want [2s]", delays)
	}
}

// flakyTransport fails the first n round trips with a transport error
type flakyTransport struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection reset by peer")
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestPaginate_TransportFailures(t *testing.T) {
	tests := []struct {
		name        string
		failures    int
		expectError bool
		wantCalls   int
		wantDelays  []time.Duration
	}{
		{
			name:       "recovers after two failures",
			failures:   2,
			wantCalls:  3,
			wantDelays: []time.Duration{2 * time.Second, 4 * time.Second},
		},
		{
			name:        "gives up after the retry budget",
			failures:    10,
			expectError: true,
			wantCalls:   4,
			wantDelays:  []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, `[{"id":1}]`)
			}))
			defer server.Close()

			transport := &flakyTransport{failures: tt.failures}
			c, rec := newTestClient(t, server.URL, func(o *Options) { o.Transport = transport })

			_, err := paginate[item](context.Background(), c, server.URL+"/items", nil)
			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if transport.calls != tt.wantCalls {
				t.Errorf("Expected %d attempts, got %d", tt.wantCalls, transport.calls)
			}
			if delays := rec.recorded(); !reflect.DeepEqual(delays, tt.wantDelays) {
				t.Errorf("sleeps = %v, want %v", delays, tt.wantDelays)
			}
		})
	}
}

func TestClient_FetchIssuesSkipsPullRequests(t *testing.T) {
	log := &requestLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r)
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer test-token")
		}
		writeJSON(w, http.StatusOK, `[
			{"number": 3, "title": "Bug", "state": "open", "created_at": "2024-01-02T03:04:05Z", "updated_at": "2024-01-03T03:04:05Z", "labels": [{"name": "bug"}]},
			{"number": 2, "title": "PR", "state": "open", "created_at": "2024-01-01T00:00:00Z", "updated_at": "2024-01-01T00:00:00Z", "pull_request": {"url": "x"}},
			{"number": 1, "title": "Old", "state": "closed", "created_at": "2023-12-01T00:00:00Z", "updated_at": "2023-12-02T00:00:00Z", "closed_at": "2023-12-02T00:00:00Z"}
		]`)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL+"/api/v3", nil)
	issues, err := c.FetchIssues(context.Background(), "acme", "widgets", models.IssueFilter{Labels: []string{"bug"}})
	if err != nil {
		t.Fatalf("FetchIssues() error: %v", err)
	}

	var numbers []int
	for _, issue := range issues {
		numbers = append(numbers, issue.Number)
	}
	if !reflect.DeepEqual(numbers, []int{3, 1}) {
		t.Errorf("issue numbers = %v, want [3 1]", numbers)
	}
	if issues[1].ClosedAt == nil {
		t.Errorf("Expected closed_at to be decoded")
	}

	want := "/api/v3/repos/acme/widgets/issues?labels=bug&per_page=100&state=all"
	if uris := log.all(); len(uris) != 1 || uris[0] != want {
		t.Errorf("requests = %v, want [%s]", uris, want)
	}
}

func TestClient_FetchComments(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/repos/acme/widgets/issues/42/comments") {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s%s?page=2>; rel="next"`, server.URL, r.URL.Path))
			writeJSON(w, http.StatusOK, `[{"id": 1, "user": {"login": "alice"}, "body": "first", "created_at": "2024-01-01T00:00:00Z"}]`)
			return
		}
		writeJSON(w, http.StatusOK, `[{"id": 2, "user": {"login": "bob"}, "body": "second", "created_at": "2024-01-02T00:00:00Z"}]`)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, nil)
	comments, err := c.FetchComments(context.Background(), "acme", "widgets", 42)
	if err != nil {
		t.Fatalf("FetchComments() error: %v", err)
	}
	if len(comments) != 2 || comments[0].User.Login != "alice" || comments[1].Body != "second" {
		t.Errorf("Unexpected comments: %+v", comments)
	}
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "missing API URL", opts: Options{Token: "t"}},
		{name: "missing token", opts: Options{APIURL: "https://api.github.com"}},
		{name: "API URL without host", opts: Options{APIURL: "/api/v3", Token: "t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(tt.opts); err == nil {
				t.Errorf("Expected error but got none")
			}
		})
	}
}

func TestGraphQLURLFor(t *testing.T) {
	tests := []struct {
		apiURL   string
		expected string
	}{
		{"https://github.example.com/api/v3", "https://github.example.com/api/graphql"},
		{"https://github.example.com/api/v3/", "https://github.example.com/api/graphql"},
		{"https://api.github.com", "https://api.github.com/graphql"},
	}

	for _, tt := range tests {
		t.Run(tt.apiURL, func(t *testing.T) {
			if got := GraphQLURLFor(tt.apiURL); got != tt.expected {
				t.Errorf("GraphQLURLFor(%q) = %q, want %q", tt.apiURL, got, tt.expected)
			}
		})
	}
}
