package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyqa/pkg/generator"
	"storyqa/pkg/logx"
	"storyqa/pkg/metrics"
	"storyqa/pkg/persistence"
	"storyqa/pkg/publish"
	"storyqa/pkg/testcase"
	"storyqa/pkg/tracker"
)

const loginCriteria = "- User must log in with valid credentials\n- Invalid password shows an error"

type fakeTracker struct {
	mu      sync.Mutex
	issues  map[string]*tracker.Issue
	created []*tracker.NewIssue
	links   []string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{issues: map[string]*tracker.Issue{
		"XRM-1": issue("XRM-1", "Story"),
		"XRM-2": issue("XRM-2", "Bug"),
	}}
}

func issue(key, issueType string) *tracker.Issue {
	criteria, _ := json.Marshal(loginCriteria)
	return &tracker.Issue{
		ID:  "10001",
		Key: key,
		Fields: tracker.IssueFields{
			Summary:            "Login",
			Description:        json.RawMessage(`"As a user I want to log in"`),
			AcceptanceCriteria: criteria,
			IssueType:          tracker.IssueType{Name: issueType},
			Project:            tracker.Project{ID: "100", Key: "XRM", Name: "Xray Manager"},
		},
	}
}

func (f *fakeTracker) GetIssue(_ context.Context, key string) (*tracker.Issue, error) {
	if is, ok := f.issues[key]; ok {
		return is, nil
	}
	return nil, &tracker.APIError{StatusCode: http.StatusNotFound, Status: "404 Not Found"}
}

func (f *fakeTracker) ListProjects(context.Context) ([]tracker.Project, error) {
	return []tracker.Project{{ID: "100", Key: "XRM", Name: "Xray Manager"}}, nil
}

func (f *fakeTracker) CreateIssue(_ context.Context, in *tracker.NewIssue) (*tracker.CreatedIssue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	n := len(f.created)
	return &tracker.CreatedIssue{ID: fmt.Sprint(2000 + n), Key: fmt.Sprintf("XRM-%d", 100+n)}, nil
}

func (f *fakeTracker) LinkIssues(_ context.Context, linkType, inwardKey, outwardKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, fmt.Sprintf("%s %s->%s", linkType, inwardKey, outwardKey))
	return nil
}

func (f *fakeTracker) UpdateField(context.Context, string, string, any) error { return nil }

type testEnv struct {
	server  *Server
	tracker *fakeTracker
	store   *persistence.Store
	metrics *metrics.Registry
}

func newTestEnv(t *testing.T, withTracker bool) *testEnv {
	t.Helper()

	store, err := persistence.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	persist := persistence.NewQueue(16)
	go store.Worker(ctx, persist.Requests())

	reg := metrics.NewRegistry()
	env := &testEnv{store: store, metrics: reg}
	opts := Options{
		Generator:      generator.New(generator.WithObserver(reg)),
		Publish:        publish.Options{IssueType: "Test", LinkType: "Tests", Resolution: "Pending"},
		DefaultProject: "XRM",
		Runs:           store,
		Persist:        persist,
		Metrics:        reg,
	}
	if withTracker {
		env.tracker = newFakeTracker()
		opts.Tracker = env.tracker
	}
	env.server, err = NewServer(opts)
	require.NoError(t, err)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewServerRequiresGenerator(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestGenerate(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/generate", generateRequest{Text: "Login", AcceptanceCriteria: loginCriteria})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[generateResponse](t, rec)
	assert.Equal(t, generator.PathRules, resp.Path)
	assert.NotEmpty(t, resp.RunID)
	require.Len(t, resp.Cases, 2)
	assert.Equal(t, testcase.PriorityHigh, resp.Cases[0].Priority)

	assert.Eventually(t, func() bool {
		run, err := env.store.GetRun(context.Background(), resp.RunID)
		return err == nil && run.CaseCount == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGenerateRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name string
		body string
	}{
		{"blank", `{"text": "  "}`},
		{"malformed", `{"text": `},
		{"unknown field", `{"story": "Login"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			env.server.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[map[string]string](t, rec), "error")
		})
	}
}

func TestIssueTestCases(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/api/issues/XRM-1/testcases", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[generateResponse](t, rec)
	assert.Equal(t, "XRM-1", resp.IssueKey)
	assert.Len(t, resp.Cases, 2)

	assert.Eventually(t, func() bool {
		runs, err := env.store.ListRuns(context.Background(), "XRM-1", 0)
		return err == nil && len(runs) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIssueRoutesWithoutTracker(t *testing.T) {
	env := newTestEnv(t, false)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/issues/XRM-1/testcases"},
		{http.MethodPost, "/api/issues/XRM-1/testcases"},
		{http.MethodGet, "/api/projects"},
	} {
		rec := env.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
	}
}

func TestIssueNotFound(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.do(t, http.MethodGet, "/api/issues/XRM-404/testcases", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublishGivenCases(t *testing.T) {
	env := newTestEnv(t, true)

	body := publishRequest{Cases: []testcase.TestCase{
		{Title: "TC-1: Verify login", Steps: []string{"Open page"}, ExpectedResult: "Logged in", Priority: testcase.PriorityHigh},
	}}
	rec := env.do(t, http.MethodPost, "/api/issues/XRM-1/testcases", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Project string            `json:"project"`
		Created []publish.Created `json:"created"`
		RunID   string            `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "XRM", resp.Project)
	require.Len(t, resp.Created, 1)
	assert.Equal(t, "XRM-101", resp.Created[0].Key)
	assert.Empty(t, resp.RunID)
	assert.Equal(t, []string{"Tests XRM-101->XRM-1"}, env.tracker.links)

	assert.Eventually(t, func() bool {
		tests, err := env.store.ListPublished(context.Background(), "XRM-1")
		return err == nil && len(tests) == 1 && tests[0].TestKey == "XRM-101"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPublishGeneratesWhenNoCases(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/api/issues/XRM-1/testcases", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Created []publish.Created `json:"created"`
		RunID   string            `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Created, 2)
	assert.NotEmpty(t, resp.RunID)
}

func TestPublishRejectsNonStory(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.do(t, http.MethodPost, "/api/issues/XRM-2/testcases", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, env.tracker.created)
}

func TestRuns(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		run := persistence.NewRun("XRM-7", "rules", "", nil, []testcase.TestCase{{Title: fmt.Sprintf("TC-%d", i)}})
		require.NoError(t, env.store.SaveRun(ctx, run))
	}

	rec := env.do(t, http.MethodGet, "/api/issues/XRM-7/runs?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]persistence.Run](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/api/issues/XRM-8/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/issues/XRM-7/runs?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProjects(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.do(t, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	projects := decode[[]tracker.Project](t, rec)
	require.Len(t, projects, 1)
	assert.Equal(t, "XRM", projects[0].Key)
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t, false)
	env.do(t, http.MethodPost, "/api/generate", generateRequest{AcceptanceCriteria: loginCriteria})

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storyqa_generations_total{path="rules"} 1`)
}

func TestLogs(t *testing.T) {
	env := newTestEnv(t, false)
	logx.NewLogger("api-test").Info("hello from the log test")

	rec := env.do(t, http.MethodGet, "/api/logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]logx.LogEntry](t, rec)
	assert.NotEmpty(t, entries)

	rec = env.do(t, http.MethodGet, "/api/logs?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &tracker.APIError{StatusCode: 404}, http.StatusNotFound},
		{"unauthorized", &tracker.APIError{StatusCode: 401}, http.StatusBadGateway},
		{"not a story", fmt.Errorf("%w: XRM-2", publish.ErrNotStory), http.StatusUnprocessableEntity},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", decode[map[string]string](t, rec)["version"])
}
