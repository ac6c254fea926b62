package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"storyqa/pkg/config"
	"storyqa/pkg/generator"
	"storyqa/pkg/logx"
	"storyqa/pkg/persistence"
	"storyqa/pkg/publish"
	"storyqa/pkg/testcase"
	"storyqa/pkg/tracker"
)

const maxBodyBytes = 1 << 20

type generateRequest struct {
	Text               string `json:"text"`
	AcceptanceCriteria string `json:"acceptance_criteria"`
}

type generateResponse struct {
	IssueKey   string              `json:"issue_key,omitempty"`
	RunID      string              `json:"run_id"`
	Path       generator.Path      `json:"path"`
	ModelError string              `json:"model_error,omitempty"`
	Cases      []testcase.TestCase `json:"cases"`
}

type publishRequest struct {
	Project string              `json:"project"`
	Cases   []testcase.TestCase `json:"cases"`
}

type publishResponse struct {
	*publish.Result
	RunID string `json:"run_id,omitempty"`
}

// handleGenerate implements POST /api/generate: raw text in, cases out.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.AcceptanceCriteria) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("text or acceptance_criteria is required"))
		return
	}

	out := s.opts.Generator.Generate(r.Context(), req.Text, req.AcceptanceCriteria)
	run := s.recordRun("", out)
	writeJSON(w, http.StatusOK, newGenerateResponse("", run.ID, out))
}

// handleIssueTestCases implements GET /api/issues/{key}/testcases.
func (s *Server) handleIssueTestCases(w http.ResponseWriter, r *http.Request) {
	if s.opts.Tracker == nil {
		s.writeError(w, http.StatusServiceUnavailable, config.ErrJiraNotConfigured)
		return
	}
	key := chi.URLParam(r, "key")

	issue, err := s.opts.Tracker.GetIssue(r.Context(), key)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	out := s.generateForIssue(r, issue)
	run := s.recordRun(issue.Key, out)
	writeJSON(w, http.StatusOK, newGenerateResponse(issue.Key, run.ID, out))
}

// handlePublish implements POST /api/issues/{key}/testcases. Cases from the
// body are published as given; an empty list generates them first.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		s.writeError(w, http.StatusServiceUnavailable, config.ErrJiraNotConfigured)
		return
	}
	var req publishRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	key := chi.URLParam(r, "key")

	issue, err := s.opts.Tracker.GetIssue(r.Context(), key)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	cases := req.Cases
	var runID string
	if len(cases) == 0 {
		out := s.generateForIssue(r, issue)
		runID = s.recordRun(issue.Key, out).ID
		cases = out.Cases
	}

	target := req.Project
	if target == "" {
		target = s.opts.DefaultProject
	}
	projects, err := s.opts.Tracker.ListProjects(r.Context())
	if err != nil {
		s.logger.Warn("Could not list projects, resolving %q without them: %v", target, err)
	}

	result, err := s.publisher.Publish(r.Context(), issue, cases, target, projects)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.recordPublished(issue.Key, runID, result)
	writeJSON(w, http.StatusOK, publishResponse{Result: result, RunID: runID})
}

// handleRuns implements GET /api/issues/{key}/runs.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.opts.Runs == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("history is not enabled"))
		return
	}
	limit := persistence.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	runs, err := s.opts.Runs.ListRuns(r.Context(), chi.URLParam(r, "key"), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []persistence.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleProjects implements GET /api/projects.
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if s.opts.Tracker == nil {
		s.writeError(w, http.StatusServiceUnavailable, config.ErrJiraNotConfigured)
		return
	}
	projects, err := s.opts.Tracker.ListProjects(r.Context())
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	if projects == nil {
		projects = []tracker.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

// handleLogs implements GET /api/logs?domain=&since=RFC3339.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var since time.Time
	if raw := query.Get("since"); raw != "" {
		var err error
		since, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, errors.New("invalid since parameter (use RFC3339)"))
			return
		}
	}
	entries := logx.GetRecentLogEntries(query.Get("domain"), since)
	if entries == nil {
		entries = []logx.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) generateForIssue(r *http.Request, issue *tracker.Issue) generator.Outcome {
	text := generator.StoryText(issue.Fields.Summary, issue.DescriptionText())
	return s.opts.Generator.Generate(r.Context(), text, issue.AcceptanceCriteriaText())
}

func (s *Server) recordRun(issueKey string, out generator.Outcome) *persistence.Run {
	model := ""
	if out.Path == generator.PathModel || out.ModelErr != nil {
		model = s.opts.ModelName
	}
	run := persistence.NewRun(issueKey, string(out.Path), model, out.ModelErr, out.Cases)
	persistence.PersistRun(run, s.opts.Persist)
	return run
}

func (s *Server) recordPublished(storyKey, runID string, result *publish.Result) {
	if len(result.Created) == 0 {
		return
	}
	now := time.Now().UTC()
	tests := make([]persistence.PublishedTest, 0, len(result.Created))
	for _, c := range result.Created {
		tests = append(tests, persistence.PublishedTest{
			RunID:     runID,
			StoryKey:  storyKey,
			TestKey:   c.Key,
			Title:     c.Title,
			Project:   result.Project,
			CreatedAt: now,
		})
	}
	persistence.PersistPublished(tests, s.opts.Persist)
}

func newGenerateResponse(issueKey, runID string, out generator.Outcome) generateResponse {
	resp := generateResponse{
		IssueKey: issueKey,
		RunID:    runID,
		Path:     out.Path,
		Cases:    out.Cases,
	}
	if out.ModelErr != nil {
		resp.ModelError = out.ModelErr.Error()
	}
	return resp
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
