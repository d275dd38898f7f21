// Package controlplanetest provides an in-memory control plane for tests.
package controlplanetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/model"
)

// DefaultScript is the status sequence a new revision reports on successive reads.
var DefaultScript = []model.RevisionStatus{
	model.RevisionCreating,
	model.RevisionQueued,
	model.RevisionAwaitingBuild,
	model.RevisionBuilding,
	model.RevisionAwaitingDeploy,
	model.RevisionDeploying,
	model.RevisionDeployed,
}

type revisionState struct {
	rev    model.Revision
	script []model.RevisionStatus
	served int
}

type failure struct {
	status    int
	remaining int
}

// Request is a request observed by the server.
type Request struct {
	Method string
	Path   string
	Header http.Header
}

// Server serves the deployment endpoints from memory.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	clock        time.Time
	order        []string
	deployments  map[string]*model.Deployment
	revisions    map[string][]*revisionState
	integrations []controlplane.GitHubIntegration
	repos        map[string][]controlplane.GitHubRepository
	brokenRepos  map[string]bool
	revFailures  failure
	requests     []Request

	// Script is used for revisions created through the API.
	Script []model.RevisionStatus
	// CustomURLDomain, when set, assigns https://{name}.{CustomURLDomain} as
	// custom_url once a revision reports DEPLOYED.
	CustomURLDomain string
}

// NewServer starts a fake control plane. It is closed when the test ends.
func NewServer(t interface{ Cleanup(func()) }) *Server {
	s := &Server{
		clock:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		deployments: make(map[string]*model.Deployment),
		revisions:   make(map[string][]*revisionState),
		repos:       make(map[string][]controlplane.GitHubRepository),
		brokenRepos: make(map[string]bool),
		Script:      DefaultScript,
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Route("/v2/deployments", func(r chi.Router) {
		r.Get("/", s.listDeployments)
		r.Post("/", s.createDeployment)
		r.Get("/{id}", s.getDeployment)
		r.Patch("/{id}", s.patchDeployment)
		r.Delete("/{id}", s.deleteDeployment)
		r.Get("/{id}/revisions", s.listRevisions)
		r.Get("/{id}/revisions/{revisionID}", s.getRevision)
	})
	r.Get("/v1/integrations/github/install", s.listIntegrations)
	r.Get("/v1/integrations/github/{id}/repos", s.listRepos)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()})
		s.mu.Unlock()

		if r.Header.Get("X-Api-Key") == "" {
			writeError(w, http.StatusUnauthorized, "missing X-Api-Key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tick advances the fake clock so every record gets a distinct timestamp.
func (s *Server) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// Seed stores a deployment as-is. Missing timestamps are filled in.
func (s *Server) Seed(d model.Deployment) *model.Deployment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.tick()
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	s.deployments[d.ID] = &d
	s.order = append(s.order, d.ID)
	return &d
}

// SeedRevision attaches a revision to a deployment and makes it the latest.
// The statuses are reported on successive reads, the last one repeating.
func (s *Server) SeedRevision(deploymentID string, rev model.Revision, statuses ...model.RevisionStatus) *model.Revision {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rev.ID == "" {
		rev.ID = uuid.NewString()
	}
	rev.DeploymentID = deploymentID
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = s.tick()
	}
	if len(statuses) == 0 {
		statuses = []model.RevisionStatus{rev.Status}
	}
	rev.Status = statuses[0]
	s.revisions[deploymentID] = append(s.revisions[deploymentID], &revisionState{rev: rev, script: statuses})
	if d, ok := s.deployments[deploymentID]; ok {
		d.LatestRevisionID = rev.ID
	}
	return &rev
}

// SetScript replaces the statuses a revision reports from its next read on.
func (s *Server) SetScript(deploymentID, revisionID string, statuses ...model.RevisionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rs := s.findRevision(deploymentID, revisionID); rs != nil {
		rs.script = statuses
		rs.served = 0
	}
}

// FailRevisionReads makes the next n revision reads fail. A status of 0
// drops the connection instead of answering.
func (s *Server) FailRevisionReads(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revFailures = failure{status: status, remaining: n}
}

// RevisionReads returns how many times a revision has been read.
func (s *Server) RevisionReads(deploymentID, revisionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs := s.findRevision(deploymentID, revisionID); rs != nil {
		return rs.served
	}
	return 0
}

// Deployment returns a copy of the stored deployment.
func (s *Server) Deployment(id string) (model.Deployment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deployments[id]
	if !ok {
		return model.Deployment{}, false
	}
	return *d, true
}

// Revisions returns the number of revisions of a deployment.
func (s *Server) Revisions(deploymentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.revisions[deploymentID])
}

// AddIntegration registers a GitHub integration and its repositories.
func (s *Server) AddIntegration(id, name string, repos ...controlplane.GitHubRepository) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.integrations = append(s.integrations, controlplane.GitHubIntegration{ID: id, Name: name})
	s.repos[id] = repos
}

// BreakIntegration makes the repository listing of an integration fail.
func (s *Server) BreakIntegration(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brokenRepos[id] = true
}

// Requests returns every request seen so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) findRevision(deploymentID, revisionID string) *revisionState {
	for _, rs := range s.revisions[deploymentID] {
		if rs.rev.ID == revisionID {
			return rs
		}
	}
	return nil
}

func (s *Server) listDeployments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = controlplane.DefaultPageSize
	}
	offset, _ := strconv.Atoi(q.Get("offset"))

	var matched []model.Deployment
	for _, id := range s.order {
		d := s.deployments[id]
		if nc := q.Get("name_contains"); nc != "" && !strings.Contains(d.Name, nc) {
			continue
		}
		if st := q.Get("status"); st != "" && string(d.Status) != st {
			continue
		}
		matched = append(matched, *d)
	}

	page := []model.Deployment{}
	if offset < len(matched) {
		end := min(offset+limit, len(matched))
		page = matched[offset:end]
	}
	writeJSON(w, http.StatusOK, controlplane.DeploymentList{Resources: page, Offset: offset})
}

func (s *Server) getDeployment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deployments[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "deployment not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) createDeployment(w http.ResponseWriter, r *http.Request) {
	var req model.DeploymentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.deployments {
		if d.Name == req.Name {
			writeError(w, http.StatusConflict, fmt.Sprintf("deployment %q already exists", req.Name))
			return
		}
	}

	now := s.tick()
	sc := req.SourceConfig
	src := req.SourceRevisionConfig
	d := &model.Deployment{
		ID:                   uuid.NewString(),
		Name:                 req.Name,
		Source:               req.Source,
		SourceConfig:         &sc,
		SourceRevisionConfig: &src,
		Status:               model.DeploymentAwaitingDatabase,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	s.deployments[d.ID] = d
	s.order = append(s.order, d.ID)
	s.newRevision(d, &src)

	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) newRevision(d *model.Deployment, src *model.SourceRevisionConfig) {
	now := s.tick()
	id := uuid.NewString()
	resource, _ := json.Marshal(map[string]string{
		"name": fmt.Sprintf("%s-%s-%s", d.Name, strings.ReplaceAll(id, "-", "")[:8], "x7"),
	})
	script := append([]model.RevisionStatus(nil), s.Script...)
	rs := &revisionState{
		rev: model.Revision{
			ID:                   id,
			DeploymentID:         d.ID,
			Status:               script[0],
			SourceRevisionConfig: src,
			Resource:             resource,
			CreatedAt:            now,
			UpdatedAt:            now,
		},
		script: script,
	}
	s.revisions[d.ID] = append(s.revisions[d.ID], rs)
	d.LatestRevisionID = id
	d.UpdatedAt = now
}

func (s *Server) patchDeployment(w http.ResponseWriter, r *http.Request) {
	var req model.DeploymentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deployments[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "deployment not found")
		return
	}

	if req.SourceConfig != nil {
		d.SourceConfig = req.SourceConfig
	}
	if req.CreatesRevision() {
		src := d.SourceRevisionConfig
		if req.SourceRevisionConfig != nil {
			src = req.SourceRevisionConfig
			d.SourceRevisionConfig = src
		}
		s.newRevision(d, src)
	}
	d.UpdatedAt = s.tick()

	writeJSON(w, http.StatusOK, d)
}

func (s *Server) deleteDeployment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := chi.URLParam(r, "id")
	if _, ok := s.deployments[id]; !ok {
		writeError(w, http.StatusNotFound, "deployment not found")
		return
	}
	delete(s.deployments, id)
	delete(s.revisions, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listRevisions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := chi.URLParam(r, "id")
	if _, ok := s.deployments[id]; !ok {
		writeError(w, http.StatusNotFound, "deployment not found")
		return
	}

	revs := s.revisions[id]
	out := make([]model.Revision, 0, len(revs))
	for i := len(revs) - 1; i >= 0; i-- {
		out = append(out, revs[i].rev)
	}
	writeJSON(w, http.StatusOK, controlplane.RevisionList{Resources: out})
}

func (s *Server) getRevision(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revFailures.remaining > 0 {
		s.revFailures.remaining--
		if s.revFailures.status == 0 {
			dropConnection(w)
			return
		}
		writeError(w, s.revFailures.status, "injected failure")
		return
	}

	depID := chi.URLParam(r, "id")
	rs := s.findRevision(depID, chi.URLParam(r, "revisionID"))
	if rs == nil {
		writeError(w, http.StatusNotFound, "revision not found")
		return
	}

	idx := min(rs.served, len(rs.script)-1)
	rs.served++
	rs.rev.Status = rs.script[idx]
	rs.rev.UpdatedAt = s.tick()

	if rs.rev.Status == model.RevisionDeployed {
		if d, ok := s.deployments[depID]; ok {
			d.ActiveRevisionID = rs.rev.ID
			d.Status = model.DeploymentReady
			if s.CustomURLDomain != "" {
				u := fmt.Sprintf("https://%s.%s", d.Name, s.CustomURLDomain)
				if d.SourceConfig == nil {
					d.SourceConfig = &model.SourceConfig{}
				}
				d.SourceConfig.CustomURL = &u
			}
		}
	}
	writeJSON(w, http.StatusOK, rs.rev)
}

func (s *Server) listIntegrations(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]controlplane.GitHubIntegration{}, s.integrations...)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listRepos(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := chi.URLParam(r, "id")
	if s.brokenRepos[id] {
		writeError(w, http.StatusInternalServerError, "integration unavailable")
		return
	}
	repos, ok := s.repos[id]
	if !ok {
		writeError(w, http.StatusNotFound, "integration not found")
		return
	}
	writeJSON(w, http.StatusOK, append([]controlplane.GitHubRepository{}, repos...))
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		writeError(w, http.StatusBadGateway, "cannot drop connection")
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	conn.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// Repo is shorthand for a GitHubRepository.
func Repo(owner, name string) controlplane.GitHubRepository {
	return controlplane.GitHubRepository{Owner: owner, Name: name}
}
