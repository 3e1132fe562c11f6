package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/repo-edu/repo-edu-sub001/internal/history"
	"github.com/repo-edu/repo-edu-sub001/internal/reconcile"
	"github.com/repo-edu/repo-edu-sub001/internal/roster"
	"github.com/repo-edu/repo-edu-sub001/internal/storage"
	"github.com/repo-edu/repo-edu-sub001/internal/validate"
)

const maxImportBody = 8 << 20

func (s *Server) registerRoutes(r chi.Router) {
	r.Route("/api/profiles", func(r chi.Router) {
		r.Get("/", s.handleProfiles)
		r.Route("/{profile}", func(r chi.Router) {
			r.Get("/roster", s.handleRoster)
			r.Get("/validate", s.handleValidateRoster)
			r.Get("/assignments/{assignment}/validate", s.handleValidateAssignment)
			r.Post("/import", s.handleImport)
			r.Get("/history", s.handleHistory)
		})
	})
}

// issueView is an issue with its rendered message.
type issueView struct {
	validate.Issue
	Blocking bool   `json:"blocking"`
	Message  string `json:"message"`
}

type validationResponse struct {
	Assignment string      `json:"assignment,omitempty"`
	Blocking   bool        `json:"blocking"`
	Issues     []issueView `json:"issues"`
}

func newValidationResponse(r *roster.Roster, res validate.Result) validationResponse {
	out := validationResponse{Blocking: res.HasBlockingIssues(), Issues: make([]issueView, 0, len(res.Issues))}
	for _, is := range res.Issues {
		out.Issues = append(out.Issues, issueView{Issue: is, Blocking: is.Blocking(), Message: is.Message(r)})
	}
	return out
}

// ImportRequest is the body of POST /import.
type ImportRequest struct {
	Members   []roster.MemberDraft   `json:"members"`
	GroupSets []roster.GroupSetDraft `json:"group_sets"`
}

// ImportResponse reports what an import changed.
type ImportResponse struct {
	Members   reconcile.Summary          `json:"members"`
	Records   []reconcile.Record         `json:"records"`
	GroupSets []reconcile.GroupSetResult `json:"group_sets"`
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	names, err := s.rosters.Profiles()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) (string, *roster.Roster, bool) {
	profile := chi.URLParam(r, "profile")
	ros, err := s.rosters.Load(profile)
	switch {
	case errors.Is(err, storage.ErrRosterNotFound):
		writeError(w, http.StatusNotFound, err)
		return "", nil, false
	case errors.Is(err, storage.ErrInvalidProfile):
		writeError(w, http.StatusBadRequest, err)
		return "", nil, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return "", nil, false
	}
	return profile, ros, true
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	_, ros, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ros)
}

func (s *Server) handleValidateRoster(w http.ResponseWriter, r *http.Request) {
	_, ros, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newValidationResponse(ros, validate.Roster(ros)))
}

func (s *Server) handleValidateAssignment(w http.ResponseWriter, r *http.Request) {
	_, ros, ok := s.load(w, r)
	if !ok {
		return
	}
	mode, err := validate.ParseIdentityMode(r.URL.Query().Get("identity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	key := chi.URLParam(r, "assignment")
	res, err := validate.Assignment(ros, key, validate.Options{Identity: mode, DefaultTemplate: s.cfg.DefaultTemplate})
	if errors.Is(err, roster.ErrAssignmentNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := newValidationResponse(ros, res)
	out.Assignment = key
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	profile := chi.URLParam(r, "profile")
	if !storage.ValidProfile(profile) {
		writeError(w, http.StatusBadRequest, storage.ErrInvalidProfile)
		return
	}

	var req ImportRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImportBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var res reconcile.ImportResult
	out := ImportResponse{GroupSets: []reconcile.GroupSetResult{}}
	err := s.rosters.UpdateOrCreate(profile, func(ros *roster.Roster) error {
		res = reconcile.ImportMembers(ros, req.Members)
		out.Members, out.Records = res.Summary, res.Records
		for _, gs := range req.GroupSets {
			out.GroupSets = append(out.GroupSets, reconcile.ImportGroupSet(ros, gs))
		}
		roster.EnsureSystemGroupSets(ros)
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if s.history != nil {
		if _, err := s.history.RecordImport(r.Context(), profile, history.SourceAPI, r.RemoteAddr, res.Summary); err != nil {
			s.logger.Warn("recording import failed", "profile", profile, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	profile := chi.URLParam(r, "profile")
	if s.history == nil {
		writeJSON(w, http.StatusOK, []history.Entry{})
		return
	}
	f := history.Filter{Profile: profile, Kind: history.Kind(r.URL.Query().Get("kind"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	entries, err := s.history.List(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
