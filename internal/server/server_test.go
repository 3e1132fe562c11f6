package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/repo-edu/repo-edu-sub001/internal/db"
	"github.com/repo-edu/repo-edu-sub001/internal/history"
	"github.com/repo-edu/repo-edu-sub001/internal/roster"
	"github.com/repo-edu/repo-edu-sub001/internal/storage"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *storage.Manager) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	rosters := storage.NewManager(t.TempDir(), nil)
	return New(cfg, rosters, history.NewStore(database), nil), rosters
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	w := do(t, srv, "GET", "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t, Config{AllowAll: true})

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestImportThenRead(t *testing.T) {
	srv, rosters := newTestServer(t, Config{})

	w := do(t, srv, "POST", "/api/profiles/course/import", ImportRequest{
		Members: []roster.MemberDraft{
			{Name: "Alice", Email: "alice@x.edu", GitUsername: "alice"},
			{Name: "Bob", Email: "bob@x.edu"},
			{Name: "Nobody"},
		},
		GroupSets: []roster.GroupSetDraft{{
			Name:   "Projects",
			Groups: []roster.GroupDraft{{Name: "Team 1", MemberEmails: []string{"alice@x.edu", "bob@x.edu"}}},
		}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", w.Code, w.Body.String())
	}
	var imp ImportResponse
	if err := json.Unmarshal(w.Body.Bytes(), &imp); err != nil {
		t.Fatal(err)
	}
	if imp.Members.Added != 2 || imp.Members.MissingEmail != 1 {
		t.Errorf("summary = %+v", imp.Members)
	}
	if len(imp.GroupSets) != 1 || !imp.GroupSets[0].Created {
		t.Errorf("group sets = %+v", imp.GroupSets)
	}

	saved, err := rosters.Load("course")
	if err != nil {
		t.Fatalf("roster not saved: %v", err)
	}
	gs, ok := saved.GroupSetByName("Projects")
	if !ok {
		t.Fatal("Projects group set missing")
	}
	if _, err := saved.AddAssignment(roster.Assignment{Name: "hw1", GroupSetID: gs.ID}); err != nil {
		t.Fatal(err)
	}
	if err := rosters.Save("course", saved); err != nil {
		t.Fatal(err)
	}

	w = do(t, srv, "GET", "/api/profiles", nil)
	var names []string
	if err := json.Unmarshal(w.Body.Bytes(), &names); err != nil || len(names) != 1 || names[0] != "course" {
		t.Errorf("profiles = %s", w.Body.String())
	}

	w = do(t, srv, "GET", "/api/profiles/course/roster", nil)
	var got roster.Roster
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Students) != 2 {
		t.Errorf("students = %d, want 2", len(got.Students))
	}

	w = do(t, srv, "GET", "/api/profiles/course/assignments/hw1/validate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("validate status = %d: %s", w.Code, w.Body.String())
	}
	var vr validationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &vr); err != nil {
		t.Fatal(err)
	}
	if !vr.Blocking || len(vr.Issues) != 1 || vr.Issues[0].Message == "" {
		t.Errorf("validation = %+v, want one blocking missing-username issue", vr)
	}

	w = do(t, srv, "GET", "/api/profiles/course/assignments/hw1/validate?identity=email", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &vr); err != nil {
		t.Fatal(err)
	}
	if vr.Blocking || len(vr.Issues) != 0 {
		t.Errorf("email identity validation = %+v, want clean", vr)
	}

	w = do(t, srv, "GET", "/api/profiles/course/history", nil)
	var entries []history.Entry
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Kind != history.KindImport {
		t.Errorf("history = %s", w.Body.String())
	}
}

func TestNotFoundAndBadRequests(t *testing.T) {
	srv, rosters := newTestServer(t, Config{})
	if err := rosters.Save("course", roster.New()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		method, path string
		body         any
		want         int
	}{
		{"GET", "/api/profiles/missing/roster", nil, http.StatusNotFound},
		{"GET", "/api/profiles/.bad/roster", nil, http.StatusBadRequest},
		{"GET", "/api/profiles/course/assignments/nope/validate", nil, http.StatusNotFound},
		{"GET", "/api/profiles/course/assignments/nope/validate?identity=ssh", nil, http.StatusBadRequest},
		{"POST", "/api/profiles/course/import", map[string]any{"students": []string{}}, http.StatusBadRequest},
		{"GET", "/api/profiles/course/validate", nil, http.StatusOK},
	}
	for _, tt := range tests {
		w := do(t, srv, tt.method, tt.path, tt.body)
		if w.Code != tt.want {
			t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.path, w.Code, tt.want, w.Body.String())
		}
	}
}

func TestConcurrentImportsKeepEveryMember(t *testing.T) {
	srv, rosters := newTestServer(t, Config{})
	const clients = 6

	bodies := make([][]byte, clients)
	for i := range bodies {
		b, err := json.Marshal(ImportRequest{Members: []roster.MemberDraft{
			{Name: fmt.Sprintf("Student %d", i), Email: fmt.Sprintf("s%d@x.edu", i)},
		}})
		if err != nil {
			t.Fatal(err)
		}
		bodies[i] = b
	}

	codes := make([]int, clients)
	var wg sync.WaitGroup
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest("POST", "/api/profiles/course/import", bytes.NewReader(bodies[i]))
			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, req)
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("import %d status = %d", i, code)
		}
	}
	saved, err := rosters.Load("course")
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Students) != clients {
		t.Errorf("students = %d, want %d", len(saved.Students), clients)
	}
}
