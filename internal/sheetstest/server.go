// Package sheetstest provides an in-memory fake of the spreadsheet and file
// APIs, served over httptest, for exercising the client and the retry path
// without network access.
package sheetstest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// scriptedFailure is a canned error response served instead of the next request.
type scriptedFailure struct {
	status int
	body   string
}

// Server is a fake API server. The zero value is not usable; call NewServer.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	spreadsheets map[string]*spreadsheet
	order        []string
	failures     []scriptedFailure
	requests     int
	rateLimited  int
	lastAuth     string
	notModified  int
	nextSheetID  int64
}

type spreadsheet struct {
	id       string
	title    string
	version  int
	created  time.Time
	modified time.Time
	sheets   []sheet
	values   map[string][][]any
}

type sheet struct {
	id    int64
	title string
	index int
	rows  int
	cols  int
}

// TB is the subset of testing.TB the server needs; GinkgoT() satisfies it too.
type TB interface {
	Helper()
	Cleanup(func())
}

// NewServer starts a fake server that is closed when the test ends.
func NewServer(t TB) *Server {
	t.Helper()

	s := &Server{
		spreadsheets: make(map[string]*spreadsheet),
		nextSheetID:  1,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(logRequests)
	r.Use(s.count)
	r.Use(s.requireBearer)
	r.Use(s.injectFailures)

	r.Route("/v4/spreadsheets", func(r chi.Router) {
		r.Post("/", s.createSpreadsheet)
		r.Get("/{id}", s.getSpreadsheet)
		r.Post("/{id}", s.spreadsheetAction)
		r.Get("/{id}/values/{range}", s.getValues)
		r.Put("/{id}/values/{range}", s.updateValues)
		r.Post("/{id}/values/{range}", s.valuesAction)
	})
	r.Route("/drive/v3/files", func(r chi.Router) {
		r.Get("/", s.listFiles)
		r.Delete("/{fileID}", s.deleteFile)
		r.Post("/{fileID}/copy", s.copyFile)
	})

	return r
}

// SheetsBaseURL returns the base URL to configure the client's Sheets endpoint with.
func (s *Server) SheetsBaseURL() string {
	return s.URL + "/v4/"
}

// DriveBaseURL returns the base URL to configure the client's Drive endpoint with.
func (s *Server) DriveBaseURL() string {
	return s.URL + "/drive/v3/"
}

// FailNextWithRateLimit makes the next n requests fail with a 429 error body.
func (s *Server) FailNextWithRateLimit(n int) {
	body := `{"error":{"code":429,"message":"Quota exceeded for quota metric 'Write requests'","status":"RESOURCE_EXHAUSTED"}}`
	s.FailNextWith(n, http.StatusTooManyRequests, body)
}

// FailNextWith makes the next n requests fail with the given status and body.
func (s *Server) FailNextWith(n, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range n {
		s.failures = append(s.failures, scriptedFailure{status: status, body: body})
	}
}

// Requests returns the number of requests the server has received.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// RateLimited returns the number of requests answered with a scripted failure.
func (s *Server) RateLimited() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rateLimited
}

// NotModified returns the number of conditional requests answered with 304.
func (s *Server) NotModified() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notModified
}

// LastAuthorization returns the Authorization header of the latest request.
func (s *Server) LastAuthorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

// Seed creates a spreadsheet titled title and returns its ID.
func (s *Server) Seed(title string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(title).id
}

// Exists reports whether a spreadsheet with the given ID exists.
func (s *Server) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.spreadsheets[id]
	return ok
}

// addLocked creates a spreadsheet with one default worksheet. s.mu must be held.
func (s *Server) addLocked(title string) *spreadsheet {
	now := time.Now().UTC().Truncate(time.Millisecond)
	sp := &spreadsheet{
		id:       strings.ReplaceAll(uuid.NewString(), "-", ""),
		title:    title,
		version:  1,
		created:  now,
		modified: now,
		values:   make(map[string][][]any),
	}
	sp.sheets = append(sp.sheets, sheet{id: 0, title: "Sheet1", index: 0, rows: 1000, cols: 26})
	s.spreadsheets[sp.id] = sp
	s.order = append(s.order, sp.id)
	return sp
}

func (s *Server) removeLocked(id string) {
	delete(s.spreadsheets, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		s.lastAuth = r.Header.Get("Authorization")
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Request is missing required authentication credential.", "UNAUTHENTICATED")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var f *scriptedFailure
		if len(s.failures) > 0 {
			f = &s.failures[0]
			s.failures = s.failures[1:]
			s.rateLimited++
		}
		s.mu.Unlock()

		if f != nil {
			w.Header().Set("Content-Type", "application/json; charset=UTF-8")
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, reason string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"status":  reason,
		},
	})
}
