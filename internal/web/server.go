// Package web is the local JSON control API used by the UI and the CLI.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/example/badgerwatch/internal/catalog"
	"github.com/example/badgerwatch/internal/enrollment"
	"github.com/example/badgerwatch/internal/events"
	"github.com/example/badgerwatch/internal/grades"
	"github.com/example/badgerwatch/internal/liveness"
	"github.com/example/badgerwatch/internal/notify"
	"github.com/example/badgerwatch/internal/scheduler"
	"github.com/example/badgerwatch/internal/store"
	"go.uber.org/zap"
)

type Watcher interface {
	Add(ctx context.Context, c enrollment.WatchedCourse) (scheduler.AddResult, error)
	Remove(ctx context.Context, courseID string) error
	List() []scheduler.View
	Get(courseID string) (scheduler.View, bool)
}

type Settings interface {
	Load(ctx context.Context) (store.Config, error)
	Save(ctx context.Context, cfg store.Config) error
}

type Searcher interface {
	Search(ctx context.Context, termCode, query string) ([]catalog.CourseSummary, error)
}

// CourseInfo answers the extra detail views of a watched course.
type CourseInfo interface {
	FetchSyllabus(ctx context.Context, termCode, subjectCode, courseID string) (catalog.Syllabus, bool, error)
	SimilarCourses(ctx context.Context, termCode, subjectCode, designation, excludeID string) ([]catalog.SimilarCourse, error)
}

type Messenger interface {
	TestMessage(ctx context.Context, destination string) error
}

type GradeLookup interface {
	Lookup(ctx context.Context, designation string) (grades.Report, error)
}

type LiveStatus interface {
	Current() liveness.State
}

type Subscriber interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

type Server struct {
	Watcher  Watcher
	Settings Settings
	Catalog  Searcher
	Courses  CourseInfo
	Messages Messenger
	Grades   GradeLookup
	Live     LiveStatus
	Events   Subscriber
	Logger   *zap.Logger
}

// AddCourseRequest is the body of POST /api/courses. An empty term uses
// the configured one.
type AddCourseRequest struct {
	CourseID    string `json:"courseId"`
	TermCode    string `json:"termCode,omitempty"`
	SubjectCode string `json:"subjectCode"`
	Designation string `json:"courseDesignation"`
	Title       string `json:"title"`
}

type TestMessageRequest struct {
	Destination string `json:"destination"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/courses", s.handleCourses)
	mux.HandleFunc("POST /api/courses", s.handleAddCourse)
	mux.HandleFunc("GET /api/courses/{id}", s.handleCourse)
	mux.HandleFunc("DELETE /api/courses/{id}", s.handleRemoveCourse)
	mux.HandleFunc("GET /api/courses/{id}/syllabus", s.handleSyllabus)
	mux.HandleFunc("GET /api/courses/{id}/similar", s.handleSimilar)
	mux.HandleFunc("GET /api/settings", s.handleSettings)
	mux.HandleFunc("PUT /api/settings", s.handleSaveSettings)
	mux.HandleFunc("GET /api/terms", s.handleTerms)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/test-message", s.handleTestMessage)
	mux.HandleFunc("GET /api/grades", s.handleGrades)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Live.Current())
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Watcher.List())
}

func (s *Server) handleCourse(w http.ResponseWriter, r *http.Request) {
	v, ok := s.Watcher.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "course is not watched")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleAddCourse(w http.ResponseWriter, r *http.Request) {
	var req AddCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.TermCode) == "" {
		if cfg, err := s.Settings.Load(r.Context()); err == nil {
			req.TermCode = cfg.Term.Code
		}
	}

	res, err := s.Watcher.Add(r.Context(), enrollment.WatchedCourse{
		CourseID:    strings.TrimSpace(req.CourseID),
		TermCode:    strings.TrimSpace(req.TermCode),
		SubjectCode: strings.TrimSpace(req.SubjectCode),
		Designation: strings.TrimSpace(req.Designation),
		Title:       strings.TrimSpace(req.Title),
	})
	if err != nil {
		s.Logger.Warn("add course failed", zap.String("course_id", req.CourseID), zap.Error(err))
		writeError(w, addStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func addStatus(err error) int {
	var fe *catalog.FetchError
	switch {
	case errors.Is(err, scheduler.ErrInvalidCourse):
		return http.StatusBadRequest
	case errors.Is(err, scheduler.ErrNotStarted):
		return http.StatusServiceUnavailable
	case errors.Is(err, scheduler.ErrRemoved):
		return http.StatusConflict
	case errors.As(err, &fe), errors.Is(err, catalog.ErrDataShape):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleSyllabus(w http.ResponseWriter, r *http.Request) {
	v, ok := s.Watcher.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "course is not watched")
		return
	}
	syl, found, err := s.Courses.FetchSyllabus(r.Context(), v.TermCode, v.SubjectCode, v.CourseID)
	if err != nil {
		s.Logger.Warn("syllabus lookup failed", zap.String("course_id", v.CourseID), zap.Error(err))
		writeError(w, catalogStatus(err), err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no instructor-provided description")
		return
	}
	writeJSON(w, http.StatusOK, syl)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	v, ok := s.Watcher.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "course is not watched")
		return
	}
	out, err := s.Courses.SimilarCourses(r.Context(), v.TermCode, v.SubjectCode, v.Designation, v.CourseID)
	if err != nil {
		s.Logger.Warn("similar course search failed", zap.String("course_id", v.CourseID), zap.Error(err))
		writeError(w, catalogStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func catalogStatus(err error) int {
	var fe *catalog.FetchError
	switch {
	case errors.Is(err, catalog.ErrNoCatalogNumber):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fe), errors.Is(err, catalog.ErrDataShape):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleRemoveCourse(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Watcher.Remove(r.Context(), id); err != nil {
		s.Logger.Error("remove course failed", zap.String("course_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": id})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.Settings.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var cfg store.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := store.ValidatePhoneNumbers(cfg.PhoneNumbers); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Settings.Save(r.Context(), cfg); err != nil {
		s.Logger.Error("save settings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.handleSettings(w, r)
}

func (s *Server) handleTerms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, store.Terms)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing q")
		return
	}
	cfg, err := s.Settings.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	hits, err := s.Catalog.Search(r.Context(), cfg.Term.Code, q)
	if err != nil {
		s.Logger.Warn("search failed", zap.String("query", q), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Server) handleTestMessage(w http.ResponseWriter, r *http.Request) {
	var req TestMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	err := s.Messages.TestMessage(r.Context(), strings.TrimSpace(req.Destination))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, store.ErrInvalidPhone):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, notify.ErrNoRelay):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) handleGrades(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Grades.Lookup(r.Context(), r.URL.Query().Get("course"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rep)
	case errors.Is(err, grades.ErrInvalidDesignation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, grades.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.Logger.Warn("grades lookup failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// handleEvents streams hub events as server-sent events, starting with the
// current liveness.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	sub, cancel := s.Events.Subscribe(64)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, events.Event{Kind: events.LiveStatus, At: time.Now(), Data: s.Live.Current()}); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			if err := writeEvent(w, e); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, e events.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, b)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func Start(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		// event streams end when ctx does
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
