// Package store persists the user's settings and watched courses as a
// single document. Every write rewrites the whole document.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/example/badgerwatch/internal/enrollment"
	"go.uber.org/zap"
)

const (
	documentVersion = 1

	// DefaultAPIKey is the public grades API key used when none is configured.
	DefaultAPIKey = "db0b773feba0467688172d87b38f3f95"
)

type Term struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var DefaultTerm = Term{Code: "1262", Name: "Fall 2025"}

// Terms are the term options offered to the user.
var Terms = []Term{
	{Code: "1262", Name: "Fall 2025"},
	{Code: "1254", Name: "Spring 2025"},
	{Code: "1256", Name: "Summer 2025"},
}

type Config struct {
	Term         Term     `json:"term"`
	PhoneNumbers []string `json:"phoneNumbers"`
	APIKey       string   `json:"apiKey"`
}

func DefaultConfig() Config {
	return Config{Term: DefaultTerm, PhoneNumbers: []string{}, APIKey: DefaultAPIKey}
}

// document is the persisted shape.
type document struct {
	Version        int                                 `json:"version"`
	Term           Term                                `json:"term"`
	PhoneNumbers   []string                            `json:"phoneNumbers"`
	APIKey         string                              `json:"madGradesApiKey,omitempty"`
	WatchedCourses map[string]enrollment.WatchedCourse `json:"watchedCourses"`
}

func defaultDocument() document {
	cfg := DefaultConfig()
	return document{
		Version:        documentVersion,
		Term:           cfg.Term,
		PhoneNumbers:   cfg.PhoneNumbers,
		APIKey:         cfg.APIKey,
		WatchedCourses: map[string]enrollment.WatchedCourse{},
	}
}

func (d document) clone() document {
	d.PhoneNumbers = append([]string(nil), d.PhoneNumbers...)
	courses := make(map[string]enrollment.WatchedCourse, len(d.WatchedCourses))
	for id, c := range d.WatchedCourses {
		courses[id] = c.Clone()
	}
	d.WatchedCourses = courses
	return d
}

func (d document) config() Config {
	return Normalize(Config{Term: d.Term, PhoneNumbers: append([]string(nil), d.PhoneNumbers...), APIKey: d.APIKey})
}

// Backend is the medium holding the encoded document. Read returns
// ErrNoRecord when nothing has been written yet. Write must replace the
// document atomically with respect to readers.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

var ErrNoRecord = errors.New("no stored document")

// PersistenceError reports a failed read or write of the backing medium.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// Store caches the last good document in memory and serializes every
// read-modify-write through one mutex.
type Store struct {
	mu      sync.Mutex
	backend Backend
	doc     document
}

// Open loads the document from backend. A missing document is replaced by
// the defaults, which are written before Open returns. An unreadable or
// corrupt document is logged and the defaults are used in memory only.
func Open(ctx context.Context, backend Backend, logger *zap.Logger) *Store {
	s := &Store{backend: backend, doc: defaultDocument()}

	data, err := backend.Read(ctx)
	switch {
	case errors.Is(err, ErrNoRecord):
		if werr := s.write(ctx, s.doc); werr != nil {
			logger.Error("Failed to persist default config", zap.Error(werr))
		} else {
			logger.Info("Created default config")
		}
	case err != nil:
		logger.Warn("Stored config unreadable, using defaults", zap.Error(err))
	default:
		doc, derr := decode(data)
		if derr != nil {
			logger.Warn("Stored config is corrupt, using defaults", zap.Error(derr))
			break
		}
		s.doc = doc
		logger.Info("Loaded config", zap.Int("watched_courses", len(doc.WatchedCourses)))
	}
	return s
}

func decode(data []byte) (document, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, err
	}
	if doc.WatchedCourses == nil {
		doc.WatchedCourses = map[string]enrollment.WatchedCourse{}
	}
	if doc.PhoneNumbers == nil {
		doc.PhoneNumbers = []string{}
	}
	if doc.Term.Code == "" {
		doc.Term = DefaultTerm
	}
	doc.Version = documentVersion
	return doc, nil
}

func (s *Store) write(ctx context.Context, doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode", Err: err}
	}
	if err := s.backend.Write(ctx, data); err != nil {
		return &PersistenceError{Op: "write", Err: err}
	}
	return nil
}

// update applies fn to a copy of the document and persists it. If fn
// reports no change nothing is written. The cached document only advances
// when the write succeeds.
func (s *Store) update(ctx context.Context, fn func(d *document) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.clone()
	if !fn(&next) {
		return nil
	}
	if err := s.write(ctx, next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

func (s *Store) Load(ctx context.Context) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.config(), nil
}

// Save replaces the settings part of the document. Watched courses are kept.
func (s *Store) Save(ctx context.Context, cfg Config) error {
	cfg = Normalize(cfg)
	return s.update(ctx, func(d *document) bool {
		d.Term = cfg.Term
		d.PhoneNumbers = cfg.PhoneNumbers
		d.APIKey = cfg.APIKey
		return true
	})
}

func (s *Store) Watched(ctx context.Context) (map[string]enrollment.WatchedCourse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]enrollment.WatchedCourse, len(s.doc.WatchedCourses))
	for id, c := range s.doc.WatchedCourses {
		out[id] = c.Clone()
	}
	return out, nil
}

func (s *Store) PutWatched(ctx context.Context, courseID string, c enrollment.WatchedCourse) error {
	c = c.Clone()
	c.CourseID = courseID
	return s.update(ctx, func(d *document) bool {
		d.WatchedCourses[courseID] = c
		return true
	})
}

// RemoveWatched deletes the course record. Removing an unknown id writes nothing.
func (s *Store) RemoveWatched(ctx context.Context, courseID string) error {
	return s.update(ctx, func(d *document) bool {
		if _, ok := d.WatchedCourses[courseID]; !ok {
			return false
		}
		delete(d.WatchedCourses, courseID)
		return true
	})
}

// Normalize fills defaults and removes duplicate or blank phone numbers,
// keeping the first occurrence of each. PhoneNumbers is never nil
// afterwards, so a nil list is saved as [] and loads back empty.
func Normalize(cfg Config) Config {
	cfg.Term.Code = strings.TrimSpace(cfg.Term.Code)
	cfg.Term.Name = strings.TrimSpace(cfg.Term.Name)
	if cfg.Term.Code == "" {
		cfg.Term = DefaultTerm
	}
	if cfg.Term.Name == "" {
		cfg.Term.Name = termName(cfg.Term.Code)
	}

	seen := make(map[string]struct{}, len(cfg.PhoneNumbers))
	phones := make([]string, 0, len(cfg.PhoneNumbers))
	for _, p := range cfg.PhoneNumbers {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		phones = append(phones, p)
	}
	cfg.PhoneNumbers = phones

	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		cfg.APIKey = DefaultAPIKey
	}
	return cfg
}

func termName(code string) string {
	for _, t := range Terms {
		if t.Code == code {
			return t.Name
		}
	}
	return code
}
