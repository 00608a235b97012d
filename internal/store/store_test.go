package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/badgerwatch/internal/enrollment"
	"go.uber.org/zap/zaptest"
)

// memBackend counts writes and can be told to fail them.
type memBackend struct {
	mu      sync.Mutex
	data    []byte
	readErr error
	failing bool
	writes  int
}

func (m *memBackend) Read(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	if m.data == nil {
		return nil, ErrNoRecord
	}
	return append([]byte(nil), m.data...), nil
}

func (m *memBackend) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("disk full")
	}
	m.writes++
	m.data = append([]byte(nil), data...)
	return nil
}

func testCourse(id string) enrollment.WatchedCourse {
	return enrollment.WatchedCourse{
		CourseID:    id,
		TermCode:    "1262",
		SubjectCode: "266",
		Designation: "COMP SCI 640",
		Title:       "Introduction to Computer Networks",
		Snapshot: enrollment.Snapshot{
			{Key: "LEC 001", Status: enrollment.StatusOpen, AvailableSeats: 3},
		},
		AddedAt: time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestOpenCreatesDefaultDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app-config.json")
	s := Open(context.Background(), NewFileBackend(path), zaptest.NewLogger(t))

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	cfg, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app-config.json")
	s := Open(ctx, NewFileBackend(path), zaptest.NewLogger(t))

	want := Config{
		Term:         Term{Code: "1254", Name: "Spring 2025"},
		PhoneNumbers: []string{"+16085551234", "badger@wisc.edu"},
		APIKey:       "abc123",
	}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("load = %+v, want %+v", got, want)
	}

	// and across a restart
	reopened := Open(ctx, NewFileBackend(path), zaptest.NewLogger(t))
	got, _ = reopened.Load(ctx)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("reopened = %+v, want %+v", got, want)
	}
}

func TestSaveNilPhonesLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app-config.json")
	s := Open(ctx, NewFileBackend(path), zaptest.NewLogger(t))

	if err := s.Save(ctx, Config{Term: Term{Code: "1254", Name: "Spring 2025"}, APIKey: "abc123"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	want := Config{Term: Term{Code: "1254", Name: "Spring 2025"}, PhoneNumbers: []string{}, APIKey: "abc123"}
	for _, st := range []*Store{s, Open(ctx, NewFileBackend(path), zaptest.NewLogger(t))} {
		got, err := st.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("load = %#v, want %#v", got, want)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"phoneNumbers": []`) {
		t.Fatalf("phone list not stored as an empty array:\n%s", data)
	}
}

func TestSaveKeepsWatchedCourses(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, &memBackend{}, zaptest.NewLogger(t))
	if err := s.PutWatched(ctx, "024798", testCourse("024798")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Save(ctx, Config{Term: Term{Code: "1256"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	w, _ := s.Watched(ctx)
	if _, ok := w["024798"]; !ok {
		t.Fatalf("watched course lost on save")
	}
	cfg, _ := s.Load(ctx)
	if cfg.Term.Name != "Summer 2025" || cfg.APIKey != DefaultAPIKey {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestWatchedPersistAcrossRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app-config.json")
	s := Open(ctx, NewFileBackend(path), zaptest.NewLogger(t))

	c := testCourse("024798")
	if err := s.PutWatched(ctx, c.CourseID, c); err != nil {
		t.Fatalf("put: %v", err)
	}

	reopened := Open(ctx, NewFileBackend(path), zaptest.NewLogger(t))
	w, err := reopened.Watched(ctx)
	if err != nil {
		t.Fatalf("watched: %v", err)
	}
	got, ok := w["024798"]
	if !ok {
		t.Fatalf("course missing after restart")
	}
	if !got.AddedAt.Equal(c.AddedAt) {
		t.Fatalf("added at = %v", got.AddedAt)
	}
	got.AddedAt, got.LastPolledAt = c.AddedAt, c.LastPolledAt
	if !reflect.DeepEqual(got, c) {
		t.Fatalf("course = %+v, want %+v", got, c)
	}
}

func TestWatchedReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, &memBackend{}, zaptest.NewLogger(t))
	_ = s.PutWatched(ctx, "1", testCourse("1"))

	w, _ := s.Watched(ctx)
	c := w["1"]
	c.Snapshot[0].AvailableSeats = 99

	again, _ := s.Watched(ctx)
	if again["1"].Snapshot[0].AvailableSeats != 3 {
		t.Fatalf("caller mutated stored snapshot")
	}
}

func TestRemoveUnknownWritesNothing(t *testing.T) {
	ctx := context.Background()
	mb := &memBackend{}
	s := Open(ctx, mb, zaptest.NewLogger(t))
	before := mb.writes

	if err := s.RemoveWatched(ctx, "nope"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if mb.writes != before {
		t.Fatalf("remove of unknown id wrote the document")
	}

	_ = s.PutWatched(ctx, "1", testCourse("1"))
	if err := s.RemoveWatched(ctx, "1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	w, _ := s.Watched(ctx)
	if len(w) != 0 {
		t.Fatalf("watched = %v", w)
	}
}

func TestCorruptDocumentFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app-config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := Open(ctx, NewFileBackend(path), zaptest.NewLogger(t))
	cfg, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Fatalf("config = %+v", cfg)
	}

	// nothing rewritten until an explicit save
	data, _ := os.ReadFile(path)
	if string(data) != "{not json" {
		t.Fatalf("corrupt file rewritten on open")
	}
}

func TestUnreadableBackendFallsBackToDefaults(t *testing.T) {
	mb := &memBackend{readErr: errors.New("permission denied")}
	s := Open(context.Background(), mb, zaptest.NewLogger(t))
	cfg, _ := s.Load(context.Background())
	if cfg.Term != DefaultTerm {
		t.Fatalf("term = %+v", cfg.Term)
	}
	if mb.writes != 0 {
		t.Fatalf("unreadable backend should not be overwritten on open")
	}
}

func TestFailedWriteKeepsPreviousDocument(t *testing.T) {
	ctx := context.Background()
	mb := &memBackend{}
	s := Open(ctx, mb, zaptest.NewLogger(t))
	_ = s.PutWatched(ctx, "1", testCourse("1"))
	good := append([]byte(nil), mb.data...)

	mb.failing = true
	err := s.PutWatched(ctx, "2", testCourse("2"))
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}

	w, _ := s.Watched(ctx)
	if _, ok := w["2"]; ok {
		t.Fatalf("failed write leaked into memory")
	}
	if string(mb.data) != string(good) {
		t.Fatalf("failed write changed stored document")
	}
}

func TestConcurrentPutsAreSerialized(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app-config.json")
	s := Open(ctx, NewFileBackend(path), zaptest.NewLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("%06d", i)
			if err := s.PutWatched(ctx, id, testCourse(id)); err != nil {
				t.Errorf("put %s: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	reopened := Open(ctx, NewFileBackend(path), zaptest.NewLogger(t))
	w, _ := reopened.Watched(ctx)
	if len(w) != 20 {
		t.Fatalf("persisted %d courses, want 20", len(w))
	}
}

func TestNormalize(t *testing.T) {
	cfg := Normalize(Config{
		Term:         Term{Code: " 1254 "},
		PhoneNumbers: []string{" +16085551234", "", "+16085551234", "b@wisc.edu"},
	})
	if cfg.Term != (Term{Code: "1254", Name: "Spring 2025"}) {
		t.Fatalf("term = %+v", cfg.Term)
	}
	if !reflect.DeepEqual(cfg.PhoneNumbers, []string{"+16085551234", "b@wisc.edu"}) {
		t.Fatalf("phones = %v", cfg.PhoneNumbers)
	}
	if cfg.APIKey != DefaultAPIKey {
		t.Fatalf("api key = %q", cfg.APIKey)
	}
}

func TestValidatePhoneNumbers(t *testing.T) {
	valid := []string{"+16085551234", "608-555-1234", "(608) 555 1234", "bucky@wisc.edu"}
	for _, v := range valid {
		if err := ValidatePhoneNumber(v); err != nil {
			t.Fatalf("%q rejected: %v", v, err)
		}
	}
	invalid := []string{"call me", "12", "+1 608 555 123a", "@wisc"}
	for _, v := range invalid {
		if err := ValidatePhoneNumber(v); !errors.Is(err, ErrInvalidPhone) {
			t.Fatalf("%q accepted (err=%v)", v, err)
		}
	}
	if err := ValidatePhoneNumbers([]string{"+16085551234", " ", "nope"}); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("err = %v", err)
	}
}
