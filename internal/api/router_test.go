package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voxilabs/voxi-core/internal/capture"
	"github.com/voxilabs/voxi-core/internal/classify"
	"github.com/voxilabs/voxi-core/internal/config"
	"github.com/voxilabs/voxi-core/internal/eventstore"
	"github.com/voxilabs/voxi-core/internal/notes"
	"github.com/voxilabs/voxi-core/internal/permission"
	"github.com/voxilabs/voxi-core/internal/recognizer"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testServer struct {
	srv     *httptest.Server
	session *capture.Session
	store   *notes.Store
	journal *eventstore.Store
	ready   atomic.Bool
}

func newTestServer(t *testing.T, speech permission.State) *testServer {
	t.Helper()
	log := newLogger()
	journal, err := eventstore.Open(context.Background(), config.EventStoreConfig{
		Path:          filepath.Join(t.TempDir(), "journal.db"),
		RetentionMode: "session",
		MaxSessions:   10,
	}, log)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = journal.Close() })

	categories := classify.NewCategorySet(nil, "")
	store := notes.NewStore()
	session := capture.NewSession(context.Background(), capture.Options{
		Coordinator: permission.NewCoordinator(permission.Static(speech), permission.Static(permission.StateGranted), log),
		Recognizer:  recognizer.NewScripted(nil, 2*time.Millisecond),
		Pipeline:    classify.NewPipeline(nil, categories, log),
		Store:       store,
		Logger:      log,
	})
	t.Cleanup(session.Close)

	ts := &testServer{session: session, store: store, journal: journal}
	ts.ready.Store(true)
	ts.srv = httptest.NewServer(NewRouter(Options{
		Session:    session,
		Notes:      store,
		Categories: categories,
		Journal:    journal,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
		Ready:  ts.ready.Load,
		Logger: log,
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t, permission.StateGranted)

	if resp, body := ts.do(t, http.MethodGet, "/healthz", ""); resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.StatusCode, body)
	}
	ts.ready.Store(false)
	if resp, _ := ts.do(t, http.MethodGet, "/readyz", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when not ready, got %d", resp.StatusCode)
	}
	if resp, body := ts.do(t, http.MethodGet, "/metrics", ""); resp.StatusCode != http.StatusOK || string(body) != "# metrics" {
		t.Fatalf("unexpected metrics response %d %q", resp.StatusCode, body)
	}
}

func TestCaptureRoundTrip(t *testing.T) {
	ts := newTestServer(t, permission.StateGranted)

	resp, _ := ts.do(t, http.MethodPost, "/v1/capture/toggle", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(ts.session.Transcript(), "mañana") {
		if time.Now().After(deadline) {
			t.Fatalf("transcript never completed: %q", ts.session.Transcript())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if resp, _ := ts.do(t, http.MethodPost, "/v1/capture/save", ""); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while running, got %d", resp.StatusCode)
	}
	ts.do(t, http.MethodPost, "/v1/capture/toggle", "")

	resp, body := ts.do(t, http.MethodPost, "/v1/capture/save", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	var note notes.Note
	if err := json.Unmarshal(body, &note); err != nil {
		t.Fatalf("decode note: %v", err)
	}
	if note.Category != "Trabajo" || note.Text != "hola tengo una reunion de trabajo mañana" {
		t.Fatalf("unexpected note %+v", note)
	}

	resp, body = ts.do(t, http.MethodGet, "/v1/capture", "")
	var snap struct {
		State      string `json:"state"`
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if resp.StatusCode != http.StatusOK || snap.State != "idle" || snap.Transcript != "" {
		t.Fatalf("unexpected snapshot %d %+v", resp.StatusCode, snap)
	}
}

func TestToggleDeniedStaysIdle(t *testing.T) {
	ts := newTestServer(t, permission.StateDenied)
	ts.do(t, http.MethodPost, "/v1/capture/toggle", "")
	deadline := time.Now().Add(2 * time.Second)
	for ts.session.State() != capture.StateIdle {
		if time.Now().After(deadline) {
			t.Fatalf("expected idle, got %s", ts.session.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if resp, _ := ts.do(t, http.MethodPost, "/v1/capture/save", ""); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty transcript, got %d", resp.StatusCode)
	}
}

func TestNotesListingAndDeletion(t *testing.T) {
	ts := newTestServer(t, permission.StateGranted)
	ts.store.Append(notes.Note{ID: "a", Text: "uno", Category: "Salud"})
	ts.store.Append(notes.Note{ID: "b", Text: "dos", Category: "Trabajo"})
	ts.store.Append(notes.Note{ID: "c", Text: "tres", Category: "Salud"})

	_, body := ts.do(t, http.MethodGet, "/v1/notes?category=Salud", "")
	var listed notesResponse
	if err := json.Unmarshal(body, &listed); err != nil {
		t.Fatalf("decode notes: %v", err)
	}
	if len(listed.Notes) != 2 || listed.Notes[1].ID != "c" {
		t.Fatalf("unexpected filtered notes %+v", listed.Notes)
	}

	resp, body := ts.do(t, http.MethodPost, "/v1/notes/delete", `{"category":"Salud","positions":[1]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var deleted deleteResponse
	if err := json.Unmarshal(body, &deleted); err != nil {
		t.Fatalf("decode delete: %v", err)
	}
	if len(deleted.Removed) != 1 || deleted.Removed[0].ID != "c" {
		t.Fatalf("unexpected removed %+v", deleted.Removed)
	}

	if resp, _ := ts.do(t, http.MethodPost, "/v1/notes/delete", `{"positions":[9]}`); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for out of range, got %d", resp.StatusCode)
	}
	if resp, _ := ts.do(t, http.MethodPost, "/v1/notes/delete", `{"positions":`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
	if ts.store.Len() != 2 {
		t.Fatalf("expected 2 notes left, got %d", ts.store.Len())
	}
}

func TestCategories(t *testing.T) {
	ts := newTestServer(t, permission.StateGranted)

	if resp, _ := ts.do(t, http.MethodPost, "/v1/categories", `{"name":" Viajes "}`); resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if resp, _ := ts.do(t, http.MethodPost, "/v1/categories", `{"name":"Salud"}`); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for built-in, got %d", resp.StatusCode)
	}
	if resp, _ := ts.do(t, http.MethodPost, "/v1/categories", `{"name":"  "}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank name, got %d", resp.StatusCode)
	}

	_, body := ts.do(t, http.MethodGet, "/v1/categories", "")
	var listed categoriesResponse
	if err := json.Unmarshal(body, &listed); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	last := listed.Categories[len(listed.Categories)-1]
	if last.Name != "Viajes" || last.BuiltIn {
		t.Fatalf("expected user category last, got %+v", last)
	}
}

func TestSessionEvents(t *testing.T) {
	ts := newTestServer(t, permission.StateGranted)
	ctx := context.Background()
	if err := ts.journal.AppendSession(ctx, "s1", "voxi-runtime"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := ts.journal.AppendEvent(ctx, eventstore.Event{SessionID: "s1", Type: "note.saved", Payload: []byte(`{"ok":true}`)}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	resp, body := ts.do(t, http.MethodGet, "/v1/sessions/s1/events", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Events []journalEvent `json:"events"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(out.Events) != 1 || out.Events[0].Type != "note.saved" || string(out.Events[0].Payload) != `{"ok":true}` {
		t.Fatalf("unexpected events %+v", out.Events)
	}
	if resp, _ := ts.do(t, http.MethodGet, "/v1/sessions/s1/events?limit=x", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}
