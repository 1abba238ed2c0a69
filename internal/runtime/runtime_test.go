package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/voxilabs/voxi-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.HTTP.Bind = "127.0.0.1"
	cfg.HTTP.Port = 0
	cfg.Bus.Embedded = true
	cfg.Bus.Port = -1
	cfg.EventStore.Path = filepath.Join(t.TempDir(), "journal.db")
	cfg.Recognizer.Mode = "mock"
	cfg.Recognizer.MockIntervalMS = 2
	cfg.Permissions.Mode = "static"
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func post(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(""))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestRuntimeServesCaptureFlow(t *testing.T) {
	rt := New(testConfig(t), newLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Start(ctx) }()
	defer func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("runtime exited with error: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("runtime did not stop")
		}
	}()

	waitFor(t, "runtime ready", rt.Ready)
	base := "http://" + rt.Addr()

	if code := getJSON(t, base+"/readyz", nil); code != http.StatusOK {
		t.Fatalf("expected ready, got %d", code)
	}
	if code := post(t, base+"/v1/capture/toggle"); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}

	var snap struct {
		SessionID  string `json:"session_id"`
		State      string `json:"state"`
		Transcript string `json:"transcript"`
	}
	waitFor(t, "scripted transcript", func() bool {
		getJSON(t, base+"/v1/capture", &snap)
		return strings.Contains(snap.Transcript, "mañana")
	})
	post(t, base+"/v1/capture/toggle")
	if code := post(t, base+"/v1/capture/save"); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}

	var listed struct {
		Notes []struct {
			Category string `json:"category"`
		} `json:"notes"`
	}
	getJSON(t, base+"/v1/notes", &listed)
	if len(listed.Notes) != 1 || listed.Notes[0].Category != "Trabajo" {
		t.Fatalf("unexpected notes %+v", listed.Notes)
	}

	var journal struct {
		Events []struct {
			Type string `json:"type"`
		} `json:"events"`
	}
	getJSON(t, base+"/v1/sessions/"+snap.SessionID+"/events", &journal)
	var sawSave bool
	for _, e := range journal.Events {
		if e.Type == "note.saved" {
			sawSave = true
		}
	}
	if !sawSave {
		t.Fatalf("expected note.saved in journal, got %+v", journal.Events)
	}
}

func TestRuntimeRejectsUnknownPermissionMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bus.Embedded = false
	cfg.Permissions.Mode = "prompt"
	if err := New(cfg, newLogger()).Start(context.Background()); err == nil {
		t.Fatal("expected error for unknown permissions mode")
	}
}
