package errors

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestRecentWindow(t *testing.T) {
	h := NewErrorHandler("", nil, Options{MaxErrors: 100, Window: time.Minute, CheckInterval: time.Hour})
	defer h.Stop()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	h.IncrementError()
	h.IncrementError()
	now = now.Add(30 * time.Second)
	h.IncrementError()

	if got := h.Recent(); got != 3 {
		t.Fatalf("Expected 3 recent errors, got %d", got)
	}

	now = now.Add(45 * time.Second)
	if got := h.Recent(); got != 1 {
		t.Errorf("Expected the first two errors to leave the window, got %d", got)
	}
	if got := h.Total(); got != 3 {
		t.Errorf("Expected total 3, got %d", got)
	}
}

func TestCrashOnBurst(t *testing.T) {
	var (
		mu       sync.Mutex
		shutdown bool
		exitCode = -1
	)
	exited := make(chan struct{})

	h := NewErrorHandler("", func() {
		mu.Lock()
		shutdown = true
		mu.Unlock()
	}, Options{
		MaxErrors:     2,
		Window:        time.Minute,
		CheckInterval: 5 * time.Millisecond,
		Exit: func(code int) {
			mu.Lock()
			exitCode = code
			mu.Unlock()
			close(exited)
		},
	})
	defer h.Stop()

	for i := 0; i < 3; i++ {
		h.HandlePanic("boom", nil)
	}

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the handler to shut down after the burst")
	}

	mu.Lock()
	defer mu.Unlock()
	if !shutdown {
		t.Error("Expected shutdown func to run before exit")
	}
	if exitCode != 1 {
		t.Errorf("Expected exit code 1, got %d", exitCode)
	}
}

func TestReportPayload(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h := NewErrorHandler(srv.URL, nil, Options{CheckInterval: time.Hour})
	defer h.Stop()

	h.Report(ReportErrorOptions{
		Error:   "Panic",
		Message: "algo salió mal",
		Source:  "Leveling",
		Stack:   strings.Repeat("x", maxStackLength+50),
	})

	var payload struct {
		Embeds []webhookEmbed `json:"embeds"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("Invalid webhook payload: %v", err)
	}
	if len(payload.Embeds) != 1 {
		t.Fatalf("Expected 1 embed, got %d", len(payload.Embeds))
	}
	embed := payload.Embeds[0]
	if embed.Author.Name != "Error Panic" {
		t.Errorf("Unexpected author %q", embed.Author.Name)
	}
	if len(embed.Fields) != 2 || embed.Fields[0].Value != "Leveling" {
		t.Fatalf("Unexpected fields %+v", embed.Fields)
	}
	if !strings.HasSuffix(embed.Fields[1].Value, "...```") {
		t.Error("Expected the stack to be truncated")
	}
}

func TestRecoverMiddleware(t *testing.T) {
	func() {
		defer RecoverMiddleware()()
		panic("recovered")
	}()
	// reaching this point means the panic did not escape
}
