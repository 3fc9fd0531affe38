package greeting

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func TestFallback(t *testing.T) {
	got := Fallback([]string{"Christmas", " "})
	if !strings.Contains(got, "Christmas") {
		t.Fatalf("fallback %q does not name the occasion", got)
	}
	if got := Fallback(nil); got == "" {
		t.Fatal("empty fallback")
	}
}

func TestGenerateGreetingDisabled(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused"}, zerolog.Nop())
	if got, want := c.GenerateGreeting(context.Background(), []string{"Labour Day"}), Fallback([]string{"Labour Day"}); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestGenerateGreeting(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Happy Mid-Autumn!  "}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "secret", BaseURL: srv.URL + "/", Model: "test-model", Timeout: time.Second}, zerolog.Nop())
	got := c.GenerateGreeting(context.Background(), []string{"Mid-Autumn Festival"})
	if got != "Happy Mid-Autumn!" {
		t.Fatalf("got %q", got)
	}
	if gotReq.Model != "test-model" {
		t.Fatalf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || !strings.Contains(gotReq.Messages[1].Content, "Mid-Autumn Festival") {
		t.Fatalf("unexpected messages: %+v", gotReq.Messages)
	}
}

func TestGenerateGreetingFallsBackOnError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "secret", BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	names := []string{"Christmas"}
	for i := 0; i < 5; i++ {
		if got := c.GenerateGreeting(context.Background(), names); got != Fallback(names) {
			t.Fatalf("call %d: got %q", i, got)
		}
	}
	// The breaker opens after three consecutive failures.
	if n := calls.Load(); n != 3 {
		t.Fatalf("server saw %d calls, want 3", n)
	}
}
