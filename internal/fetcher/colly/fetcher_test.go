package collyfetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchReturnsPageContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><head><title>Widget Co</title></head><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "footprint-test"})
	page, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if page.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", page.StatusCode)
	}
	if !strings.Contains(string(page.HTML), "Widget Co") {
		t.Fatalf("expected body in HTML, got %q", page.HTML)
	}
	if page.URL == "" {
		t.Fatal("expected URL to be recorded")
	}
}

func TestFetchSurfacesNonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{})
	page, err := f.Fetch(context.Background(), srv.URL+"/missing")
	if err != nil {
		t.Fatalf("expected status to be surfaced without error, got %v", err)
	}
	if page.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", page.StatusCode)
	}
}

func TestFetchHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(Config{})
	_, err := f.Fetch(ctx, "http://203.0.113.1/never")
	if err == nil {
		t.Fatal("expected error from canceled context")
	}
}
