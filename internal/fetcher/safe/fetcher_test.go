package safefetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// The guarded client refuses loopback targets, so a local test server is
// exactly the address class that must be rejected.
func TestFetchBlocksLoopbackAddresses(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("should never be reached"))
	}))
	defer srv.Close()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected loopback fetch to be blocked")
	}
}

func TestFetchRejectsDisallowedScheme(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), "ftp://example.com/file")
	if err == nil {
		t.Fatal("expected non-http scheme to be rejected")
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
