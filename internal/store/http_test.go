package store

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrWong99/fabula/pkg/story"
)

func TestHTTPSource_Fetch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stories/jungle.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"title": "x"}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/stories/", WithHTTPClient(srv.Client()))
	raw, err := src.Fetch(context.Background(), "jungle.json")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(raw) != `{"title": "x"}` {
		t.Errorf("unexpected content: %s", raw)
	}
}

func TestHTTPSource_FetchNotFoundCarriesStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	src := NewHTTPSource(srv.URL, WithHTTPClient(srv.Client()))
	_, err := src.Fetch(context.Background(), "absent.json")
	var terr *story.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if terr.Status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", terr.Status)
	}
}

func TestHTTPSource_FetchConnectionRefused(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // refuse connections from here on

	src := NewHTTPSource(srv.URL)
	_, err := src.Fetch(context.Background(), "jungle.json")
	var terr *story.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
}

func TestHTTPSource_Manifest(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+ManifestName {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"stories": ["a.json"]}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, WithHTTPClient(srv.Client()))
	refs, err := src.Manifest(context.Background())
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if len(refs) != 1 || refs[0] != "a.json" {
		t.Errorf("refs = %v, want [a.json]", refs)
	}
}

func TestHTTPSource_FetchHonorsContext(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := NewHTTPSource(srv.URL, WithHTTPClient(srv.Client()))
	if _, err := src.Fetch(ctx, "jungle.json"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestHTTPSource_BreakerFailsFast(t *testing.T) {
	t.Parallel()
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 2, ResetTimeout: time.Hour})
	src := NewHTTPSource(srv.URL, WithHTTPClient(srv.Client()), WithBreaker(b))

	for i := 0; i < 2; i++ {
		if _, err := src.Fetch(context.Background(), "jungle.json"); err == nil {
			t.Fatalf("fetch %d: expected error", i)
		}
	}
	if hits != 2 {
		t.Fatalf("server hits = %d, want 2", hits)
	}

	_, err := src.Fetch(context.Background(), "jungle.json")
	var terr *story.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %T, want *story.TransportError", err)
	}
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("err = %v, want wrapped ErrBreakerOpen", err)
	}
	if hits != 2 {
		t.Errorf("open breaker reached the server, hits = %d", hits)
	}
}
