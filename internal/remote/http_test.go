package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeServer stores snapshot bodies by request path.
type fakeServer struct {
	mu     sync.Mutex
	bodies map[string][]byte
	auth   []string
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{bodies: map[string][]byte{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		fs.auth = append(fs.auth, r.Header.Get("Authorization"))

		if r.URL.Path == "/api/v1/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		switch r.Method {
		case http.MethodGet:
			body, ok := fs.bodies[r.URL.Path]
			if !ok {
				w.Header().Set("Content-Type", "application/problem+json")
				w.WriteHeader(http.StatusNotFound)
				io.WriteString(w, `{"title":"Not Found","status":404,"detail":"no snapshot"}`)
				return
			}
			w.Write(body)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			fs.bodies[r.URL.Path] = body
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)
	return fs, srv
}

func TestHTTP_PushPull(t *testing.T) {
	fs, srv := newFakeServer(t)
	r := NewHTTP(srv.URL+"/", "client-key", time.Second)
	ctx := context.Background()

	if _, err := r.Pull(ctx, "ada"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Pull before push: got %v, want ErrNotFound", err)
	}

	want := testSnapshot("Ada", time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC))
	if err := r.Push(ctx, "ada", want); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	got, err := r.Pull(ctx, "ada")
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	assertSnapshot(t, got, want)

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(fs.bodies["/api/v1/users/ada/snapshot"], &doc); err != nil {
		t.Fatalf("stored body: %v", err)
	}
	if _, ok := doc["updated_at"]; !ok {
		t.Errorf("pushed document missing updated_at: %s", fs.bodies["/api/v1/users/ada/snapshot"])
	}
	for _, a := range fs.auth {
		if a != "Bearer client-key" {
			t.Errorf("Authorization = %q", a)
		}
	}
}

func TestHTTP_Ping(t *testing.T) {
	_, srv := newFakeServer(t)
	if err := NewHTTP(srv.URL, "", 0).Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestHTTP_ProblemDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"title":"Unauthorized","status":401,"detail":"Invalid API key"}`)
	}))
	defer srv.Close()

	err := NewHTTP(srv.URL, "wrong", time.Second).Push(context.Background(), "ada", testSnapshot("Ada", time.Now()))
	if err == nil || !strings.Contains(err.Error(), "Invalid API key") {
		t.Errorf("Push() error = %v, want problem detail", err)
	}
}

func TestHTTP_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewHTTP(url, "", time.Second).Pull(context.Background(), "ada"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Pull() error = %v, want transport error", err)
	}
}

func TestHTTP_EscapesUserID(t *testing.T) {
	if got := snapshotPath("a/b"); got != "/api/v1/users/a%2Fb/snapshot" {
		t.Errorf("snapshotPath = %q", got)
	}
}
