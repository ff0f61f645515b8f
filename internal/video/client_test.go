package video

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newProvider(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var auths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/rooms":
			var req struct {
				Name string `json:"name"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{
				"name": req.Name,
				"url":  "https://video.example/" + req.Name,
			})
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/rooms/"):
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &auths
}

func TestCreateAndDeleteRoom(t *testing.T) {
	srv, auths := newProvider(t)
	c := NewClient(srv.URL, "secret-key")

	url, err := c.CreateRoom(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if url != "https://video.example/sess-1" {
		t.Fatalf("room url %q", url)
	}
	if err := c.DeleteRoom(context.Background(), "sess-1"); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	for _, a := range *auths {
		if a != "Bearer secret-key" {
			t.Fatalf("auth header %q", a)
		}
	}
}

func TestProviderErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "")
	if _, err := c.CreateRoom(context.Background(), "sess-2"); err == nil {
		t.Fatalf("expected provider error")
	} else if !strings.Contains(err.Error(), "status=402") {
		t.Fatalf("error lacks status: %v", err)
	}
}

func TestUnconfiguredClient(t *testing.T) {
	var c *Client
	if _, err := c.CreateRoom(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("nil client: %v", err)
	}
	if err := NewClient("", "").DeleteRoom(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("empty base url: %v", err)
	}
}
