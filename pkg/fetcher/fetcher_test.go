package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dtnitsch/lens-scraper/pkg/caching"
)

func TestGetHtmlBytes_SendsBrowserHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.Write([]byte("<p>ok</p>"))
	}))
	defer srv.Close()

	f := NewFetcher(time.Second, DefaultHeaders("test-agent"), nil)
	body, err := f.GetHtmlBytes(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("GetHtmlBytes() error = %v", err)
	}
	if string(body) != "<p>ok</p>" {
		t.Errorf("body = %q", body)
	}

	h := <-headers
	want := map[string]string{
		"User-Agent":      "test-agent",
		"Accept-Language": "en-US,en;q=0.5",
		"Referer":         "https://www.google.com/",
		"Dnt":             "1",
	}
	for k, v := range want {
		if got := h.Get(k); got != v {
			t.Errorf("header %s = %q, want %q", k, got, v)
		}
	}
}

func TestGetHtmlBytes_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewFetcher(time.Second, DefaultHeaders("x"), nil).GetHtmlBytes(context.Background(), srv.URL)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", statusErr.StatusCode)
	}
}

func TestGetHtmlBytes_StatusRange(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "non-authoritative", status: http.StatusNonAuthoritativeInfo},
		{name: "partial content", status: http.StatusPartialContent},
		{name: "not modified", status: http.StatusNotModified, wantErr: true},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.status != http.StatusNotModified {
					w.Write([]byte("body"))
				}
			}))
			defer srv.Close()

			body, err := NewFetcher(time.Second, DefaultHeaders("x"), nil).GetHtmlBytes(context.Background(), srv.URL)
			if tt.wantErr {
				var statusErr *StatusError
				if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.status {
					t.Fatalf("error = %v, want *StatusError with %d", err, tt.status)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetHtmlBytes() error = %v", err)
			}
			if string(body) != "body" {
				t.Errorf("body = %q, want %q", body, "body")
			}
		})
	}
}

func TestGetHtmlBytes_UnknownCharsetKeepsWholeBody(t *testing.T) {
	page := "<html><body>" + strings.Repeat("abcdefghij", 300) + "</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=x-no-such-encoding")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	body, err := NewFetcher(time.Second, DefaultHeaders("x"), nil).GetHtmlBytes(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("GetHtmlBytes() error = %v", err)
	}
	if string(body) != page {
		t.Errorf("body length = %d, want %d", len(body), len(page))
	}
}

func TestGetHtmlBytes_DecodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "café" in Latin-1
		w.Write([]byte{'c', 'a', 'f', 0xe9})
	}))
	defer srv.Close()

	body, err := NewFetcher(time.Second, DefaultHeaders("x"), nil).GetHtmlBytes(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("GetHtmlBytes() error = %v", err)
	}
	if string(body) != "café" {
		t.Errorf("body = %q, want %q", body, "café")
	}
}

func TestGetHtmlBytes_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	_, err := NewFetcher(50*time.Millisecond, DefaultHeaders("x"), nil).GetHtmlBytes(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("GetHtmlBytes() error = nil, want timeout")
	}
}

func TestGetHtmlBytes_UsesCache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	cache, err := caching.NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	f := NewFetcher(time.Second, DefaultHeaders("x"), cache)

	for i := 0; i < 3; i++ {
		body, err := f.GetHtmlBytes(context.Background(), srv.URL)
		if err != nil || string(body) != "fresh" {
			t.Fatalf("GetHtmlBytes() = %q, %v", body, err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
}
