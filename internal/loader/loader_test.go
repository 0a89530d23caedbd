package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoadSucceedsOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n"))
	}))
	defer srv.Close()

	l := New(Config{RequestTimeout: 2 * time.Second, MaxRetries: 2, RetryBackoff: time.Millisecond})
	m, err := l.Load(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(m.Body) != "#EXTM3U\n" {
		t.Fatalf("Body = %q", m.Body)
	}
}

func TestLoadFailsFastOn404(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	l := New(Config{RequestTimeout: 2 * time.Second, MaxRetries: 3, RetryBackoff: time.Millisecond})
	_, err := l.Load(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error on 404")
	}
	le, ok := err.(*LoadError)
	if !ok {
		t.Fatalf("expected *LoadError, got %T", err)
	}
	if le.Kind != KindHTTP || le.StatusCode == nil || *le.StatusCode != 404 {
		t.Fatalf("unexpected LoadError: %+v", le)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly 1 call on fatal 404, got %d", calls)
	}
}

func TestLoadRetriesOn500ThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("#EXTM3U\n"))
	}))
	defer srv.Close()

	l := New(Config{RequestTimeout: 2 * time.Second, MaxRetries: 3, RetryBackoff: time.Millisecond})
	m, err := l.Load(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(m.Body) != "#EXTM3U\n" {
		t.Fatalf("Body = %q", m.Body)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls (2 failures + 1 success), got %d", calls)
	}
}

func TestLoadExhaustsRetriesOn429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	l := New(Config{RequestTimeout: 2 * time.Second, MaxRetries: 2, RetryBackoff: time.Millisecond})
	_, err := l.Load(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	le, ok := err.(*LoadError)
	if !ok || !le.IsLastTry {
		t.Fatalf("expected final LoadError marked IsLastTry, got %+v", le)
	}
}
