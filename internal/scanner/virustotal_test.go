package scanner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVirusTotalClient_Submit(t *testing.T) {
	t.Run("successful submission", func(t *testing.T) {
		var gotKey, gotURL string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.Header.Get("x-apikey")
			if err := r.ParseForm(); err != nil {
				t.Fatalf("Unexpected error: %+v", err)
			}
			gotURL = r.PostFormValue("url")
			_, _ = w.Write([]byte(`{"data": {"id": "analysis-1"}}`))
		}))
		defer server.Close()

		client := NewVirusTotalClient("vt-key", WithVirusTotalBaseURL(server.URL))
		handle, err := client.Submit(context.Background(), "https://example.com")
		if err != nil {
			t.Fatalf("Unexpected error: %+v", err)
		}
		if handle != "analysis-1" {
			t.Errorf("Expected handle %q, got %q", "analysis-1", handle)
		}
		if gotKey != "vt-key" {
			t.Errorf("Expected API key header %q, got %q", "vt-key", gotKey)
		}
		if gotURL != "https://example.com" {
			t.Errorf("Expected submitted URL %q, got %q", "https://example.com", gotURL)
		}
	})

	t.Run("missing API key fails fast", func(t *testing.T) {
		client := NewVirusTotalClient("")
		_, err := client.Submit(context.Background(), "https://example.com")
		if err != ErrNoAPIKey {
			t.Errorf("Expected ErrNoAPIKey, got %+v", err)
		}
	})
}

func TestVirusTotalClient_Report(t *testing.T) {
	t.Run("queued analysis", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data": {"attributes": {"status": "queued", "stats": {}}}}`))
		}))
		defer server.Close()

		client := NewVirusTotalClient("vt-key", WithVirusTotalBaseURL(server.URL))
		report, err := client.Report(context.Background(), "analysis-1")
		if err != nil {
			t.Fatalf("Unexpected error: %+v", err)
		}
		if report == nil {
			t.Fatal("Expected a report")
		}
		if report.Completed() {
			t.Error("Expected a queued report to be non-terminal")
		}
	})

	t.Run("completed analysis", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data": {"attributes": {"status": "completed", "stats": {"malicious": 2, "suspicious": 0, "harmless": 60}}}}`))
		}))
		defer server.Close()

		client := NewVirusTotalClient("vt-key", WithVirusTotalBaseURL(server.URL))
		report, err := client.Report(context.Background(), "analysis-1")
		if err != nil {
			t.Fatalf("Unexpected error: %+v", err)
		}
		if !report.Completed() {
			t.Fatal("Expected a completed report")
		}
		if report.Stats.Malicious != 2 || report.Stats.Harmless != 60 {
			t.Errorf("Unexpected stats: %#v", report.Stats)
		}
	})

	t.Run("not found means not ready", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewVirusTotalClient("vt-key", WithVirusTotalBaseURL(server.URL))
		report, err := client.Report(context.Background(), "analysis-1")
		if err != nil {
			t.Fatalf("Expected 404 to be a silent miss, got %+v", err)
		}
		if report != nil {
			t.Errorf("Expected no report, got %#v", report)
		}
	})
}
