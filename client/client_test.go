package client

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func TestNew(t *testing.T) {
	client := New()

	if client.HTTPClient == nil {
		t.Fatal("Expected HTTPClient to be initialized")
	}
	if client.HTTPClient.Timeout != defaultTimeout {
		t.Errorf("Expected timeout %v, got %v", defaultTimeout, client.HTTPClient.Timeout)
	}
	if client.UserAgent != userAgentValue {
		t.Errorf("Expected user agent '%s', got '%s'", userAgentValue, client.UserAgent)
	}
	if client.HTTPClient.Jar == nil {
		t.Error("Expected a cookie jar")
	}
	if client.MaxBodyBytes != defaultMaxBodyBytes {
		t.Errorf("Expected body limit %d, got %d", defaultMaxBodyBytes, client.MaxBodyBytes)
	}
}

func TestNewWith(t *testing.T) {
	cfg := Config{
		Timeout:   10 * time.Second,
		UserAgent: "Custom Agent",
		ProxyURL:  "http://proxy.example.com:8080",
		Headers:   map[string]string{"Accept-Language": "de-DE"},
	}

	client := NewWith(cfg)

	if client.HTTPClient.Timeout != cfg.Timeout {
		t.Errorf("Expected timeout %v, got %v", cfg.Timeout, client.HTTPClient.Timeout)
	}
	if client.UserAgent != cfg.UserAgent {
		t.Errorf("Expected user agent '%s', got '%s'", cfg.UserAgent, client.UserAgent)
	}
	if got := client.Headers.Get("Accept-Language"); got != "de-DE" {
		t.Errorf("Expected header override, got %q", got)
	}
}

func TestNewWithNegativeValues(t *testing.T) {
	client := NewWith(Config{Timeout: -1 * time.Second, MaxBodyBytes: -5})

	if client.HTTPClient.Timeout != defaultTimeout {
		t.Errorf("Expected timeout %v, got %v", defaultTimeout, client.HTTPClient.Timeout)
	}
	if client.MaxBodyBytes != defaultMaxBodyBytes {
		t.Errorf("Expected default body limit, got %d", client.MaxBodyBytes)
	}
}

func TestNewWithInvalidProxy(t *testing.T) {
	client := NewWith(Config{ProxyURL: "invalid-proxy-url"})

	// Should still create client even with invalid proxy
	if client.HTTPClient == nil {
		t.Fatal("Expected HTTPClient to be initialized")
	}
}

func TestGetSendsBrowserHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != userAgentValue {
			t.Errorf("Expected User-Agent '%s', got '%s'", userAgentValue, got)
		}
		if got := r.Header.Get("Accept"); got != acceptValue {
			t.Errorf("Expected Accept '%s', got '%s'", acceptValue, got)
		}
		if got := r.Header.Get("Accept-Encoding"); got != acceptEncodingValue {
			t.Errorf("Expected Accept-Encoding '%s', got '%s'", acceptEncodingValue, got)
		}
		_, _ = w.Write([]byte("test response"))
	}))
	defer server.Close()

	resp, err := New().Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !resp.OK() {
		t.Errorf("Expected status 200, got %d", resp.Status)
	}
	if string(resp.Body) != "test response" {
		t.Errorf("Unexpected body %q", resp.Body)
	}
}

func TestGetReturnsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))
	defer server.Close()

	resp, err := New().Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error for 404, got %v", err)
	}
	if resp.Status != http.StatusNotFound || string(resp.Body) != "missing" {
		t.Errorf("Unexpected response %d %q", resp.Status, resp.Body)
	}
}

func TestDecodesCompressedBodies(t *testing.T) {
	const payload = "ytInitialPlayerResponse = {};"

	encoders := map[string]func(*bytes.Buffer){
		"gzip": func(b *bytes.Buffer) {
			w := gzip.NewWriter(b)
			_, _ = w.Write([]byte(payload))
			_ = w.Close()
		},
		"br": func(b *bytes.Buffer) {
			w := brotli.NewWriter(b)
			_, _ = w.Write([]byte(payload))
			_ = w.Close()
		},
		"deflate": func(b *bytes.Buffer) {
			w := zlib.NewWriter(b)
			_, _ = w.Write([]byte(payload))
			_ = w.Close()
		},
	}

	for encoding, encode := range encoders {
		t.Run(encoding, func(t *testing.T) {
			var buf bytes.Buffer
			encode(&buf)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", encoding)
				_, _ = w.Write(buf.Bytes())
			}))
			defer server.Close()

			resp, err := New().Get(context.Background(), server.URL)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(resp.Body) != payload {
				t.Errorf("got %q want %q", resp.Body, payload)
			}
		})
	}
}

func TestCookiesPersistAcrossRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/set" {
			http.SetCookie(w, &http.Cookie{Name: "CONSENT", Value: "YES+1", Path: "/"})
			return
		}
		c, err := r.Cookie("CONSENT")
		if err != nil || c.Value != "YES+1" {
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer server.Close()

	client := New()
	if _, err := client.Get(context.Background(), server.URL+"/set"); err != nil {
		t.Fatal(err)
	}
	resp, err := client.Get(context.Background(), server.URL+"/check")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("cookie was not sent back, status %d", resp.Status)
	}
}

func TestGetTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client := NewWith(Config{Timeout: 50 * time.Millisecond})
	if _, err := client.Get(context.Background(), server.URL); err == nil {
		t.Fatal("Expected timeout error")
	}
}

func TestGetHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := New().Get(ctx, server.URL); err == nil {
		t.Fatal("Expected context error")
	}
}

func TestPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("content type = %q", got)
		}
		if got := r.Header.Get("X-YouTube-Client-Name"); got != "1" {
			t.Errorf("extra header = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	defer server.Close()

	h := http.Header{}
	h.Set("X-YouTube-Client-Name", "1")
	resp, err := New().Post(context.Background(), server.URL, "application/json", []byte(`{"videoId":"x"}`), h)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Body) != `{"videoId":"x"}` {
		t.Errorf("echo = %q", resp.Body)
	}
}

func TestBodyLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"under limit", 9, false},
		{"at limit", 10, false},
		{"over limit", 100, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write(bytes.Repeat([]byte("a"), tt.size))
			}))
			defer server.Close()

			resp, err := NewWith(Config{MaxBodyBytes: 10}).Get(context.Background(), server.URL)
			if tt.wantErr {
				if !errors.Is(err, ErrBodyTooLarge) {
					t.Fatalf("Expected ErrBodyTooLarge, got %v", err)
				}
				if !IsTransport(err) {
					t.Errorf("Expected transport error, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(resp.Body) != tt.size {
				t.Errorf("body length = %d, want %d", len(resp.Body), tt.size)
			}
		})
	}
}

func TestBodyLimitAppliesAfterDecoding(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write(bytes.Repeat([]byte("a"), 4096))
	_ = gz.Close()
	if buf.Len() >= 1024 {
		t.Fatalf("fixture compresses to %d bytes", buf.Len())
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer server.Close()

	_, err := NewWith(Config{MaxBodyBytes: 1024}).Get(context.Background(), server.URL)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("Expected ErrBodyTooLarge, got %v", err)
	}
}

func TestTransportErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		_ = conn.Close()
	}))
	defer server.Close()

	_, err := New().Get(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error for closed connection")
	}
	if !IsTransport(err) {
		t.Errorf("Expected transport error, got %T: %v", err, err)
	}
	if IsTransport(errors.New("status 500")) {
		t.Error("plain error reported as transport error")
	}
}

func TestProxyFromURLString(t *testing.T) {
	proxyFunc, err := proxyFromURLString("http://proxy.example.com:8080")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if proxyFunc == nil {
		t.Fatal("Expected proxy function to be non-nil")
	}
}

func TestProxyFromURLStringInvalid(t *testing.T) {
	for _, raw := range []string{"://invalid-url", "invalid-proxy-url"} {
		if _, err := proxyFromURLString(raw); err == nil {
			t.Errorf("Expected error for invalid proxy URL %q", raw)
		}
	}
}
