package innertube

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ytget/ytlinks/client"
	"github.com/ytget/ytlinks/errs"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		origin     string
		wantOrigin string
	}{
		{name: "Default origin", origin: "", wantOrigin: defaultOrigin},
		{name: "Custom origin", origin: "http://127.0.0.1:9000", wantOrigin: "http://127.0.0.1:9000"},
		{name: "Trailing slash", origin: "http://127.0.0.1:9000/", wantOrigin: "http://127.0.0.1:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(client.New(), tt.origin)
			if c.origin != tt.wantOrigin {
				t.Errorf("Expected origin %s, got %s", tt.wantOrigin, c.origin)
			}
			if c.clientName != clientNameWEB {
				t.Errorf("Expected clientName %s, got %s", clientNameWEB, c.clientName)
			}
		})
	}
}

func TestWithClient(t *testing.T) {
	tests := []struct {
		name          string
		clientName    string
		clientVersion string
		expectedName  string
		expectedVer   string
	}{
		{
			name:          "Valid client name and version",
			clientName:    "WEB",
			clientVersion: "2.0.0",
			expectedName:  "WEB",
			expectedVer:   "2.0.0",
		},
		{
			name:          "Empty client name",
			clientName:    "",
			clientVersion: "1.0.0",
			expectedName:  "WEB", // Default value from New()
			expectedVer:   "1.0.0",
		},
		{
			name:          "Empty client version",
			clientName:    "ANDROID",
			clientVersion: "",
			expectedName:  "ANDROID",
			expectedVer:   "", // No default version set
		},
		{
			name:          "Whitespace client name",
			clientName:    "   ",
			clientVersion: "3.0.0",
			expectedName:  "WEB", // Default value from New()
			expectedVer:   "3.0.0",
		},
		{
			name:          "Whitespace client version",
			clientName:    "IOS",
			clientVersion: "   ",
			expectedName:  "IOS",
			expectedVer:   "", // No default version set
		},
		{
			name:          "Both empty",
			clientName:    "",
			clientVersion: "",
			expectedName:  "WEB", // Default value from New()
			expectedVer:   "",    // No default version set
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(nil, "")
			result := client.WithClient(tt.clientName, tt.clientVersion)

			if result.clientName != tt.expectedName {
				t.Errorf("Expected clientName '%s', got '%s'", tt.expectedName, result.clientName)
			}
			if result.clientVer != tt.expectedVer {
				t.Errorf("Expected clientVer '%s', got '%s'", tt.expectedVer, result.clientVer)
			}
		})
	}
}

func TestClientCodeFromName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "WEB client",
			input:    "WEB",
			expected: "1",
		},
		{
			name:     "MWEB client",
			input:    "MWEB",
			expected: "2",
		},
		{
			name:     "ANDROID client",
			input:    "ANDROID",
			expected: "3",
		},
		{
			name:     "IOS client",
			input:    "IOS",
			expected: "5",
		},
		{
			name:     "TVHTML5 client",
			input:    "TVHTML5",
			expected: "7",
		},
		{
			name:     "WEB_EMBEDDED_PLAYER client",
			input:    "WEB_EMBEDDED_PLAYER",
			expected: "56",
		},
		{
			name:     "WEB_CREATOR client",
			input:    "WEB_CREATOR",
			expected: "62",
		},
		{
			name:     "WEB_REMIX client",
			input:    "WEB_REMIX",
			expected: "67",
		},
		{
			name:     "TVHTML5_SIMPLY client",
			input:    "TVHTML5_SIMPLY",
			expected: "75",
		},
		{
			name:     "TVHTML5_SIMPLY_EMBEDDED_PLAYER client",
			input:    "TVHTML5_SIMPLY_EMBEDDED_PLAYER",
			expected: "85",
		},
		{
			name:     "Unknown client",
			input:    "UNKNOWN",
			expected: "",
		},
		{
			name:     "Empty client name",
			input:    "",
			expected: "",
		},
		{
			name:     "Lowercase client name",
			input:    "web",
			expected: "1",
		},
		{
			name:     "Mixed case client name",
			input:    "Web",
			expected: "1",
		},
		{
			name:     "Mixed case client name with underscores",
			input:    "Web_Embedded_Player",
			expected: "56",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := clientCodeFromName(tt.input)
			if result != tt.expected {
				t.Errorf("Expected client code '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

type playerRequest struct {
	VideoID string `json:"videoId"`
	Context struct {
		Client map[string]any `json:"client"`
	} `json:"context"`
}

func TestPlayer(t *testing.T) {
	var got playerRequest
	var gotKey, gotClientName, gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != playerPath {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		gotKey = r.URL.Query().Get("key")
		gotClientName = r.Header.Get("X-YouTube-Client-Name")
		gotVersion = r.Header.Get("X-YouTube-Client-Version")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("Bad request body: %v", err)
		}
		_, _ = w.Write([]byte(`{"playabilityStatus":{"status":"OK"},"streamingData":{"formats":[{"itag":18,"url":"https://v/18"}]}}`))
	}))
	defer server.Close()

	c := New(client.New(), server.URL)
	payload, err := c.Player(context.Background(), "dQw4w9WgXcQ", "AIzaKey", "2.20250101")
	if err != nil {
		t.Fatalf("Player: %v", err)
	}
	if s := payload.GetPath("playabilityStatus", "status").MustString(); s != "OK" {
		t.Errorf("Expected status OK, got %q", s)
	}
	if gotKey != "AIzaKey" {
		t.Errorf("Expected key AIzaKey, got %q", gotKey)
	}
	if gotClientName != "1" || gotVersion != "2.20250101" {
		t.Errorf("Unexpected client headers %q %q", gotClientName, gotVersion)
	}
	if got.VideoID != "dQw4w9WgXcQ" || got.Context.Client["clientName"] != "WEB" {
		t.Errorf("Unexpected request %+v", got)
	}
}

func TestPlayerAndroidContext(t *testing.T) {
	var got playerRequest
	var ua string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(client.New(), server.URL).WithClient("ANDROID", "20.10.38")
	if _, err := c.Player(context.Background(), "dQw4w9WgXcQ", "", "2.2025"); err != nil {
		t.Fatalf("Player: %v", err)
	}
	if got.Context.Client["clientVersion"] != "20.10.38" {
		t.Errorf("Configured version should win, got %v", got.Context.Client["clientVersion"])
	}
	if got.Context.Client["osName"] != "Android" {
		t.Errorf("Expected android context, got %v", got.Context.Client)
	}
	if ua != "com.google.android.youtube/20.10.38 (Linux; U; Android 11) gzip" {
		t.Errorf("Unexpected user agent %q", ua)
	}
}

func TestPlayerErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "Rate limited", status: http.StatusTooManyRequests, want: errs.ErrRateLimited},
		{name: "Server error", status: http.StatusInternalServerError, want: errs.ErrFetchFailed},
		{name: "Not JSON", status: http.StatusOK, body: "<html>", want: errs.ErrPlayerPayloadNotFound},
		{name: "JSON array", status: http.StatusOK, body: "[]", want: errs.ErrPlayerPayloadNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New(client.New(), server.URL).Player(context.Background(), "dQw4w9WgXcQ", "", "")
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPlayerTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := New(client.New(), server.URL).Player(context.Background(), "dQw4w9WgXcQ", "", "")
	if !errors.Is(err, errs.ErrFetchFailed) {
		t.Errorf("Expected fetch failure, got %v", err)
	}
}
