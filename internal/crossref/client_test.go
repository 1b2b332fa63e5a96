package crossref

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matsen/reflink/internal/journal"
)

var testCreds = journal.Credentials{Username: "user@example.org", Password: "p&ss word"}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(
		WithEndpoints(srv.URL+"/prod", srv.URL+"/sandbox"),
		WithRateLimit(0),
	)
	return c, srv
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient()
	if c.Endpoint(false) != ProductionURL {
		t.Errorf("Endpoint(false) = %s, want %s", c.Endpoint(false), ProductionURL)
	}
	if c.Endpoint(true) != SandboxURL {
		t.Errorf("Endpoint(true) = %s, want %s", c.Endpoint(true), SandboxURL)
	}
	if c.httpClient.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.httpClient.Timeout, DefaultTimeout)
	}
}

func TestNewClient_WithTimeout(t *testing.T) {
	c := NewClient(WithTimeout(5 * time.Second))
	if c.httpClient.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", c.httpClient.Timeout)
	}
}

func TestFetchResolvedReferences_Success(t *testing.T) {
	var gotMethod, gotPath string
	var gotQuery map[string][]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"matched-references":[{"key":"1","doi":"10.3/y"},{"key":"2","doi":"10.9/z"}]}`))
	})

	refs, err := c.FetchResolvedReferences(context.Background(), "10.1/abc def", testCreds, false)
	if err != nil {
		t.Fatalf("FetchResolvedReferences() error = %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotPath != "/prod" {
		t.Errorf("path = %s, want /prod", gotPath)
	}
	if gotQuery["doi"][0] != "10.1/abc def" {
		t.Errorf("doi param = %q, want %q", gotQuery["doi"][0], "10.1/abc def")
	}
	if gotQuery["usr"][0] != testCreds.Username || gotQuery["pwd"][0] != testCreds.Password {
		t.Errorf("credentials = %v/%v, want %v", gotQuery["usr"], gotQuery["pwd"], testCreds)
	}
	if len(refs) != 2 {
		t.Fatalf("len(refs) = %d, want 2", len(refs))
	}
	if refs[0] != (MatchedReference{Key: "1", DOI: "10.3/y"}) {
		t.Errorf("refs[0] = %+v", refs[0])
	}
}

func TestFetchResolvedReferences_Sandbox(t *testing.T) {
	var gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"matched-references":[]}`))
	})

	refs, err := c.FetchResolvedReferences(context.Background(), "10.1/abc", testCreds, true)
	if err != nil {
		t.Fatalf("FetchResolvedReferences() error = %v", err)
	}
	if gotPath != "/sandbox" {
		t.Errorf("path = %s, want /sandbox", gotPath)
	}
	if refs == nil || len(refs) != 0 {
		t.Errorf("refs = %#v, want empty non-nil slice", refs)
	}
}

func TestFetchResolvedReferences_Errors(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		wantUnavailable bool
		wantInvalid     bool
	}{
		{"server error", http.StatusInternalServerError, `oops`, true, false},
		{"unauthorized", http.StatusUnauthorized, ``, true, false},
		{"not found", http.StatusNotFound, `{"matched-references":[]}`, true, false},
		{"malformed json", http.StatusOK, `{not json`, false, true},
		{"missing key", http.StatusOK, `{"other":[]}`, false, true},
		{"null key", http.StatusOK, `{"matched-references":null}`, false, true},
		{"wrong shape", http.StatusOK, `{"matched-references":"nope"}`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			refs, err := c.FetchResolvedReferences(context.Background(), "10.1/abc", testCreds, false)
			if err == nil {
				t.Fatalf("FetchResolvedReferences() = %v, want error", refs)
			}
			if IsUnavailable(err) != tt.wantUnavailable {
				t.Errorf("IsUnavailable(%v) = %v, want %v", err, IsUnavailable(err), tt.wantUnavailable)
			}
			if IsInvalidResponse(err) != tt.wantInvalid {
				t.Errorf("IsInvalidResponse(%v) = %v, want %v", err, IsInvalidResponse(err), tt.wantInvalid)
			}
		})
	}
}

func TestFetchResolvedReferences_APIErrorStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.FetchResolvedReferences(context.Background(), "10.1/abc", testCreds, false)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestFetchResolvedReferences_TransportFailureHidesPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(WithEndpoints(url, url), WithRateLimit(0))
	_, err := c.FetchResolvedReferences(context.Background(), "10.1/abc", testCreds, false)
	if !IsUnavailable(err) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if strings.Contains(err.Error(), "pwd=") {
		t.Errorf("error leaks credentials: %v", err)
	}
}

func TestFetchResolvedReferences_Timeout(t *testing.T) {
	done := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	})
	defer close(done)
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.FetchResolvedReferences(context.Background(), "10.1/abc", testCreds, false)
	if !IsUnavailable(err) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}
