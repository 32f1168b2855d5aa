package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"people-search/internal/search"
)

func TestHealth(t *testing.T) {
	testCases := []struct {
		name        string
		status      int
		body        string
		expectErr   string
		expectInfo  *search.HealthInfo
		expectHTTPC int
	}{
		{
			name:       "healthy backend",
			status:     http.StatusOK,
			body:       `{"status":"healthy","service":"people-search-api","version":"2.0"}`,
			expectInfo: &search.HealthInfo{Status: "healthy", Service: "people-search-api", Version: "2.0"},
		},
		{
			name:        "unavailable backend",
			status:      http.StatusServiceUnavailable,
			body:        `upstream down`,
			expectErr:   "HTTP 503",
			expectHTTPC: http.StatusServiceUnavailable,
		},
		{
			name:      "2xx with garbage body",
			status:    http.StatusOK,
			body:      `<html>hello</html>`,
			expectErr: "parse health response",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, HealthPath, r.URL.Path)
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Accept"))
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			info, err := NewClient(srv.URL).Health(context.Background())
			if tc.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectErr)
				if tc.expectHTTPC != 0 {
					var httpErr *HTTPError
					require.ErrorAs(t, err, &httpErr)
					assert.Equal(t, tc.expectHTTPC, httpErr.StatusCode)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectInfo, info)
		})
	}
}

func TestHealth_BaseURLWithPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		_, _ = io.WriteString(w, `{"status":"healthy","version":"2.0"}`)
	}))
	defer srv.Close()

	info, err := NewClient(srv.URL + "/api/").Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.0", info.Version)
}

func TestUpload_SendsMultipartFile(t *testing.T) {
	csvBody := "name,address,phone\nAshley Heller,\"45 E. 30th St. New York, NY 10016\",508-512-6117\n"
	want := search.ResponsePayload{
		Found:          1,
		TotalProcessed: 1,
		People: []search.PersonRecord{{
			Name:       "Ashley Heller",
			Address:    "45 E. 30th St. New York, NY 10016",
			Phone:      "508-512-6117",
			Status:     search.StatusFound,
			Sources:    []string{"Public Records", "Phone Directory"},
			Details:    "Found potential matches for Ashley Heller in public records",
			Confidence: 0.8,
		}},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UploadPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data; boundary="),
			"unexpected content type %q", r.Header.Get("Content-Type"))

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		got, _ := io.ReadAll(f)
		assert.Equal(t, "contacts.csv", hdr.Filename)
		assert.Equal(t, csvBody, string(got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	req := search.NewUploadRequest("contacts.csv", []byte(csvBody))
	got, err := NewClient(srv.URL).Upload(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, &want, got)
}

func TestUpload_ErrorMessages(t *testing.T) {
	testCases := []struct {
		name          string
		status        int
		body          string
		expectMessage string
	}{
		{
			name:          "structured error body",
			status:        http.StatusBadRequest,
			body:          `{"error":"File must be a CSV"}`,
			expectMessage: "File must be a CSV",
		},
		{
			name:          "unparseable error body",
			status:        http.StatusBadGateway,
			body:          `<h1>Bad Gateway</h1>`,
			expectMessage: "HTTP 502",
		},
		{
			name:          "empty error field",
			status:        http.StatusInternalServerError,
			body:          `{"error":""}`,
			expectMessage: "HTTP 500",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Upload(context.Background(), search.NewUploadRequest("a.csv", []byte("name\n")))
			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tc.status, httpErr.StatusCode)
			assert.Equal(t, "upload", httpErr.Op)
			assert.Equal(t, tc.expectMessage, err.Error())
		})
	}
}

func TestUpload_CancelAbortsTransport(t *testing.T) {
	arrived := make(chan struct{})
	aborted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The server only sees the client hang up once the body is consumed.
		_, _ = io.Copy(io.Discard, r.Body)
		close(arrived)
		<-r.Context().Done()
		close(aborted)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := NewClient(srv.URL).Upload(ctx, search.NewUploadRequest("a.csv", []byte("name\n")))
		errCh <- err
	}()

	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the server")
	}
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("upload did not return after cancellation")
	}
	select {
	case <-aborted:
	case <-time.After(5 * time.Second):
		t.Fatal("server request was left pending")
	}
}
