// Package testutil provides HTTP testing helpers for the daybook server.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// TestServer wraps httptest.Server with request helpers that fail the test on transport errors
type TestServer struct {
	Server  *httptest.Server
	BaseURL string
	t       *testing.T
}

// ProjectRoot returns the directory holding go.mod
func ProjectRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("could not get caller info")
	}

	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			panic("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// TestEnv returns environment settings that point the server at dataDir with file storage
func TestEnv(dataDir string) map[string]string {
	return map[string]string{
		"DAYBOOK_DATA_DIR":    dataDir,
		"DAYBOOK_STORAGE":     "file",
		"DAYBOOK_DEBUG":       "true",
		"DAYBOOK_LISTEN_ADDR": ":0",
		"DAYBOOK_PASSWORD":    "",
	}
}

// SetTestEnv points the configuration at a fresh temporary data directory for the test
func SetTestEnv(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	for k, v := range TestEnv(dir) {
		t.Setenv(k, v)
	}
	return dir
}

// NewTestServer starts an httptest server around router; it is closed with the test
func NewTestServer(t *testing.T, router http.Handler) *TestServer {
	t.Helper()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestServer{
		Server:  server,
		BaseURL: server.URL,
		t:       t,
	}
}

// Do sends a request with an optional body and content type
func (ts *TestServer) Do(method, path, contentType string, body io.Reader) *http.Response {
	ts.t.Helper()

	req, err := http.NewRequest(method, ts.BaseURL+path, body)
	if err != nil {
		ts.t.Fatalf("building %s %s: %v", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// GET performs a GET request to the given path
func (ts *TestServer) GET(path string) *http.Response {
	ts.t.Helper()
	return ts.Do(http.MethodGet, path, "", nil)
}

// GETWithQuery performs a GET request with encoded query parameters
func (ts *TestServer) GETWithQuery(path string, query map[string]string) *http.Response {
	ts.t.Helper()

	values := url.Values{}
	for k, v := range query {
		values.Set(k, v)
	}
	if len(values) > 0 {
		path += "?" + values.Encode()
	}
	return ts.GET(path)
}

// POST performs a POST request to the given path
func (ts *TestServer) POST(path string, contentType string, body io.Reader) *http.Response {
	ts.t.Helper()
	return ts.Do(http.MethodPost, path, contentType, body)
}

// JSON sends v encoded as JSON with the given method; a nil v sends no body
func (ts *TestServer) JSON(method, path string, v any) *http.Response {
	ts.t.Helper()

	if v == nil {
		return ts.Do(method, path, "", nil)
	}
	data, err := json.Marshal(v)
	if err != nil {
		ts.t.Fatalf("encoding body for %s %s: %v", method, path, err)
	}
	return ts.Do(method, path, "application/json", bytes.NewReader(data))
}

// DELETE performs a DELETE request to the given path
func (ts *TestServer) DELETE(path string) *http.Response {
	ts.t.Helper()
	return ts.Do(http.MethodDelete, path, "", nil)
}

// Upload posts content as the multipart form field "file"
func (ts *TestServer) Upload(path, filename string, content []byte) *http.Response {
	ts.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		ts.t.Fatalf("creating form file: %v", err)
	}
	fw.Write(content)
	mw.Close()

	return ts.POST(path, mw.FormDataContentType(), &buf)
}

// ReadBody reads and returns the response body as a string
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	return string(body)
}
