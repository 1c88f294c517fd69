// Package testutil provides HTTP and fixture helpers for findash tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// SampleCSV mirrors the layout of the household workbook
const SampleCSV = "Fecha;Concepto;Categoría;Importe (€);Tipo Movimiento\n" +
	"01/03/2025;Nómina;;1000;Ingreso (I)\n" +
	"05/03/2025;Mercadona;Comida;-200;Gasto (G)\n" +
	"12/03/2025;Cine;Ocio;-25,50;Gasto (G)\n" +
	"01/04/2025;Nómina;;1000;Ingreso (I)\n" +
	"03/04/2025;Alquiler;Casa;-700;Gasto (G)\n" +
	"not-a-date;Fantasma;Otros;999;Gasto (G)\n" +
	"09/04/2025;Ajuste;Otros;abc;Gasto (G)\n"

// WriteFixture writes content to name inside dir and returns the path
func WriteFixture(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create fixture dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

// TestServer wraps httptest.Server with a cookie-keeping client
type TestServer struct {
	Server  *httptest.Server
	BaseURL string
	Client  *http.Client
	t       *testing.T
}

// NewTestServer starts router and closes it when the test ends
func NewTestServer(t *testing.T, router http.Handler) *TestServer {
	t.Helper()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}

	return &TestServer{
		Server:  server,
		BaseURL: server.URL,
		Client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		t: t,
	}
}

// GET performs a GET request to the given path
func (ts *TestServer) GET(path string) *http.Response {
	ts.t.Helper()

	resp, err := ts.Client.Get(ts.BaseURL + path)
	if err != nil {
		ts.t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp
}

// GETWithQuery performs a GET request with query parameters
func (ts *TestServer) GETWithQuery(path string, query url.Values) *http.Response {
	ts.t.Helper()

	target := ts.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	resp, err := ts.Client.Get(target)
	if err != nil {
		ts.t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp
}

// POST performs a POST request to the given path
func (ts *TestServer) POST(path string, contentType string, body io.Reader) *http.Response {
	ts.t.Helper()

	resp, err := ts.Client.Post(ts.BaseURL+path, contentType, body)
	if err != nil {
		ts.t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp
}

// POSTJSON encodes v and posts it
func (ts *TestServer) POSTJSON(path string, v interface{}) *http.Response {
	ts.t.Helper()

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		ts.t.Fatalf("encode body: %v", err)
	}
	return ts.POST(path, "application/json", &buf)
}

// PUTJSON encodes v and sends it with PUT
func (ts *TestServer) PUTJSON(path string, v interface{}) *http.Response {
	ts.t.Helper()

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		ts.t.Fatalf("encode body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPut, ts.BaseURL+path, &buf)
	if err != nil {
		ts.t.Fatalf("build PUT %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client.Do(req)
	if err != nil {
		ts.t.Fatalf("PUT %s failed: %v", path, err)
	}
	return resp
}

// POSTForm posts url-encoded form values
func (ts *TestServer) POSTForm(path string, form url.Values) *http.Response {
	ts.t.Helper()
	return ts.POST(path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
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
