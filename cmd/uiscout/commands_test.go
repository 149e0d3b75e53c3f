package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestSearchRequestShape(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /search": `{"results":[],"total":0,"query":"button"}`,
	})
	client := ts.client()

	req := map[string]any{
		"query": "button",
		"limit": 3,
		"filters": map[string]any{
			"category": "inputs",
			"tags":     []string{"interactive"},
		},
	}

	resp, err := client.post(ctx, "/search", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Total int `json:"total"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "POST" || r.Path != "/search" {
		t.Errorf("request = %s %s, want POST /search", r.Method, r.Path)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["query"] != "button" {
		t.Errorf("body.query = %v, want button", body["query"])
	}
	filters, ok := body["filters"].(map[string]any)
	if !ok || filters["category"] != "inputs" {
		t.Errorf("body.filters = %v, want a category filter", body["filters"])
	}
}

func TestDecodeJSONServerError(t *testing.T) {
	ts := newTestServer(t, nil)
	client := ts.client()

	resp, err := client.get(ctx, "/components/nope")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var v any
	err = decodeJSON(resp, &v)
	if err == nil {
		t.Fatal("expected error for a 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %q, want it to carry the status code", err.Error())
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" a, b ,,c ")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitCSV = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitCSV[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestComponentsListToleratesShortIDs(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /components": `[
			{"id":"x","name":"Button","category":"inputs","file_path":"src/Button.tsx"},
			{"id":"0a1b2c3d4e5f67890a1b2c3d4e5f6789","name":"Card","category":"","file_path":"src/Card.tsx"}
		]`,
	})

	orig := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	defer func() { newAPIClient = orig }()

	componentsListCmd.SetContext(ctx)
	if err := componentsListCmd.RunE(componentsListCmd, nil); err != nil {
		t.Fatalf("components list failed: %v", err)
	}
}

func TestShortID(t *testing.T) {
	cases := []struct{ in, want string }{
		{"0a1b2c3d4e5f67890a1b2c3d4e5f6789", "0a1b2c3d"},
		{"12345678", "12345678"},
		{"x", "x"},
		{"", ""},
	}
	for _, c := range cases {
		if got := shortID(c.in); got != c.want {
			t.Errorf("shortID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestColorizeRespectsNoColor(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if result := colorize(ansiGreen, "test"); strings.Contains(result, "\033") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	if result := colorize(ansiGreen, "test"); !strings.Contains(result, "\033") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}
