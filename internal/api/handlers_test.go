package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/uiscout/uiscout/internal/catalog"
	"github.com/uiscout/uiscout/internal/embedding"
	"github.com/uiscout/uiscout/internal/index"
	"github.com/uiscout/uiscout/internal/search"
	"github.com/uiscout/uiscout/internal/store"
)

const testDims = 4

// mockProvider derives a deterministic vector from the text. Tests that need
// exact similarities override vectors per input.
type mockProvider struct {
	vectors  map[string][]float32
	embedErr error
	running  bool
}

func (m *mockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	vec := make([]float32, testDims)
	for i, r := range text {
		vec[i%testDims] += float32(r)
	}
	return vec, nil
}

func (m *mockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockProvider) Dimensions() int                    { return testDims }
func (m *mockProvider) ModelID() string                    { return "mock-embed" }
func (m *mockProvider) IsRunning(ctx context.Context) bool { return m.running }

func newTestDeps(t *testing.T) (Deps, *mockProvider) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.EnsureModel("mock-embed", testDims); err != nil {
		t.Fatalf("EnsureModel: %v", err)
	}

	p := &mockProvider{running: true}
	return Deps{
		Store:    st,
		Provider: p,
		Indexer:  index.NewIndexer(p, st),
		Searcher: search.NewSearcher(p, st, search.DefaultOptions()),
		Version:  "test",
	}, p
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func indexDescriptor(t *testing.T, h http.Handler, d index.Descriptor) catalog.Component {
	t.Helper()
	rec := doRequest(t, h, "POST", "/components", d)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /components = %d: %s", rec.Code, rec.Body.String())
	}
	var c catalog.Component
	decodeBody(t, rec, &c)
	return c
}

func TestHealth(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(t, h, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp healthResponse
	decodeBody(t, rec, &resp)
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.EmbeddingModel != "mock-embed" {
		t.Errorf("embedding_model = %q, want mock-embed", resp.EmbeddingModel)
	}
	if resp.Embedding != "ok" {
		t.Errorf("embedding = %q, want ok", resp.Embedding)
	}
}

func TestHealthProviderDownIsAdvisory(t *testing.T) {
	deps, p := newTestDeps(t)
	p.running = false
	h := NewHandler(deps)

	rec := doRequest(t, h, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even with the provider down", rec.Code)
	}

	var resp healthResponse
	decodeBody(t, rec, &resp)
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Embedding != "unreachable" {
		t.Errorf("embedding = %q, want unreachable", resp.Embedding)
	}
}

func TestCreateAndGetComponent(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	created := indexDescriptor(t, h, index.Descriptor{
		Name:        "Button",
		Description: "A button",
		FilePath:    "src/Button.tsx",
		Tags:        []string{"interactive"},
	})
	if created.ID == "" {
		t.Fatal("created component has no id")
	}

	rec := doRequest(t, h, "GET", "/components/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET = %d, want 200", rec.Code)
	}
	var got catalog.Component
	decodeBody(t, rec, &got)
	if got.Name != "Button" {
		t.Errorf("Name = %q, want Button", got.Name)
	}
}

func TestGetComponentNotFound(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(t, h, "GET", "/components/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var resp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	decodeBody(t, rec, &resp)
	if resp.Error.Type != "not_found" {
		t.Errorf("error type = %q, want not_found", resp.Error.Type)
	}
}

func TestCreateComponentInvalid(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(t, h, "POST", "/components", index.Descriptor{Description: "nameless"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListComponents(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(t, h, "GET", "/components", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("empty catalog body = %s, want []", body)
	}

	indexDescriptor(t, h, index.Descriptor{Name: "Button", FilePath: "a.tsx"})
	indexDescriptor(t, h, index.Descriptor{Name: "Avatar", FilePath: "b.tsx"})

	rec = doRequest(t, h, "GET", "/components", nil)
	var components []catalog.Component
	decodeBody(t, rec, &components)
	if len(components) != 2 {
		t.Fatalf("got %d components, want 2", len(components))
	}
	if components[0].Name != "Avatar" {
		t.Errorf("first component = %q, want Avatar (name order)", components[0].Name)
	}
}

func TestGetComponentsByName(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	indexDescriptor(t, h, index.Descriptor{Name: "Button", FilePath: "a/Button.tsx"})
	indexDescriptor(t, h, index.Descriptor{Name: "Button", FilePath: "b/Button.tsx"})

	rec := doRequest(t, h, "GET", "/components/name/Button", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var components []catalog.Component
	decodeBody(t, rec, &components)
	if len(components) != 2 {
		t.Errorf("got %d components, want 2", len(components))
	}
}

func TestUpdateComponentPartial(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	created := indexDescriptor(t, h, index.Descriptor{
		Name:        "Button",
		Description: "old description",
		FilePath:    "src/Button.tsx",
		Category:    "inputs",
	})

	rec := doRequest(t, h, "PUT", "/components/"+created.ID, map[string]any{
		"description": "new description",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT = %d: %s", rec.Code, rec.Body.String())
	}

	var updated catalog.Component
	decodeBody(t, rec, &updated)
	if updated.ID != created.ID {
		t.Errorf("id changed on update: %q vs %q", updated.ID, created.ID)
	}
	if updated.Description != "new description" {
		t.Errorf("Description = %q, want new description", updated.Description)
	}
	if updated.Name != "Button" || updated.Category != "inputs" {
		t.Errorf("untouched fields changed: %+v", updated)
	}
}

func TestUpdateComponentNotFound(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(t, h, "PUT", "/components/nope", map[string]any{"description": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteComponent(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	created := indexDescriptor(t, h, index.Descriptor{Name: "Button", FilePath: "a.tsx"})

	rec := doRequest(t, h, "DELETE", "/components/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE = %d, want 204", rec.Code)
	}

	rec = doRequest(t, h, "GET", "/components/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete = %d, want 404", rec.Code)
	}

	rec = doRequest(t, h, "DELETE", "/components/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second DELETE = %d, want 404", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	deps, p := newTestDeps(t)
	p.vectors = map[string][]float32{
		"button": {1, 0, 0, 0},
	}
	h := NewHandler(deps)

	if err := deps.Store.Upsert(context.Background(), catalog.Component{ID: "a", Name: "Button"}, []float32{1, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := deps.Store.Upsert(context.Background(), catalog.Component{ID: "b", Name: "Card"}, []float32{0, 1, 0, 0}); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, h, "POST", "/search", map[string]any{"query": "button"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Results []catalog.SearchResult `json:"results"`
		Total   int                    `json:"total"`
		Query   string                 `json:"query"`
	}
	decodeBody(t, rec, &resp)
	if resp.Total != 2 {
		t.Fatalf("total = %d, want 2", resp.Total)
	}
	if resp.Results[0].Component.ID != "a" {
		t.Errorf("top result = %s, want a", resp.Results[0].Component.ID)
	}
	if resp.Query != "button" {
		t.Errorf("query echo = %q, want button", resp.Query)
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(t, h, "POST", "/search", map[string]any{"query": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearchProviderDown(t *testing.T) {
	deps, p := newTestDeps(t)
	p.embedErr = &embedding.Error{Op: "embed", Err: errors.New("connection refused")}
	h := NewHandler(deps)

	rec := doRequest(t, h, "POST", "/search", map[string]any{"query": "button"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestSuggestEndpointDropsLowScores(t *testing.T) {
	deps, p := newTestDeps(t)
	p.vectors = map[string][]float32{
		"pick a date": {1, 0, 0, 0},
	}
	h := NewHandler(deps)

	ctx := context.Background()
	if err := deps.Store.Upsert(ctx, catalog.Component{ID: "good", Name: "DatePicker"}, []float32{1, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := deps.Store.Upsert(ctx, catalog.Component{ID: "bad", Name: "Avatar"}, []float32{-1, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, h, "POST", "/search/suggest", map[string]any{"query": "pick a date"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Results []catalog.SearchResult `json:"results"`
		Total   int                    `json:"total"`
	}
	decodeBody(t, rec, &resp)
	if resp.Total != 1 || resp.Results[0].Component.ID != "good" {
		t.Errorf("results = %+v, want only good", resp.Results)
	}
}

func TestScanEndpoint(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	dir := t.TempDir()
	descriptor := `{"name": "Button", "description": "A button", "file_path": "src/Button.tsx"}`
	if err := os.WriteFile(filepath.Join(dir, "Button.component.json"), []byte(descriptor), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, h, "POST", "/scan", map[string]any{"folder_path": dir})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ComponentsFound int                 `json:"components_found"`
		Components      []catalog.Component `json:"components"`
		Errors          []string            `json:"errors"`
	}
	decodeBody(t, rec, &resp)
	if resp.ComponentsFound != 1 {
		t.Errorf("components_found = %d, want 1", resp.ComponentsFound)
	}
	if len(resp.Errors) != 0 {
		t.Errorf("errors = %v, want none", resp.Errors)
	}
	if len(resp.Components) != 1 || resp.Components[0].Name != "Button" {
		t.Errorf("components = %+v, want Button", resp.Components)
	}
}

func TestScanEndpointRequiresFolderPath(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(t, h, "POST", "/scan", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestScanEndpointMissingFolder(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(t, h, "POST", "/scan", map[string]any{"folder_path": "/does/not/exist"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
