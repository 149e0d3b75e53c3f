// Package api exposes the component index over HTTP and MCP. All payloads
// use snake_case field names on the wire; Go structs carry the camelCase
// names internally.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/uiscout/uiscout/internal/catalog"
	"github.com/uiscout/uiscout/internal/embedding"
	"github.com/uiscout/uiscout/internal/index"
	"github.com/uiscout/uiscout/internal/scan"
	"github.com/uiscout/uiscout/internal/search"
	"github.com/uiscout/uiscout/internal/store"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds the handler dependencies. One instance of each is owned by the
// process and passed explicitly; there is no ambient global state.
type Deps struct {
	Store    *store.Store
	Provider embedding.Provider
	Indexer  *index.Indexer
	Searcher *search.Searcher
	Version  string
}

// NewHandler builds the service router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))
	r.Post("/search", handleSearch(deps))
	r.Post("/search/suggest", handleSuggest(deps))

	r.Get("/components", handleListComponents(deps))
	r.Post("/components", handleCreateComponent(deps))
	r.Get("/components/{id}", handleGetComponent(deps))
	r.Put("/components/{id}", handleUpdateComponent(deps))
	r.Delete("/components/{id}", handleDeleteComponent(deps))
	r.Get("/components/name/{name}", handleGetComponentsByName(deps))

	r.Post("/scan", handleScan(deps))

	return r
}

type healthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Components     int    `json:"components"`
	EmbeddingModel string `json:"embedding_model"`
	Embedding      string `json:"embedding"`
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:         "healthy",
			Version:        deps.Version,
			EmbeddingModel: deps.Provider.ModelID(),
			Embedding:      "ok",
		}

		count, err := deps.Store.Count(r.Context())
		if err != nil {
			resp.Status = "unhealthy"
		}
		resp.Components = count

		// Advisory only: queries will fail with a clear error if the
		// provider is down, but the service itself stays up.
		if !deps.Provider.IsRunning(r.Context()) {
			resp.Embedding = "unreachable"
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

type searchResponse struct {
	Results []catalog.SearchResult `json:"results"`
	Total   int                    `json:"total"`
	Query   string                 `json:"query"`
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var q catalog.SearchQuery
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		results, err := deps.Searcher.Search(r.Context(), q)
		if err != nil {
			writeError(w, err, "search failed")
			return
		}

		writeJSON(w, http.StatusOK, searchResponse{
			Results: resultsOrEmpty(results),
			Total:   len(results),
			Query:   q.Text,
		})
	}
}

type suggestRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func handleSuggest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req suggestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		results, err := deps.Searcher.Suggest(r.Context(), req.Query, req.Limit)
		if err != nil {
			writeError(w, err, "suggest failed")
			return
		}

		writeJSON(w, http.StatusOK, searchResponse{
			Results: resultsOrEmpty(results),
			Total:   len(results),
			Query:   req.Query,
		})
	}
}

func handleListComponents(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components, err := deps.Store.ListAll(r.Context())
		if err != nil {
			writeError(w, err, "failed to list components")
			return
		}
		writeJSON(w, http.StatusOK, componentsOrEmpty(components))
	}
}

func handleGetComponent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		c, err := deps.Store.Get(r.Context(), id)
		if err != nil {
			writeError(w, err, "failed to get component")
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func handleGetComponentsByName(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		components, err := deps.Store.GetByName(r.Context(), name)
		if err != nil {
			writeError(w, err, "failed to get components by name")
			return
		}
		writeJSON(w, http.StatusOK, componentsOrEmpty(components))
	}
}

func handleCreateComponent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var d index.Descriptor
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		c, err := deps.Indexer.Index(r.Context(), d)
		if err != nil {
			writeError(w, err, "failed to create component")
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

// componentPatch distinguishes absent fields from zero values so a partial
// update only touches what the caller sent.
type componentPatch struct {
	Name         *string             `json:"name"`
	Description  *string             `json:"description"`
	FilePath     *string             `json:"file_path"`
	ImportPath   *string             `json:"import_path"`
	Props        *[]catalog.Prop     `json:"props"`
	Examples     *[]catalog.Example  `json:"examples"`
	Category     *string             `json:"category"`
	Tags         *[]string           `json:"tags"`
	ThemeWrapper *string             `json:"theme_wrapper"`
	ExportType   *catalog.ExportType `json:"export_type"`
}

func handleUpdateComponent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var patch componentPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		existing, err := deps.Store.Get(r.Context(), id)
		if err != nil {
			writeError(w, err, "failed to get component")
			return
		}

		// Re-index the merged descriptor under the same id so the stored
		// embedding always reflects the current descriptive fields.
		updated, err := deps.Indexer.Index(r.Context(), mergePatch(existing, patch))
		if err != nil {
			writeError(w, err, "failed to update component")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func mergePatch(c catalog.Component, p componentPatch) index.Descriptor {
	d := index.Descriptor{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		FilePath:     c.FilePath,
		ImportPath:   c.ImportPath,
		Props:        c.Props,
		Examples:     c.Examples,
		Category:     c.Category,
		Tags:         c.Tags,
		ThemeWrapper: c.ThemeWrapper,
		ExportType:   c.ExportType,
	}
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.FilePath != nil {
		d.FilePath = *p.FilePath
	}
	if p.ImportPath != nil {
		d.ImportPath = *p.ImportPath
	}
	if p.Props != nil {
		d.Props = *p.Props
	}
	if p.Examples != nil {
		d.Examples = *p.Examples
	}
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.Tags != nil {
		d.Tags = *p.Tags
	}
	if p.ThemeWrapper != nil {
		d.ThemeWrapper = *p.ThemeWrapper
	}
	if p.ExportType != nil {
		d.ExportType = *p.ExportType
	}
	return d
}

func handleDeleteComponent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := deps.Store.Delete(r.Context(), id); err != nil {
			writeError(w, err, "failed to delete component")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type scanRequest struct {
	FolderPath        string `json:"folder_path"`
	IncludeStorybooks *bool  `json:"include_storybooks"`
	IncludeTests      bool   `json:"include_tests"`
	Recursive         *bool  `json:"recursive"`
}

type scanResponse struct {
	ComponentsFound int                 `json:"components_found"`
	Components      []catalog.Component `json:"components"`
	Errors          []string            `json:"errors"`
}

func handleScan(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req scanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.FolderPath == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "folder_path is required")
			return
		}

		opts := scan.Options{
			IncludeStorybooks: boolOrDefault(req.IncludeStorybooks, true),
			IncludeTests:      req.IncludeTests,
			Recursive:         boolOrDefault(req.Recursive, true),
		}

		scanID := uuid.New().String()
		logger := slog.With("scan_id", scanID, "folder", req.FolderPath)

		descriptors, scanErrs, err := scan.Collect(req.FolderPath, opts)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		logger.Info("scan collected descriptors", "descriptors", len(descriptors), "file_errors", len(scanErrs))

		result, err := deps.Indexer.IndexAll(r.Context(), descriptors)
		if err != nil {
			// Only cancellation aborts a batch mid-way.
			writeError(w, err, "scan aborted")
			return
		}
		logger.Info("scan indexed components", "indexed", result.Indexed, "errors", len(result.Errors))

		allErrs := append(scanErrs, result.Errors...)
		if allErrs == nil {
			allErrs = []string{}
		}
		writeJSON(w, http.StatusOK, scanResponse{
			ComponentsFound: result.Indexed,
			Components:      componentsOrEmpty(result.Components),
			Errors:          allErrs,
		})
	}
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func resultsOrEmpty(r []catalog.SearchResult) []catalog.SearchResult {
	if r == nil {
		return []catalog.SearchResult{}
	}
	return r
}

func componentsOrEmpty(c []catalog.Component) []catalog.Component {
	if c == nil {
		return []catalog.Component{}
	}
	return c
}

// writeError maps the error taxonomy to HTTP status codes.
func writeError(w http.ResponseWriter, err error, context string) {
	var embedErr *embedding.Error
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%s: %v", context, err)
	case errors.Is(err, catalog.ErrInvalidArgument):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s: %v", context, err)
	case errors.As(err, &embedErr):
		httpError(w, http.StatusBadGateway, "api_error", "%s: %v", context, err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%s: %v", context, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
