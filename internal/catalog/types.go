// Package catalog defines the component data model shared by the store,
// the indexing pipeline and the service boundary.
//
// JSON tags use snake_case: that is the wire convention for every payload
// crossing the HTTP and MCP boundaries. Go code uses the usual camelCase
// field names internally.
package catalog

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested component does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidArgument is returned for malformed queries and descriptors,
// including vector dimensionality mismatches against the collection.
var ErrInvalidArgument = errors.New("invalid argument")

// ExportType describes how a component is exported from its module.
type ExportType string

const (
	ExportDefault ExportType = "default"
	ExportNamed   ExportType = "named"
)

// ExampleSource describes where a usage example came from.
type ExampleSource string

const (
	SourceGenerated ExampleSource = "generated"
	SourceExtracted ExampleSource = "extracted"
	SourceExternal  ExampleSource = "external"
)

// Prop is a single component property definition. Order within a component is
// preserved for display but plays no role in matching.
type Prop struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Default     string `json:"default_value,omitempty"`
	Description string `json:"description,omitempty"`
}

// Example is a usage example attached to a component.
type Example struct {
	Title       string        `json:"title"`
	Code        string        `json:"code"`
	Description string        `json:"description,omitempty"`
	Source      ExampleSource `json:"source,omitempty"`
}

// Component is the unit of storage. ID is the only stable join key across
// re-indexing; Name is a secondary, non-unique lookup key.
type Component struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	FilePath     string     `json:"file_path"`
	ImportPath   string     `json:"import_path,omitempty"`
	Props        []Prop     `json:"props"`
	Examples     []Example  `json:"examples"`
	Category     string     `json:"category,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	ThemeWrapper string     `json:"theme_wrapper,omitempty"`
	ExportType   ExportType `json:"export_type,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Filters narrow a query to components matching every predicate.
// Zero-valued fields are ignored.
type Filters struct {
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	RequiredProps []string `json:"required_props,omitempty"`
}

// SearchQuery is a semantic search request.
type SearchQuery struct {
	Text    string   `json:"query"`
	Limit   int      `json:"limit,omitempty"`
	Filters *Filters `json:"filters,omitempty"`
}

// SearchResult pairs a component with its similarity score. Score is in
// [0,1] and comparable only within a single query's result set.
// MatchedFields is an explainability hint, not a ranking input.
type SearchResult struct {
	Component     Component `json:"component"`
	Score         float64   `json:"score"`
	MatchedFields []string  `json:"matched_fields"`
}
