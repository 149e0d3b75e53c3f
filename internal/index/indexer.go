// Package index converts raw component descriptors into stored, embedded
// component records. Indexing is idempotent: re-running on an unchanged
// descriptor produces the same id, the same embedding document and therefore
// the same embedding.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/uiscout/uiscout/internal/catalog"
	"github.com/uiscout/uiscout/internal/embedding"
	"github.com/uiscout/uiscout/internal/store"
)

// Descriptor is raw component metadata produced by an external parser.
// ID is optional; when empty it is derived from (FilePath, Name).
type Descriptor struct {
	ID           string             `json:"id,omitempty"`
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	FilePath     string             `json:"file_path"`
	ImportPath   string             `json:"import_path,omitempty"`
	Props        []catalog.Prop     `json:"props,omitempty"`
	Examples     []catalog.Example  `json:"examples,omitempty"`
	Category     string             `json:"category,omitempty"`
	Tags         []string           `json:"tags,omitempty"`
	ThemeWrapper string             `json:"theme_wrapper,omitempty"`
	ExportType   catalog.ExportType `json:"export_type,omitempty"`
}

// BatchResult reports the outcome of IndexAll. One descriptor's failure
// never aborts the batch; it is recorded here instead.
type BatchResult struct {
	Indexed    int
	Components []catalog.Component
	Errors     []string
}

// Indexer embeds descriptors and upserts them into the component store.
type Indexer struct {
	provider embedding.Provider
	store    *store.Store
}

// NewIndexer creates an Indexer backed by the given provider and store.
func NewIndexer(provider embedding.Provider, st *store.Store) *Indexer {
	return &Indexer{provider: provider, store: st}
}

// Index validates the descriptor, composes its embedding document, embeds it
// and upserts the resulting record. Nothing is committed when embedding
// fails: a record is never stored without its vector.
func (ix *Indexer) Index(ctx context.Context, d Descriptor) (catalog.Component, error) {
	if strings.TrimSpace(d.Name) == "" {
		return catalog.Component{}, fmt.Errorf("%w: descriptor has no name", catalog.ErrInvalidArgument)
	}

	doc := Document(d)
	vec, err := ix.provider.Embed(ctx, doc)
	if err != nil {
		return catalog.Component{}, fmt.Errorf("embedding document for %s: %w", d.Name, err)
	}

	id := d.ID
	if id == "" {
		id = DeriveID(d.FilePath, d.Name)
	}

	c := catalog.Component{
		ID:           id,
		Name:         d.Name,
		Description:  d.Description,
		FilePath:     d.FilePath,
		ImportPath:   d.ImportPath,
		Props:        d.Props,
		Examples:     d.Examples,
		Category:     d.Category,
		Tags:         d.Tags,
		ThemeWrapper: d.ThemeWrapper,
		ExportType:   d.ExportType,
	}

	if err := ix.store.Upsert(ctx, c, vec); err != nil {
		return catalog.Component{}, fmt.Errorf("storing component %s: %w", id, err)
	}

	// Re-read so callers see the store-assigned timestamps.
	return ix.store.Get(ctx, id)
}

// IndexAll indexes descriptors independently, collecting per-item failures.
// Cancellation is cooperative: the batch stops before starting the next
// descriptor, leaving already-committed records valid.
func (ix *Indexer) IndexAll(ctx context.Context, descriptors []Descriptor) (BatchResult, error) {
	var res BatchResult
	for i, d := range descriptors {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		c, err := ix.Index(ctx, d)
		if err != nil {
			name := d.Name
			if name == "" {
				name = fmt.Sprintf("descriptor %d", i)
			}
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		res.Indexed++
		res.Components = append(res.Components, c)
	}
	return res, nil
}

// DeriveID produces the stable component id from its provenance. Repeated
// scans of an unmodified file converge to the same record instead of
// accumulating duplicates.
func DeriveID(filePath, name string) string {
	sum := sha256.Sum256([]byte(filePath + "\x00" + name))
	return hex.EncodeToString(sum[:])[:32]
}

// Document composes the canonical embedding document for a descriptor.
// The line order is fixed; changing it would re-embed every unchanged
// component on the next scan.
func Document(d Descriptor) string {
	category := d.Category
	if category == "" {
		category = "Uncategorized"
	}

	parts := []string{
		"Component: " + d.Name,
		"Description: " + d.Description,
		"Category: " + category,
	}

	if len(d.Props) > 0 {
		props := make([]string, len(d.Props))
		for i, p := range d.Props {
			props[i] = p.Name + " (" + p.Type + ")"
		}
		parts = append(parts, "Props: "+strings.Join(props, ", "))
	}

	if len(d.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(d.Tags, ", "))
	}

	if len(d.Examples) > 0 {
		titles := make([]string, len(d.Examples))
		for i, e := range d.Examples {
			titles[i] = e.Title
		}
		parts = append(parts, "Examples: "+strings.Join(titles, ", "))
	}

	return strings.Join(parts, "\n")
}
