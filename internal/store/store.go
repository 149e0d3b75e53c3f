// Package store persists component records together with their embedding
// vectors in SQLite. A record and its vector live in one row, so every
// mutation is atomic with respect to the pair: there is never a record
// without a vector or a vector without a record.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/uiscout/uiscout/internal/catalog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding the component collection.
type Store struct {
	db *sql.DB

	// Collection binding, set by EnsureModel. Guards against mixing
	// vectors from different embedding models in one collection.
	model      string
	dimensions int
}

// Open opens (or creates) the component database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "uiscout.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// EnsureModel binds the store to an embedding model and its dimensionality.
// On a fresh collection the pair is recorded; on an existing collection a
// mismatch is rejected so a database built with one model is never queried
// with vectors from another.
func (s *Store) EnsureModel(modelID string, dimensions int) error {
	if modelID == "" || dimensions <= 0 {
		return fmt.Errorf("%w: model %q with %d dimensions", catalog.ErrInvalidArgument, modelID, dimensions)
	}

	var storedModel string
	err := s.db.QueryRow("SELECT value FROM collection_meta WHERE key = 'embed_model'").Scan(&storedModel)
	switch {
	case err == sql.ErrNoRows:
		tx, txErr := s.db.Begin()
		if txErr != nil {
			return fmt.Errorf("beginning meta transaction: %w", txErr)
		}
		if _, txErr = tx.Exec("INSERT INTO collection_meta (key, value) VALUES ('embed_model', ?)", modelID); txErr != nil {
			tx.Rollback()
			return fmt.Errorf("recording embed model: %w", txErr)
		}
		if _, txErr = tx.Exec("INSERT INTO collection_meta (key, value) VALUES ('dimensions', ?)", strconv.Itoa(dimensions)); txErr != nil {
			tx.Rollback()
			return fmt.Errorf("recording dimensions: %w", txErr)
		}
		if txErr = tx.Commit(); txErr != nil {
			return fmt.Errorf("committing meta: %w", txErr)
		}
	case err != nil:
		return fmt.Errorf("reading collection meta: %w", err)
	default:
		var storedDims string
		if err := s.db.QueryRow("SELECT value FROM collection_meta WHERE key = 'dimensions'").Scan(&storedDims); err != nil {
			return fmt.Errorf("reading collection dimensions: %w", err)
		}
		if storedModel != modelID || storedDims != strconv.Itoa(dimensions) {
			return fmt.Errorf("%w: collection was built with model %s (%s dims), got %s (%d dims)",
				catalog.ErrInvalidArgument, storedModel, storedDims, modelID, dimensions)
		}
	}

	s.model = modelID
	s.dimensions = dimensions
	return nil
}

// Model returns the embedding model the collection is bound to.
func (s *Store) Model() string { return s.model }

// Upsert inserts or replaces a component and its vector by id. On replace,
// created_at is preserved and updated_at is refreshed. The whole pair is
// written in one statement, so concurrent upserts to the same id cannot
// interleave record fields from one call with the vector of another.
func (s *Store) Upsert(ctx context.Context, c catalog.Component, vector []float32) error {
	if c.ID == "" {
		return fmt.Errorf("%w: component id is empty", catalog.ErrInvalidArgument)
	}
	if err := s.checkDimensions(len(vector)); err != nil {
		return err
	}

	props, err := json.Marshal(propsOrEmpty(c.Props))
	if err != nil {
		return fmt.Errorf("marshalling props: %w", err)
	}
	examples, err := json.Marshal(examplesOrEmpty(c.Examples))
	if err != nil {
		return fmt.Errorf("marshalling examples: %w", err)
	}
	tags, err := json.Marshal(tagsOrEmpty(c.Tags))
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}

	now := time.Now().UTC().Format(timeLayout)
	createdAt := now
	if !c.CreatedAt.IsZero() {
		createdAt = c.CreatedAt.UTC().Format(timeLayout)
	}
	exportType := c.ExportType
	if exportType == "" {
		exportType = catalog.ExportNamed
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO components (id, name, description, file_path, import_path, props, examples, category, tags, theme_wrapper, export_type, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			file_path = excluded.file_path,
			import_path = excluded.import_path,
			props = excluded.props,
			examples = excluded.examples,
			category = excluded.category,
			tags = excluded.tags,
			theme_wrapper = excluded.theme_wrapper,
			export_type = excluded.export_type,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, c.Description, c.FilePath, c.ImportPath,
		string(props), string(examples), c.Category, string(tags),
		c.ThemeWrapper, string(exportType), encodeFloat32s(vector), createdAt, now,
	)
	if err != nil {
		return fmt.Errorf("upserting component %s: %w", c.ID, err)
	}
	return nil
}

const componentColumns = `id, name, description, file_path, import_path, props, examples, category, tags, theme_wrapper, export_type, created_at, updated_at`

// timeLayout is RFC 3339 with fixed-width nanoseconds. Rows written in the
// same second must still sort chronologically under SQLite's lexicographic
// ORDER BY on updated_at, which RFC3339Nano's trimmed trailing zeros break.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Get returns the component with the given id, without its vector.
func (s *Store) Get(ctx context.Context, id string) (catalog.Component, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+componentColumns+` FROM components WHERE id = ?`, id)
	c, err := scanComponent(row)
	if err == sql.ErrNoRows {
		return catalog.Component{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Component{}, fmt.Errorf("getting component %s: %w", id, err)
	}
	return c, nil
}

// GetByName returns all components with the given name, most recently
// indexed first. Names are not unique across files, so the ordering makes
// repeated lookups predictable.
func (s *Store) GetByName(ctx context.Context, name string) ([]catalog.Component, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+componentColumns+` FROM components WHERE name = ? ORDER BY updated_at DESC, id ASC`, name)
	if err != nil {
		return nil, fmt.Errorf("querying components by name %q: %w", name, err)
	}
	defer rows.Close()
	return collectComponents(rows)
}

// ListAll returns every component, ordered by name. Vectors are never
// included in listings.
func (s *Store) ListAll(ctx context.Context) ([]catalog.Component, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+componentColumns+` FROM components ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing components: %w", err)
	}
	defer rows.Close()
	return collectComponents(rows)
}

// Delete removes a component and its vector together.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM components WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting component %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// Count returns the number of components in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM components").Scan(&count)
	return count, err
}

func (s *Store) checkDimensions(got int) error {
	if s.dimensions == 0 {
		return fmt.Errorf("collection not bound to an embedding model (call EnsureModel)")
	}
	if got != s.dimensions {
		return fmt.Errorf("%w: vector has %d dimensions, collection expects %d", catalog.ErrInvalidArgument, got, s.dimensions)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanComponent(row scanner) (catalog.Component, error) {
	var c catalog.Component
	var props, examples, tags, exportType, createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.FilePath, &c.ImportPath,
		&props, &examples, &c.Category, &tags, &c.ThemeWrapper, &exportType, &createdAt, &updatedAt)
	if err != nil {
		return catalog.Component{}, err
	}

	if err := json.Unmarshal([]byte(props), &c.Props); err != nil {
		return catalog.Component{}, fmt.Errorf("parsing props for %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(examples), &c.Examples); err != nil {
		return catalog.Component{}, fmt.Errorf("parsing examples for %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		return catalog.Component{}, fmt.Errorf("parsing tags for %s: %w", c.ID, err)
	}
	c.ExportType = catalog.ExportType(exportType)

	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return catalog.Component{}, fmt.Errorf("parsing created_at for %s: %w", c.ID, err)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return catalog.Component{}, fmt.Errorf("parsing updated_at for %s: %w", c.ID, err)
	}
	return c, nil
}

func collectComponents(rows *sql.Rows) ([]catalog.Component, error) {
	var results []catalog.Component
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func propsOrEmpty(p []catalog.Prop) []catalog.Prop {
	if p == nil {
		return []catalog.Prop{}
	}
	return p
}

func examplesOrEmpty(e []catalog.Example) []catalog.Example {
	if e == nil {
		return []catalog.Example{}
	}
	return e
}

func tagsOrEmpty(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}
