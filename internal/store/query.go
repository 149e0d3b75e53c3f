package store

import (
	"container/heap"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/uiscout/uiscout/internal/catalog"
)

// Scored pairs a component with its raw cosine similarity in [-1,1].
type Scored struct {
	catalog.Component
	Similarity float64
}

// idScore holds only the id and similarity during the scan phase of Query.
// Full records are fetched only for top-K winners.
type idScore struct {
	ID    string
	Score float64
}

// Query performs brute-force cosine similarity search over all vectors,
// returning the top-K most similar components. Filters are evaluated during
// the scan phase (pre-filter), so the result never contains a component
// failing any predicate, even if that means fewer than k results.
//
// An empty collection yields an empty result, not an error.
func (s *Store) Query(ctx context.Context, vector []float32, k int, filters *catalog.Filters) ([]Scored, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", catalog.ErrInvalidArgument, k)
	}
	if err := s.checkDimensions(len(vector)); err != nil {
		return nil, err
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	// Phase 1: scan id + embedding (+ filter columns) to find top-K candidates.
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding, category, tags, props FROM components`)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	h := &idScoreHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id, category, tagsJSON, propsJSON string
		var blob []byte
		if err := rows.Scan(&id, &blob, &category, &tagsJSON, &propsJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		if filters != nil {
			ok, err := matchesFilters(filters, category, tagsJSON, propsJSON)
			if err != nil {
				return nil, fmt.Errorf("evaluating filters for %s: %w", id, err)
			}
			if !ok {
				continue
			}
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}
		if len(buf) != len(vector) {
			return nil, fmt.Errorf("%w: stored vector for %s has %d dimensions, query has %d",
				catalog.ErrInvalidArgument, id, len(buf), len(vector))
		}

		score := cosine(vector, buf, queryNorm)
		if h.Len() < k {
			heap.Push(h, idScore{ID: id, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = idScore{ID: id, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch full records only for the winners.
	topIDs := make([]string, h.Len())
	scores := make(map[string]float64, h.Len())
	for i := len(topIDs) - 1; i >= 0; i-- {
		item := heap.Pop(h).(idScore)
		topIDs[i] = item.ID
		scores[item.ID] = item.Score
	}

	queryArgs := make([]any, len(topIDs))
	for i, id := range topIDs {
		queryArgs[i] = id
	}
	fullQuery := `SELECT ` + componentColumns + ` FROM components WHERE id IN (?` +
		strings.Repeat(",?", len(topIDs)-1) + `)`

	fullRows, err := s.db.QueryContext(ctx, fullQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K components: %w", err)
	}
	defer fullRows.Close()

	var results []Scored
	for fullRows.Next() {
		c, err := scanComponent(fullRows)
		if err != nil {
			return nil, fmt.Errorf("scanning full record: %w", err)
		}
		results = append(results, Scored{Component: c, Similarity: scores[c.ID]})
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating full records: %w", err)
	}

	// Sort results by similarity descending (IN query doesn't preserve order).
	sortBySimilarity(results)

	return results, nil
}

// matchesFilters evaluates the filter predicates against the raw filter
// columns. Tag and prop JSON is only decoded when the corresponding
// predicate is set.
func matchesFilters(f *catalog.Filters, category, tagsJSON, propsJSON string) (bool, error) {
	if f.Category != "" && f.Category != category {
		return false, nil
	}

	if len(f.Tags) > 0 {
		var tags []string
		if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
			return false, fmt.Errorf("parsing tags: %w", err)
		}
		if !containsAll(tags, f.Tags) {
			return false, nil
		}
	}

	if len(f.RequiredProps) > 0 {
		var props []catalog.Prop
		if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
			return false, fmt.Errorf("parsing props: %w", err)
		}
		names := make([]string, len(props))
		for i, p := range props {
			names[i] = p.Name
		}
		if !containsAll(names, f.RequiredProps) {
			return false, nil
		}
	}

	return true, nil
}

func containsAll(haystack, needles []string) bool {
	set := make(map[string]struct{}, len(haystack))
	for _, h := range haystack {
		set[h] = struct{}{}
	}
	for _, n := range needles {
		if _, ok := set[n]; !ok {
			return false
		}
	}
	return true
}

// sortBySimilarity sorts Scored by Similarity descending. Used for small slices (topK).
func sortBySimilarity(results []Scored) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Similarity > results[j-1].Similarity; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine computes cosine similarity as dot(a,b) / (aNorm * bNorm).
// aNorm is the precomputed L2 norm of vector a.
func cosine(a, b []float32, aNorm float64) float64 {
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return dot / (aNorm * bNorm)
}

// idScoreHeap is a min-heap of idScore ordered by Score.
// Used during the scan phase of Query to track top-K candidates by id only.
type idScoreHeap []idScore

func (h idScoreHeap) Len() int           { return len(h) }
func (h idScoreHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h idScoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idScoreHeap) Push(x any)        { *h = append(*h, x.(idScore)) }
func (h *idScoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
