// Package vectorstore defines the similarity index used by the ingestion and
// query pipelines, along with an in-memory implementation.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rag-lab/server/internal/domain"
)

// Row is one embedded chunk, tagged with the ids needed to scope search and
// deletion.
type Row struct {
	ChunkID      string
	DocumentID   string
	CollectionID string
	Content      string
	Vector       []float32
}

// Result is one search hit. Distance is Euclidean; lower is more similar.
type Result struct {
	ChunkID    string
	DocumentID string
	Content    string
	Distance   float64
}

// Store is a vector index scoped by collection and document.
//
// The index starts Uninitialized and is created on the first Upsert, which
// also fixes its dimensionality. Search and the deletes are no-ops until
// then.
type Store interface {
	// Upsert inserts rows, replacing any with the same chunk id.
	Upsert(ctx context.Context, rows []Row) error
	// Search returns up to limit rows of the collection nearest to query,
	// ordered by ascending distance.
	Search(ctx context.Context, query []float32, collectionID string, limit int) ([]Result, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	DeleteByCollection(ctx context.Context, collectionID string) error
}

// State is the lifecycle of an index.
type State int

const (
	// Uninitialized means no index exists yet.
	Uninitialized State = iota
	// Ready means the index exists with a fixed dimensionality.
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CheckRows verifies every row has a vector of dim elements. A dim of 0 takes
// the dimensionality of the first row. It returns the dimensionality.
func CheckRows(rows []Row, dim int) (int, error) {
	for i, r := range rows {
		if len(r.Vector) == 0 {
			return 0, fmt.Errorf("row %d (chunk %s) has an empty vector", i, r.ChunkID)
		}
		if dim == 0 {
			dim = len(r.Vector)
		}
		if len(r.Vector) != dim {
			return 0, fmt.Errorf("%w: chunk %s has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, r.ChunkID, len(r.Vector), dim)
		}
	}
	return dim, nil
}

// L2Distance returns the Euclidean distance between a and b, which must have
// the same length.
func L2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Rank sorts results by ascending distance, breaking ties by chunk id, and
// keeps the first limit.
func Rank(results []Result, limit int) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
