// Package vectormem is a local semantic memory of past analyses backed by
// chromem-go. It is used when no hosted memory service is configured.
package vectormem

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	chromem "github.com/philippgille/chromem-go"

	"github.com/vthunder/plantbud/internal/embedding"
	"github.com/vthunder/plantbud/internal/history"
	"github.com/vthunder/plantbud/internal/types"
)

const collectionName = "plant_analyses"

// Store holds analysis memories in a chromem collection
type Store struct {
	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
	hemisphere history.Hemisphere
}

// Open creates or loads the store. An empty dir keeps everything in memory.
func Open(dir string, embedder embedding.Embedder, hemisphere history.Hemisphere) (*Store, error) {
	var db *chromem.DB
	if dir != "" {
		var err error
		db, err = chromem.NewPersistentDB(filepath.Join(dir, "vectormem"), false)
		if err != nil {
			return nil, fmt.Errorf("create persistent DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embed := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Store{db: db, collection: collection, hemisphere: hemisphere}, nil
}

// Remember stores one analysis
func (s *Store) Remember(ctx context.Context, r types.HistoricalRecord) error {
	doc := chromem.Document{
		ID:      ulid.Make().String(),
		Content: history.FormatMemory(r, s.hemisphere),
		Metadata: map[string]string{
			"image_name":  r.SubjectID,
			"timestamp":   r.Timestamp.UTC().Format(time.RFC3339),
			"season":      history.Season(r.Timestamp, s.hemisphere),
			"time_of_day": history.TimeOfDay(r.Timestamp),
		},
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Search implements history.Searcher
func (s *Store) Search(ctx context.Context, query string, limit int) ([]types.HistoricalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// chromem rejects n larger than the collection
	n := min(limit, s.collection.Count())
	if n <= 0 {
		return nil, nil
	}
	results, err := s.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	out := make([]types.HistoricalRecord, 0, len(results))
	for _, r := range results {
		rec := history.ParseMemory(r.Content)
		if rec.SubjectID == "" {
			rec.SubjectID = r.Metadata["image_name"]
		}
		if rec.Timestamp.IsZero() {
			if ts, err := time.Parse(time.RFC3339, r.Metadata["timestamp"]); err == nil {
				rec.Timestamp = ts
			}
		}
		rec.Score = float64(r.Similarity)
		rec.Source = "vector"
		out = append(out, rec)
	}
	return out, nil
}

// Count returns the number of stored memories
func (s *Store) Count(context.Context) (int, error) {
	return s.collection.Count(), nil
}
