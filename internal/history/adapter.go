// Package history loads past diagnoses from the analysis log or a semantic
// memory service and normalizes them into types.HistoricalRecord.
package history

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vthunder/plantbud/internal/logging"
	"github.com/vthunder/plantbud/internal/types"
)

// DefaultWindow is the number of records used to build context
const DefaultWindow = 10

// maxScanFactor bounds how far LoadRecent widens its read window
const maxScanFactor = 8

// RowReader reads the structured analysis log. Rows come back oldest first
// and may be incomplete.
type RowReader interface {
	ReadRecentRows(ctx context.Context, limit int) ([]types.HistoricalRecord, error)
}

// Searcher is an optional ranked memory service
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]types.HistoricalRecord, error)
}

// SearchResult carries records and the path that supplied them
type SearchResult struct {
	Records []types.HistoricalRecord `json:"records"`
	Source  types.DigestSource       `json:"source"`
}

// Adapter is the single entry point for history reads
type Adapter struct {
	rows     RowReader
	searcher Searcher
}

// NewAdapter creates an adapter. searcher may be nil.
func NewAdapter(rows RowReader, searcher Searcher) *Adapter {
	return &Adapter{rows: rows, searcher: searcher}
}

// HasSearcher reports whether semantic search is configured
func (a *Adapter) HasSearcher() bool {
	return a.searcher != nil
}

// LoadRecent returns up to limit valid records, oldest first. Invalid rows do
// not count toward limit. No data is an empty slice; only an unreachable
// store is an error.
func (a *Adapter) LoadRecent(ctx context.Context, limit int) ([]types.HistoricalRecord, error) {
	if limit <= 0 {
		return []types.HistoricalRecord{}, nil
	}

	window := limit
	var valid []types.HistoricalRecord
	for {
		rows, err := a.rows.ReadRecentRows(ctx, window)
		if err != nil {
			return nil, fmt.Errorf("%w: read history: %w", types.ErrDataUnavailable, err)
		}
		valid = filterValid(rows)
		exhausted := len(rows) < window
		if len(valid) >= limit || exhausted || window >= limit*maxScanFactor {
			break
		}
		window *= 2
	}

	sortChronological(valid)
	if len(valid) > limit {
		valid = valid[len(valid)-limit:]
	}
	return valid, nil
}

// LoadBySemanticQuery asks the searcher first and falls back to LoadRecent
// when it is absent, failing or empty.
func (a *Adapter) LoadBySemanticQuery(ctx context.Context, query string, limit int) (SearchResult, error) {
	if a.searcher != nil && strings.TrimSpace(query) != "" && limit > 0 {
		hits, err := a.searcher.Search(ctx, query, limit)
		switch {
		case err != nil:
			logging.Warn("history", "semantic search failed, using recent records: %v", err)
		default:
			hits = filterValid(hits)
			if len(hits) > limit {
				hits = hits[:limit]
			}
			if len(hits) > 0 {
				sortChronological(hits)
				return SearchResult{Records: hits, Source: types.SourceSemantic}, nil
			}
			logging.Debug("history", "semantic search returned no usable records for %q", logging.Truncate(query, 60))
		}
	}

	records, err := a.LoadRecent(ctx, limit)
	if err != nil {
		return SearchResult{Records: []types.HistoricalRecord{}, Source: types.SourceNone}, err
	}
	if len(records) == 0 {
		return SearchResult{Records: records, Source: types.SourceNone}, nil
	}
	return SearchResult{Records: records, Source: types.SourceRecent}, nil
}

func filterValid(rows []types.HistoricalRecord) []types.HistoricalRecord {
	out := make([]types.HistoricalRecord, 0, len(rows))
	for _, r := range rows {
		if r.Timestamp.IsZero() || strings.TrimSpace(r.SubjectID) == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func sortChronological(records []types.HistoricalRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
}
