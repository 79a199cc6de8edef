// Package selector picks the next unprocessed image from the catalog.
package selector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/vthunder/plantbud/internal/types"
)

// NormalizeID trims surrounding whitespace and case-folds an identifier
func NormalizeID(id string) string {
	// Casers are stateful, so each call gets its own.
	return cases.Fold().String(strings.TrimSpace(id))
}

// IDSet is a set of normalized identifiers
type IDSet map[string]struct{}

// NewIDSet normalizes ids into a set; duplicates collapse
func NewIDSet(ids []string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts the normalized form of id
func (s IDSet) Add(id string) {
	s[NormalizeID(id)] = struct{}{}
}

// Contains reports whether id (in any case or padding) is in the set
func (s IDSet) Contains(id string) bool {
	_, ok := s[NormalizeID(id)]
	return ok
}

// SelectNext returns the first catalog item, ordered by normalized identifier,
// that is not in processed. ok is false when there is nothing to do.
// The catalog slice is not modified.
func SelectNext(catalog []types.WorkItem, processed IDSet) (types.WorkItem, bool) {
	if len(catalog) == 0 {
		return types.WorkItem{}, false
	}

	type keyed struct {
		key  string
		item types.WorkItem
	}
	ordered := make([]keyed, len(catalog))
	for i, item := range catalog {
		ordered[i] = keyed{key: NormalizeID(item.ID), item: item}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.key != b.key {
			return a.key < b.key
		}
		if a.item.ID != b.item.ID {
			return a.item.ID < b.item.ID
		}
		return a.item.CreatedAt.Before(b.item.CreatedAt)
	})

	for _, k := range ordered {
		if _, done := processed[k.key]; !done {
			return k.item, true
		}
	}
	return types.WorkItem{}, false
}

// Catalog lists available work items
type Catalog interface {
	ListAvailable(ctx context.Context) ([]types.WorkItem, error)
}

// Ledger exposes already-processed identifiers
type Ledger interface {
	ReadProcessedIdentifiers(ctx context.Context) ([]string, error)
}

// Selector reads both collaborators and applies SelectNext
type Selector struct {
	catalog Catalog
	ledger  Ledger
}

// New creates a selector
func New(catalog Catalog, ledger Ledger) *Selector {
	return &Selector{catalog: catalog, ledger: ledger}
}

// Next returns the next item to process. A read failure is reported as
// types.ErrDataUnavailable, never as "no work".
func (s *Selector) Next(ctx context.Context) (types.WorkItem, bool, error) {
	items, err := s.catalog.ListAvailable(ctx)
	if err != nil {
		return types.WorkItem{}, false, fmt.Errorf("%w: list catalog: %w", types.ErrDataUnavailable, err)
	}
	ids, err := s.ledger.ReadProcessedIdentifiers(ctx)
	if err != nil {
		return types.WorkItem{}, false, fmt.Errorf("%w: read ledger: %w", types.ErrDataUnavailable, err)
	}
	item, ok := SelectNext(items, NewIDSet(ids))
	return item, ok, nil
}

// Pending counts catalog items not yet processed
func (s *Selector) Pending(ctx context.Context) (int, error) {
	items, err := s.catalog.ListAvailable(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: list catalog: %w", types.ErrDataUnavailable, err)
	}
	ids, err := s.ledger.ReadProcessedIdentifiers(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: read ledger: %w", types.ErrDataUnavailable, err)
	}
	processed := NewIDSet(ids)
	n := 0
	for _, item := range items {
		if !processed.Contains(item.ID) {
			n++
		}
	}
	return n, nil
}
