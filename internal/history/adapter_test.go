package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vthunder/plantbud/internal/types"
)

var base = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

func row(i int, subject string) types.HistoricalRecord {
	return types.HistoricalRecord{
		Timestamp: base.Add(time.Duration(i) * time.Hour),
		SubjectID: subject,
		Health:    fmt.Sprintf("health %d", i),
	}
}

// fakeRows serves the tail of rows, oldest first
type fakeRows struct {
	rows  []types.HistoricalRecord
	err   error
	calls []int
}

func (f *fakeRows) ReadRecentRows(_ context.Context, limit int) ([]types.HistoricalRecord, error) {
	f.calls = append(f.calls, limit)
	if f.err != nil {
		return nil, f.err
	}
	start := len(f.rows) - limit
	if start < 0 {
		start = 0
	}
	return append([]types.HistoricalRecord(nil), f.rows[start:]...), nil
}

type fakeSearcher struct {
	hits []types.HistoricalRecord
	err  error
}

func (f fakeSearcher) Search(context.Context, string, int) ([]types.HistoricalRecord, error) {
	return f.hits, f.err
}

func TestLoadRecent_OldestFirstAndLimited(t *testing.T) {
	var rows []types.HistoricalRecord
	for i := 0; i < 15; i++ {
		rows = append(rows, row(i, fmt.Sprintf("img%02d.jpg", i)))
	}
	a := NewAdapter(&fakeRows{rows: rows}, nil)

	got, err := a.LoadRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, "img05.jpg", got[0].SubjectID)
	assert.Equal(t, "img14.jpg", got[9].SubjectID)
}

func TestLoadRecent_InvalidRowsDoNotCount(t *testing.T) {
	var rows []types.HistoricalRecord
	for i := 0; i < 6; i++ {
		rows = append(rows, row(i, fmt.Sprintf("img%d.jpg", i)))
	}
	// Most recent rows are broken.
	rows = append(rows,
		types.HistoricalRecord{SubjectID: "no-timestamp.jpg"},
		row(7, "  "),
		types.HistoricalRecord{},
	)
	fr := &fakeRows{rows: rows}
	a := NewAdapter(fr, nil)

	got, err := a.LoadRecent(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "img2.jpg", got[0].SubjectID)
	assert.Equal(t, "img5.jpg", got[3].SubjectID)
	assert.Equal(t, []int{4, 8}, fr.calls)
}

func TestLoadRecent_NoData(t *testing.T) {
	a := NewAdapter(&fakeRows{}, nil)
	got, err := a.LoadRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLoadRecent_Unreachable(t *testing.T) {
	a := NewAdapter(&fakeRows{err: errors.New("disk I/O error")}, nil)
	_, err := a.LoadRecent(context.Background(), 10)
	assert.ErrorIs(t, err, types.ErrDataUnavailable)
}

func TestLoadBySemanticQuery(t *testing.T) {
	recent := &fakeRows{rows: []types.HistoricalRecord{row(1, "a.jpg"), row(2, "b.jpg")}}

	tests := []struct {
		name     string
		rows     *fakeRows
		searcher Searcher
		want     types.DigestSource
		first    string
	}{
		{"no searcher", recent, nil, types.SourceRecent, "a.jpg"},
		{"searcher error", recent, fakeSearcher{err: errors.New("503")}, types.SourceRecent, "a.jpg"},
		{"no hits", recent, fakeSearcher{}, types.SourceRecent, "a.jpg"},
		{"only invalid hits", recent, fakeSearcher{hits: []types.HistoricalRecord{{Health: "x"}}}, types.SourceRecent, "a.jpg"},
		{"semantic hits sorted oldest first", recent, fakeSearcher{hits: []types.HistoricalRecord{row(9, "z.jpg"), row(3, "m.jpg")}}, types.SourceSemantic, "m.jpg"},
		{"nothing anywhere", &fakeRows{}, fakeSearcher{}, types.SourceNone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(tt.rows, tt.searcher)
			res, err := a.LoadBySemanticQuery(context.Background(), "plant health", 10)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Source)
			if tt.first != "" {
				require.NotEmpty(t, res.Records)
				assert.Equal(t, tt.first, res.Records[0].SubjectID)
			} else {
				assert.Empty(t, res.Records)
			}
		})
	}
}

func TestLoadBySemanticQuery_StoreDown(t *testing.T) {
	a := NewAdapter(&fakeRows{err: errors.New("locked")}, fakeSearcher{err: errors.New("timeout")})
	res, err := a.LoadBySemanticQuery(context.Background(), "q", 5)
	assert.ErrorIs(t, err, types.ErrDataUnavailable)
	assert.Equal(t, types.SourceNone, res.Source)
}
