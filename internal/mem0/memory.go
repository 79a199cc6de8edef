package mem0

import (
	"context"
	"time"

	"github.com/vthunder/plantbud/internal/history"
	"github.com/vthunder/plantbud/internal/types"
)

// PlantMemory stores formatted analysis records and returns search hits
// as history records.
type PlantMemory struct {
	client     *Client
	hemisphere history.Hemisphere
}

// NewPlantMemory wraps a client
func NewPlantMemory(client *Client, hemisphere history.Hemisphere) *PlantMemory {
	return &PlantMemory{client: client, hemisphere: hemisphere}
}

// Remember stores one analysis
func (m *PlantMemory) Remember(ctx context.Context, r types.HistoricalRecord) error {
	meta := map[string]string{
		"image_name":  r.SubjectID,
		"timestamp":   r.Timestamp.Format(time.RFC3339),
		"health":      r.Health,
		"season":      history.Season(r.Timestamp, m.hemisphere),
		"time_of_day": history.TimeOfDay(r.Timestamp),
		"type":        "plant_analysis",
	}
	_, err := m.client.Add(ctx, history.FormatMemory(r, m.hemisphere), meta)
	return err
}

// Search implements history.Searcher
func (m *PlantMemory) Search(ctx context.Context, query string, limit int) ([]types.HistoricalRecord, error) {
	mems, err := m.client.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.HistoricalRecord, 0, len(mems))
	for _, mem := range mems {
		rec := history.ParseMemory(mem.Memory)
		if rec.SubjectID == "" {
			rec.SubjectID = mem.Metadata["image_name"]
		}
		if rec.Timestamp.IsZero() {
			if ts, err := time.Parse(time.RFC3339, mem.Metadata["timestamp"]); err == nil {
				rec.Timestamp = ts
			} else if !mem.CreatedAt.IsZero() {
				rec.Timestamp = mem.CreatedAt
			}
		}
		if rec.Health == "" {
			rec.Health = mem.Metadata["health"]
		}
		rec.Score = mem.Score
		rec.Source = "mem0"
		out = append(out, rec)
	}
	return out, nil
}

// Count returns the number of stored memories
func (m *PlantMemory) Count(ctx context.Context) (int, error) {
	return m.client.Count(ctx)
}
