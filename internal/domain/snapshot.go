package domain

import (
	"context"
	"math"
)

// StampSummary is one row of a room's aggregate.
type StampSummary struct {
	StampID    int64   `json:"stampId"`
	StampName  string  `json:"stampName"`
	Color      string  `json:"color"`
	Icon       string  `json:"icon"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Snapshot is the aggregate of a room ordered by stamp id.
// It is never mutated after construction and may be shared between goroutines.
type Snapshot []StampSummary

// StampCount is a stamp with its raw message count, the input to NewSnapshot.
type StampCount struct {
	Stamp Stamp
	Count int64
}

// NewSnapshot fills in percentages (one decimal, 0 when nothing was sent).
// The order of counts is kept.
func NewSnapshot(counts []StampCount) Snapshot {
	var total int64
	for _, c := range counts {
		total += c.Count
	}

	snap := make(Snapshot, 0, len(counts))
	for _, c := range counts {
		var pct float64
		if total > 0 {
			pct = math.Round(float64(c.Count)*1000/float64(total)) / 10
		}
		snap = append(snap, StampSummary{
			StampID:    c.Stamp.ID,
			StampName:  c.Stamp.Name,
			Color:      c.Stamp.Color,
			Icon:       c.Stamp.Icon,
			Count:      c.Count,
			Percentage: pct,
		})
	}
	return snap
}

// Total returns the number of messages counted in the snapshot.
func (s Snapshot) Total() int64 {
	var total int64
	for _, row := range s {
		total += row.Count
	}
	return total
}

// Aggregator computes the authoritative snapshot of a room from storage.
type Aggregator interface {
	Summary(ctx context.Context, roomID int64) (Snapshot, error)
}
