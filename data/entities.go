package data

import (
	"time"

	"github.com/google/uuid"

	"github.com/kova98/reddit-digest/models"
)

// PostSnapshot is one archived row of a run's table.
type PostSnapshot struct {
	RunID   uuid.UUID `db:"run_id"`
	RunDate string    `db:"run_date"`
	Rank    int       `db:"listing_rank"`
	models.Post
	FetchedAt time.Time `db:"fetched_at"`
}

func NewSnapshots(runID uuid.UUID, day time.Time, table models.PostTable, fetchedAt time.Time) []PostSnapshot {
	snapshots := make([]PostSnapshot, 0, len(table))
	for i, post := range table {
		snapshots = append(snapshots, PostSnapshot{
			RunID:     runID,
			RunDate:   day.Format(time.DateOnly),
			Rank:      i + 1,
			Post:      post,
			FetchedAt: fetchedAt.UTC(),
		})
	}
	return snapshots
}
