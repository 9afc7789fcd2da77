package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kova98/reddit-digest/data"
	"github.com/kova98/reddit-digest/models"
)

func TestSaveSnapshot_SQLite(t *testing.T) {
	db, err := data.Open(data.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostRepo(db)
	runID := uuid.New()
	day := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	table := models.PostTable{
		{Subreddit: "news", Title: "top", URL: "https://example.com/top", UpvoteRatio: 0.9, Ups: 9, Score: 9},
		{Subreddit: "news", Title: "second", URL: "https://example.com/second", UpvoteRatio: 0.5, Ups: 5, Score: 5},
	}

	err = repo.SaveSnapshot(context.Background(), data.NewSnapshots(runID, day, table, time.Now()))
	require.NoError(t, err)

	var rows []struct {
		RunDate string  `db:"run_date"`
		Rank    int     `db:"listing_rank"`
		Title   string  `db:"title"`
		Ratio   float64 `db:"upvote_ratio"`
		Score   int     `db:"score"`
	}
	err = db.Select(&rows, `SELECT run_date, listing_rank, title, upvote_ratio, score FROM post_snapshots WHERE run_id = ? ORDER BY listing_rank`, runID.String())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2024-03-07", rows[0].RunDate)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "top", rows[0].Title)
	assert.InDelta(t, 0.9, rows[0].Ratio, 1e-9)
	assert.Equal(t, 2, rows[1].Rank)
	assert.Equal(t, 5, rows[1].Score)
}

func TestSaveSnapshot_Empty(t *testing.T) {
	db, err := data.Open(data.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, NewPostRepo(db).SaveSnapshot(context.Background(), nil))
}

func TestSaveSnapshot_SecondRunAppends(t *testing.T) {
	db, err := data.Open(data.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostRepo(db)
	day := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	table := models.PostTable{{Subreddit: "news", Title: "same", URL: "u", Score: 1}}

	require.NoError(t, repo.SaveSnapshot(context.Background(), data.NewSnapshots(uuid.New(), day, table, time.Now())))
	require.NoError(t, repo.SaveSnapshot(context.Background(), data.NewSnapshots(uuid.New(), day, table, time.Now())))

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM post_snapshots`))
	assert.Equal(t, 2, count)
}
