package repos

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kova98/reddit-digest/data"
)

type PostRepo struct {
	db *sqlx.DB
}

func NewPostRepo(db *sqlx.DB) *PostRepo {
	return &PostRepo{db}
}

// SaveSnapshot appends the rows of one run. Rows are never read back by the job.
func (r *PostRepo) SaveSnapshot(ctx context.Context, snapshots []data.PostSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	query := `
		INSERT INTO post_snapshots (run_id, run_date, listing_rank, subreddit, title, url, upvote_ratio, ups, downs, score, fetched_at)
		VALUES (:run_id, :run_date, :listing_rank, :subreddit, :title, :url, :upvote_ratio, :ups, :downs, :score, :fetched_at)`

	_, err := r.db.NamedExecContext(ctx, query, snapshots)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	return nil
}
