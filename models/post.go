package models

// PostColumns is the fixed column order of the CSV artifact.
var PostColumns = []string{"subreddit", "title", "url", "upvote_ratio", "ups", "downs", "score"}

type Post struct {
	Subreddit   string  `db:"subreddit"`
	Title       string  `db:"title"`
	URL         string  `db:"url"`
	UpvoteRatio float64 `db:"upvote_ratio"`
	Ups         int     `db:"ups"`
	Downs       int     `db:"downs"`
	Score       int     `db:"score"`
}

// PostTable is ordered by Score descending. Sinks must not modify it.
type PostTable []Post
