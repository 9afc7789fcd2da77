package models

import "encoding/json"

// RedditListing mirrors the listing payload. Children stay raw so each one is
// decoded on its own.
type RedditListing struct {
	Data *struct {
		Children *[]struct {
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// RedditPost fields are pointers so that an absent key can be told apart from
// a zero value.

type RedditPost struct {
	Subreddit   *string  `json:"subreddit"`
	Title       *string  `json:"title"`
	URL         *string  `json:"url"`
	UpvoteRatio *float64 `json:"upvote_ratio"`
	Ups         *int     `json:"ups"`
	Downs       *int     `json:"downs"`
	Score       *int     `json:"score"`
}
