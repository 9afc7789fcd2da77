package parsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/kova98/reddit-digest/models"
)

var ErrEmptyListing = errors.New("listing contains no posts")

// MalformedRecordError reports a child missing one of the required fields.
// Index is -1 when the listing envelope itself is unusable.
type MalformedRecordError struct {
	Index int
	Field string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	if e.Index < 0 {
		if e.Err != nil {
			return fmt.Sprintf("malformed listing: %v", e.Err)
		}
		return fmt.Sprintf("malformed listing: missing %s", e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed post %d: field %q: %v", e.Index, e.Field, e.Err)
	}
	return fmt.Sprintf("malformed post %d: missing field %q", e.Index, e.Field)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// Normalize turns a raw listing body into a PostTable ordered by score,
// highest first. Posts with equal scores keep their listing order.
func Normalize(raw []byte) (models.PostTable, error) {
	var listing models.RedditListing
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, &MalformedRecordError{Index: -1, Err: err}
	}
	if listing.Data == nil {
		return nil, &MalformedRecordError{Index: -1, Field: "data"}
	}
	if listing.Data.Children == nil {
		return nil, &MalformedRecordError{Index: -1, Field: "data.children"}
	}

	children := *listing.Data.Children
	if len(children) == 0 {
		return nil, ErrEmptyListing
	}

	table := make(models.PostTable, 0, len(children))
	for i, child := range children {
		post, err := decodePost(child.Data)
		if err != nil {
			err.Index = i
			return nil, err
		}
		table = append(table, post)
	}

	sort.SliceStable(table, func(i, j int) bool {
		return table[i].Score > table[j].Score
	})

	return table, nil
}

func decodePost(raw json.RawMessage) (models.Post, *MalformedRecordError) {
	if len(raw) == 0 || string(raw) == "null" {
		return models.Post{}, &MalformedRecordError{Field: "data"}
	}

	var p models.RedditPost
	if err := json.Unmarshal(raw, &p); err != nil {
		field := "data"
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			field = typeErr.Field
		}
		return models.Post{}, &MalformedRecordError{Field: field, Err: err}
	}
	return toPost(p)
}

func toPost(p models.RedditPost) (models.Post, *MalformedRecordError) {
	switch {
	case p.Subreddit == nil:
		return models.Post{}, &MalformedRecordError{Field: "subreddit"}
	case p.Title == nil:
		return models.Post{}, &MalformedRecordError{Field: "title"}
	case p.URL == nil:
		return models.Post{}, &MalformedRecordError{Field: "url"}
	case p.UpvoteRatio == nil:
		return models.Post{}, &MalformedRecordError{Field: "upvote_ratio"}
	case p.Ups == nil:
		return models.Post{}, &MalformedRecordError{Field: "ups"}
	case p.Downs == nil:
		return models.Post{}, &MalformedRecordError{Field: "downs"}
	case p.Score == nil:
		return models.Post{}, &MalformedRecordError{Field: "score"}
	}

	return models.Post{
		Subreddit:   *p.Subreddit,
		Title:       *p.Title,
		URL:         *p.URL,
		UpvoteRatio: *p.UpvoteRatio,
		Ups:         *p.Ups,
		Downs:       *p.Downs,
		Score:       *p.Score,
	}, nil
}
