package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kova98/reddit-digest/data"
	"github.com/kova98/reddit-digest/enums"
	"github.com/kova98/reddit-digest/models"
	"github.com/kova98/reddit-digest/notifiers"
	"github.com/kova98/reddit-digest/parsers"
	"github.com/kova98/reddit-digest/sources"
)

const twoPostListing = `{"kind":"Listing","data":{"children":[
	{"kind":"t3","data":{"subreddit":"news","title":"Low","url":"https://example.com/low","selftext":"","upvote_ratio":0.75,"ups":5,"downs":0,"score":5}},
	{"kind":"t3","data":{"subreddit":"news","title":"High","url":"https://example.com/high","selftext":"","upvote_ratio":0.9,"ups":9,"downs":0,"score":9}}
]}}`

var fixedDay = time.Date(2024, 3, 7, 6, 30, 0, 0, time.UTC)

type fakeReddit struct {
	tokenStatus int
	listing     string
	listingHits atomic.Int32
}

func (f *fakeReddit) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/access_token":
		w.Header().Set("Content-Type", "application/json")
		if f.tokenStatus != 0 && f.tokenStatus != http.StatusOK {
			w.WriteHeader(f.tokenStatus)
			_, _ = w.Write([]byte(`{"message":"nope"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"T1","token_type":"bearer","expires_in":86400}`))
	case "/r/news/hot":
		f.listingHits.Add(1)
		if r.Header.Get("Authorization") != "bearer T1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(f.listing))
	default:
		http.NotFound(w, r)
	}
}

type fakeMailer struct {
	sent    []models.Email
	sendErr error
}

func (m *fakeMailer) DigestEmail(to, subreddit string, table models.PostTable, day time.Time) (models.Email, error) {
	return models.Email{To: to, Subject: subreddit + " " + day.Format(time.DateOnly)}, nil
}

func (m *fakeMailer) Send(ctx context.Context, mail models.Email) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, mail)
	return nil
}

type fakeDiscord struct {
	digests int
	files   []string
}

func (d *fakeDiscord) PostDigest(ctx context.Context, subreddit string, table models.PostTable, day time.Time) error {
	d.digests++
	return nil
}

func (d *fakeDiscord) PostFile(ctx context.Context, path, content string) error {
	d.files = append(d.files, path)
	return nil
}

type fakeArchive struct {
	saved []data.PostSnapshot
}

func (a *fakeArchive) SaveSnapshot(ctx context.Context, snapshots []data.PostSnapshot) error {
	a.saved = append(a.saved, snapshots...)
	return nil
}

type fakeRecorder struct {
	posts    int
	failures []string
}

func (r *fakeRecorder) PostsFetched(n int)       { r.posts = n }
func (r *fakeRecorder) StageFailed(stage string) { r.failures = append(r.failures, stage) }

type harness struct {
	reddit   *fakeReddit
	server   *httptest.Server
	outDir   string
	mailer   *fakeMailer
	discord  *fakeDiscord
	archive  *fakeArchive
	recorder *fakeRecorder
}

func newHarness(t *testing.T, listing string) *harness {
	t.Helper()
	h := &harness{
		reddit:   &fakeReddit{listing: listing},
		outDir:   filepath.Join(t.TempDir(), "data"),
		mailer:   &fakeMailer{},
		discord:  &fakeDiscord{},
		archive:  &fakeArchive{},
		recorder: &fakeRecorder{},
	}
	h.server = httptest.NewServer(h.reddit)
	t.Cleanup(h.server.Close)
	return h
}

func (h *harness) pipeline(t *testing.T, mode enums.DiscordMode) *Pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	httpClient, err := sources.NewHTTPClient("", 5*time.Second, "MyBot/0.0.1")
	require.NoError(t, err)

	client := sources.NewRedditClient(logger, httpClient, h.server.URL+"/api/v1/access_token", "MyBot/0.0.1", sources.RedditCredentials{
		ClientID: "id", ClientSecret: "secret", UserName: "bot", Password: "pw",
	})

	return New(Deps{
		Logger:  logger,
		Auth:    client,
		Fetcher: client,
		Mailer:  h.mailer,
		Discord: h.discord,
		Archive: h.archive,
		Metrics: h.recorder,
	}, Options{
		RunID:        uuid.New(),
		Subreddit:    "news",
		ListingURL:   sources.ListingURL(h.server.URL, "news"),
		OutputDir:    h.outDir,
		OutputPrefix: "news",
		Recipient:    "me@example.com",
		DiscordMode:  mode,
		Now:          func() time.Time { return fixedDay },
	})
}

func TestRun_EndToEnd(t *testing.T) {
	h := newHarness(t, twoPostListing)

	result, err := h.pipeline(t, enums.DiscordModeMessages).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Table, 2)
	assert.Equal(t, 9, result.Table[0].Score)
	assert.Equal(t, 5, result.Table[1].Score)

	expectedPath := filepath.Join(h.outDir, "news_2024-03-07.csv")
	assert.Equal(t, expectedPath, result.OutputPath)

	raw, err := os.ReadFile(expectedPath)
	require.NoError(t, err)
	assert.Equal(t,
		"subreddit,title,url,upvote_ratio,ups,downs,score\n"+
			"news,High,https://example.com/high,0.9,9,0,9\n"+
			"news,Low,https://example.com/low,0.75,5,0,5\n",
		string(raw))

	require.Len(t, h.mailer.sent, 1)
	assert.Equal(t, "me@example.com", h.mailer.sent[0].To)
	assert.Equal(t, 1, h.discord.digests)
	assert.Empty(t, h.discord.files)
	require.Len(t, h.archive.saved, 2)
	assert.Equal(t, "High", h.archive.saved[0].Title)
	assert.Equal(t, 2, h.recorder.posts)
	assert.Empty(t, h.recorder.failures)
}

func TestRun_DiscordFileMode(t *testing.T) {
	h := newHarness(t, twoPostListing)

	result, err := h.pipeline(t, enums.DiscordModeFile).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, h.discord.digests)
	assert.Equal(t, []string{result.OutputPath}, h.discord.files)
}

func TestRun_AuthFailureStopsBeforeFetch(t *testing.T) {
	h := newHarness(t, twoPostListing)
	h.reddit.tokenStatus = http.StatusUnauthorized

	_, err := h.pipeline(t, enums.DiscordModeMessages).Run(context.Background())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageAuthenticate, stageErr.Stage)

	var authErr *sources.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)

	assert.Equal(t, int32(0), h.reddit.listingHits.Load())
	assert.NoDirExists(t, h.outDir)
	assert.Equal(t, []string{StageAuthenticate}, h.recorder.failures)
}

func TestRun_EmptyListingInvokesNoSink(t *testing.T) {
	h := newHarness(t, `{"kind":"Listing","data":{"children":[]}}`)

	_, err := h.pipeline(t, enums.DiscordModeMessages).Run(context.Background())

	assert.ErrorIs(t, err, parsers.ErrEmptyListing)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageNormalize, stageErr.Stage)

	assert.NoDirExists(t, h.outDir)
	assert.Empty(t, h.mailer.sent)
	assert.Equal(t, 0, h.discord.digests)
	assert.Empty(t, h.archive.saved)
}

func TestRun_MalformedListing(t *testing.T) {
	h := newHarness(t, `{"data":{"children":[{"data":{"subreddit":"news","title":"t","url":"u","upvote_ratio":1,"ups":1,"downs":0}}]}}`)

	_, err := h.pipeline(t, enums.DiscordModeMessages).Run(context.Background())

	var malformed *parsers.MalformedRecordError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "score", malformed.Field)
	assert.NoDirExists(t, h.outDir)
}

func TestRun_EmailFailureHaltsBeforeDiscord(t *testing.T) {
	h := newHarness(t, twoPostListing)
	h.mailer.sendErr = &notifiers.NotifyError{Sink: "email", Err: errors.New("535 auth failed")}

	result, err := h.pipeline(t, enums.DiscordModeMessages).Run(context.Background())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageEmail, stageErr.Stage)
	assert.FileExists(t, result.OutputPath)
	assert.Equal(t, 0, h.discord.digests)
	assert.Equal(t, []string{StageEmail}, h.recorder.failures)
}

func TestRun_OptionalSinksDisabled(t *testing.T) {
	h := newHarness(t, twoPostListing)
	p := h.pipeline(t, enums.DiscordModeMessages)
	p.deps.Mailer = nil
	p.deps.Discord = nil
	p.deps.Archive = nil
	p.deps.Metrics = nil

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, result.OutputPath)
	assert.Empty(t, h.mailer.sent)
	assert.Equal(t, 0, h.discord.digests)
}
