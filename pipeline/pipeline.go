package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kova98/reddit-digest/data"
	"github.com/kova98/reddit-digest/enums"
	"github.com/kova98/reddit-digest/exporters"
	"github.com/kova98/reddit-digest/models"
	"github.com/kova98/reddit-digest/notifiers"
	"github.com/kova98/reddit-digest/parsers"
	"github.com/kova98/reddit-digest/sources"
)

const (
	StageAuthenticate = "authenticate"
	StageFetch        = "fetch"
	StageNormalize    = "normalize"
	StagePersist      = "persist"
	StageArchive      = "archive"
	StageEmail        = "email"
	StageDiscord      = "discord"
)

type Authenticator interface {
	Authenticate(ctx context.Context) (string, error)
}

type ListingFetcher interface {
	FetchListing(ctx context.Context, listingURL, token string) ([]byte, error)
}

type Mailer interface {
	DigestEmail(to, subreddit string, table models.PostTable, day time.Time) (models.Email, error)
	Send(ctx context.Context, mail models.Email) error
}

type DiscordNotifier interface {
	PostDigest(ctx context.Context, subreddit string, table models.PostTable, day time.Time) error
	PostFile(ctx context.Context, path, content string) error
}

type Archive interface {
	SaveSnapshot(ctx context.Context, snapshots []data.PostSnapshot) error
}

type Recorder interface {
	PostsFetched(n int)
	StageFailed(stage string)
}

// Deps are the collaborators of a run. Mailer, Discord, Archive and Metrics
// are optional; a nil value disables that sink.
type Deps struct {
	Logger  *slog.Logger
	Auth    Authenticator
	Fetcher ListingFetcher
	Mailer  Mailer
	Discord DiscordNotifier
	Archive Archive
	Metrics Recorder
}

type Options struct {
	RunID        uuid.UUID
	Subreddit    string
	ListingURL   string
	OutputDir    string
	OutputPrefix string
	Recipient    string
	DiscordMode  enums.DiscordMode
	Now          func() time.Time
}

type Result struct {
	RunID      uuid.UUID
	Table      models.PostTable
	OutputPath string
}

// StageError names the stage that halted a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type Pipeline struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

func New(deps Deps, opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{
		deps:   deps,
		opts:   opts,
		logger: deps.Logger.With("component", "pipeline"),
	}
}

// Run performs authenticate, fetch, normalize, persist and the enabled
// notifications in that order. The first failing stage ends the run and is
// returned as *StageError.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	day := p.opts.Now()
	result := Result{RunID: p.opts.RunID}

	token, err := p.deps.Auth.Authenticate(ctx)
	if err != nil {
		return result, p.fail(StageAuthenticate, err)
	}
	p.logger.Info("authenticated")

	raw, err := p.deps.Fetcher.FetchListing(ctx, p.opts.ListingURL, token)
	if err != nil {
		return result, p.fail(StageFetch, err)
	}

	table, err := parsers.Normalize(raw)
	if err != nil {
		return result, p.fail(StageNormalize, err)
	}
	result.Table = table
	if p.deps.Metrics != nil {
		p.deps.Metrics.PostsFetched(len(table))
	}
	p.logger.Info("normalized listing", "posts", len(table), "top_score", table[0].Score)

	path := exporters.OutputPath(p.opts.OutputDir, p.opts.OutputPrefix, day)
	if err := exporters.WriteCSV(table, path); err != nil {
		return result, p.fail(StagePersist, errors.Wrapf(err, "write %s", path))
	}
	result.OutputPath = path
	p.logger.Info("wrote csv", "path", path, "rows", len(table))

	if p.deps.Archive != nil {
		snapshots := data.NewSnapshots(p.opts.RunID, day, table, p.opts.Now())
		if err := p.deps.Archive.SaveSnapshot(ctx, snapshots); err != nil {
			return result, p.fail(StageArchive, err)
		}
		p.logger.Info("archived snapshot", "rows", len(snapshots))
	}

	if p.deps.Mailer != nil {
		if err := p.sendEmail(ctx, table, day); err != nil {
			return result, p.fail(StageEmail, err)
		}
	}

	if p.deps.Discord != nil {
		if err := p.notifyDiscord(ctx, table, day, path); err != nil {
			return result, p.fail(StageDiscord, err)
		}
	}

	return result, nil
}

func (p *Pipeline) sendEmail(ctx context.Context, table models.PostTable, day time.Time) error {
	mail, err := p.deps.Mailer.DigestEmail(p.opts.Recipient, p.opts.Subreddit, table, day)
	if err != nil {
		return errors.Wrap(err, "build digest email")
	}
	return p.deps.Mailer.Send(ctx, mail)
}

func (p *Pipeline) notifyDiscord(ctx context.Context, table models.PostTable, day time.Time, path string) error {
	switch p.opts.DiscordMode {
	case enums.DiscordModeFile:
		content := fmt.Sprintf("Hot posts from r/%s for %s", p.opts.Subreddit, day.Format(time.DateOnly))
		return p.deps.Discord.PostFile(ctx, path, content)
	case enums.DiscordModeOff:
		return nil
	default:
		return p.deps.Discord.PostDigest(ctx, p.opts.Subreddit, table, day)
	}
}

func (p *Pipeline) fail(stage string, err error) error {
	attrs := []any{"stage", stage, "error", err}

	var authErr *sources.AuthError
	var fetchErr *sources.FetchError
	var malformed *parsers.MalformedRecordError
	var notifyErr *notifiers.NotifyError
	switch {
	case errors.As(err, &authErr):
		attrs = append(attrs, "status", authErr.StatusCode)
	case errors.As(err, &fetchErr):
		attrs = append(attrs, "status", fetchErr.StatusCode)
	case errors.As(err, &malformed):
		attrs = append(attrs, "field", malformed.Field, "index", malformed.Index)
	case errors.As(err, &notifyErr) && notifyErr.StatusCode != 0:
		attrs = append(attrs, "status", notifyErr.StatusCode)
	}

	p.logger.Error("stage failed", attrs...)
	if p.deps.Metrics != nil {
		p.deps.Metrics.StageFailed(stage)
	}
	return &StageError{Stage: stage, Err: err}
}
