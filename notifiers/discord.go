package notifiers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/kova98/reddit-digest/models"
)

// discordMessageLimit is the maximum content length Discord accepts per message.
const discordMessageLimit = 2000

type Discord struct {
	logger     *slog.Logger
	httpClient *http.Client
	webhookURL string
	limiter    *rate.Limiter
}

// NewDiscord posts to an incoming webhook, sending at most perSecond requests
// per second.
func NewDiscord(logger *slog.Logger, httpClient *http.Client, webhookURL string, perSecond float64) *Discord {
	return &Discord{
		logger:     logger,
		httpClient: httpClient,
		webhookURL: webhookURL,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// PostDigest sends a dated summary followed by "<title> : <url>" lines packed
// into as few messages as the length limit allows.
func (d *Discord) PostDigest(ctx context.Context, subreddit string, table models.PostTable, day time.Time) error {
	messages := DigestMessages(subreddit, table, day)
	for i, content := range messages {
		if err := d.postContent(ctx, content); err != nil {
			return err
		}
		d.logger.Debug("discord message sent", "index", i, "of", len(messages))
	}

	d.logger.Info("discord digest sent", "messages", len(messages), "posts", len(table))
	return nil
}

// PostFile uploads the file at path as an attachment.
func (d *Discord) PostFile(ctx context.Context, path, content string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &NotifyError{Sink: "discord", Err: fmt.Errorf("read attachment: %w", err)}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return &NotifyError{Sink: "discord", Err: err}
	}
	if err := mw.WriteField("payload_json", string(payload)); err != nil {
		return &NotifyError{Sink: "discord", Err: err}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return &NotifyError{Sink: "discord", Err: err}
	}
	if _, err := part.Write(data); err != nil {
		return &NotifyError{Sink: "discord", Err: err}
	}
	if err := mw.Close(); err != nil {
		return &NotifyError{Sink: "discord", Err: err}
	}

	if err := d.post(ctx, mw.FormDataContentType(), &body); err != nil {
		return err
	}

	d.logger.Info("discord file sent", "file", filepath.Base(path), "bytes", len(data))
	return nil
}

// DigestMessages builds the summary message and the batched post lines.
func DigestMessages(subreddit string, table models.PostTable, day time.Time) []string {
	messages := []string{
		fmt.Sprintf("Hot posts from r/%s for %s (%d posts)", subreddit, day.Format(time.DateOnly), len(table)),
	}

	var batch strings.Builder
	batchLen := 0
	for _, post := range table {
		line := truncateRunes(fmt.Sprintf("%s : %s", post.Title, post.URL), discordMessageLimit)
		lineLen := utf8.RuneCountInString(line)

		if batchLen > 0 && batchLen+1+lineLen > discordMessageLimit {
			messages = append(messages, batch.String())
			batch.Reset()
			batchLen = 0
		}
		if batchLen > 0 {
			batch.WriteByte('\n')
			batchLen++
		}
		batch.WriteString(line)
		batchLen += lineLen
	}
	if batchLen > 0 {
		messages = append(messages, batch.String())
	}

	return messages
}

func (d *Discord) postContent(ctx context.Context, content string) error {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return &NotifyError{Sink: "discord", Err: err}
	}
	return d.post(ctx, "application/json", bytes.NewReader(payload))
}

func (d *Discord) post(ctx context.Context, contentType string, body io.Reader) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return &NotifyError{Sink: "discord", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, body)
	if err != nil {
		return &NotifyError{Sink: "discord", Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return &NotifyError{Sink: "discord", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return &NotifyError{Sink: "discord", StatusCode: resp.StatusCode, Err: fmt.Errorf("webhook error: %s", strings.TrimSpace(string(msg)))}
	}

	return nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}
