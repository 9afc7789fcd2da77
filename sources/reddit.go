package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

const maxErrorBody = 300

type RedditCredentials struct {
	ClientID     string
	ClientSecret string
	UserName     string
	Password     string
}

// RedditClient talks to the OAuth2 half of the Reddit API: one password-grant
// token exchange and authenticated listing reads.
type RedditClient struct {
	logger     *slog.Logger
	httpClient *http.Client
	authURL    string
	userAgent  string
	creds      RedditCredentials
}

func NewRedditClient(logger *slog.Logger, httpClient *http.Client, authURL, userAgent string, creds RedditCredentials) *RedditClient {
	return &RedditClient{
		logger:     logger,
		httpClient: httpClient,
		authURL:    authURL,
		userAgent:  userAgent,
		creds:      creds,
	}
}

// ListingURL returns the hot listing endpoint of subreddit under apiBase.
func ListingURL(apiBase, subreddit string) string {
	return fmt.Sprintf("%s/r/%s/hot", apiBase, url.PathEscape(subreddit))
}

// Authenticate exchanges the account credentials for a bearer token. Any
// outcome other than a 200 response carrying a token is returned as *AuthError.
func (c *RedditClient) Authenticate(ctx context.Context) (string, error) {
	conf := &oauth2.Config{
		ClientID:     c.creds.ClientID,
		ClientSecret: c.creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.authURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	guard := &tokenStatusTransport{next: c.httpClient.Transport}
	if guard.next == nil {
		guard.next = http.DefaultTransport
	}
	tokenClient := *c.httpClient
	tokenClient.Transport = guard

	start := time.Now()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &tokenClient)
	token, err := conf.PasswordCredentialsToken(ctx, c.creds.UserName, c.creds.Password)
	if err != nil {
		authErr := &AuthError{StatusCode: guard.status, Err: err}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			authErr.Code = retrieveErr.ErrorCode
			if retrieveErr.ErrorCode != "" {
				authErr.Err = nil
			}
			if retrieveErr.Response != nil {
				authErr.StatusCode = retrieveErr.Response.StatusCode
			}
		}
		return "", authErr
	}

	c.logger.Debug("obtained access token", "request_ms", time.Since(start).Milliseconds(), "expires", token.Expiry)
	return token.AccessToken, nil
}

var errTokenStatus = errors.New("token endpoint did not return 200")

// tokenStatusTransport records the token endpoint status and refuses any 2xx
// other than 200, which oauth2 would otherwise accept.
type tokenStatusTransport struct {
	next   http.RoundTripper
	status int
}

func (t *tokenStatusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	t.status = resp.StatusCode
	if resp.StatusCode != http.StatusOK && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, errTokenStatus
	}
	return resp, nil
}

// FetchListing performs one authenticated GET and returns the raw body.
func (c *RedditClient) FetchListing(ctx context.Context, listingURL, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, &FetchError{URL: listingURL, Err: err}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", "bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: listingURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &FetchError{StatusCode: resp.StatusCode, URL: listingURL, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{StatusCode: resp.StatusCode, URL: listingURL, Err: err}
	}

	c.logger.Debug("fetched listing", "url", listingURL, "bytes", len(body), "request_ms", time.Since(start).Milliseconds())
	return body, nil
}
