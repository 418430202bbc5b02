package userrequest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/get-eventually/tracker/serde"
)

// Errors returned when reading a Twitter API Response.
var (
	ErrUnexpectedStatus = errors.New("userrequest.Response: unexpected status code")
	ErrMissingUserName  = errors.New("userrequest.Response: missing user name")
)

// Response is the outcome of a Twitter API user lookup.
type Response struct {
	StatusCode int
	Body       string
}

type twitterUser struct {
	Data struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"data"`
}

var twitterUserSerde = serde.NewJSON(func() *twitterUser { return new(twitterUser) })

// TwitterUserName extracts the user name from a successful Response.
func (r Response) TwitterUserName() (string, error) {
	if r.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, r.StatusCode)
	}

	body, err := twitterUserSerde.Deserialize([]byte(r.Body))
	if err != nil {
		return "", fmt.Errorf("userrequest.Response: failed to parse body, %w", err)
	}

	if body.Data.Username == "" {
		return "", ErrMissingUserName
	}

	return body.Data.Username, nil
}

// Fetcher looks up a Twitter user.
type Fetcher interface {
	FetchUser(ctx context.Context, twitterUserID string) (Response, error)
}

// FetcherFunc is a functional type that implements the Fetcher interface.
type FetcherFunc func(ctx context.Context, twitterUserID string) (Response, error)

// FetchUser calls the function.
func (fn FetcherFunc) FetchUser(ctx context.Context, twitterUserID string) (Response, error) {
	return fn(ctx, twitterUserID)
}

// DefaultBaseURL is the Twitter API endpoint used by HTTPFetcher.
const DefaultBaseURL = "https://api.twitter.com"

// maxBodySize bounds the response bodies kept in UserRequest Events.
const maxBodySize = 64 * 1024

var _ Fetcher = HTTPFetcher{}

// HTTPFetcher is a Fetcher calling the Twitter API v2 users endpoint.
//
// Any status code is a valid Response: only transport failures are errors.
type HTTPFetcher struct {
	Client      *http.Client
	BaseURL     string
	BearerToken string
}

// FetchUser implements the Fetcher interface.
func (f HTTPFetcher) FetchUser(ctx context.Context, twitterUserID string) (Response, error) {
	baseURL := f.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	endpoint, err := url.JoinPath(baseURL, "2", "users", twitterUserID)
	if err != nil {
		return Response{}, fmt.Errorf("userrequest.HTTPFetcher: invalid url, %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Response{}, fmt.Errorf("userrequest.HTTPFetcher: failed to build request, %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+f.BearerToken)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("userrequest.HTTPFetcher: request failed, %w", err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Response{}, fmt.Errorf("userrequest.HTTPFetcher: failed to read response, %w", err)
	}

	return Response{StatusCode: resp.StatusCode, Body: string(body)}, nil
}
