package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Clark-Hu/movie-feaster/internal/browse"
	"github.com/Clark-Hu/movie-feaster/internal/detail"
	"github.com/Clark-Hu/movie-feaster/internal/domain"
	"github.com/Clark-Hu/movie-feaster/internal/ledger"
	"github.com/Clark-Hu/movie-feaster/internal/rating"
	"github.com/Clark-Hu/movie-feaster/internal/session"
)

// APIError is a non-2xx answer from the feaster server.
type APIError struct {
	Status    int
	Code      string
	Message   string
	Retryable bool
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
	if e.Retryable {
		msg += " (retryable)"
	}
	return msg
}

// RatingResponse is the answer to a rating submit.
type RatingResponse struct {
	Result rating.Result `json:"result"`
	View   detail.State  `json:"view"`
}

// Download is an exported file.
type Download struct {
	Filename string
	Body     []byte
}

// Client talks to a running feaster server.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient returns a client for the server at base.
func NewClient(base string, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("server url %q must be absolute", base)
	}
	return &Client{base: parsed, http: &http.Client{Timeout: timeout}}, nil
}

func (c *Client) Search(ctx context.Context, query url.Values) ([]domain.Movie, error) {
	var out []domain.Movie
	err := c.do(ctx, http.MethodGet, "/movies", query, nil, &out)
	return out, err
}

func (c *Client) Show(ctx context.Context, id int) (detail.State, error) {
	var out detail.State
	err := c.do(ctx, http.MethodGet, "/movies/"+strconv.Itoa(id), nil, nil, &out)
	return out, err
}

func (c *Client) Refresh(ctx context.Context, id int) (detail.State, error) {
	var out detail.State
	err := c.do(ctx, http.MethodPost, "/movies/"+strconv.Itoa(id)+"/refresh", nil, nil, &out)
	return out, err
}

func (c *Client) Rate(ctx context.Context, id, value int) (RatingResponse, error) {
	var out RatingResponse
	err := c.do(ctx, http.MethodPost, "/movies/"+strconv.Itoa(id)+"/rating",
		nil, map[string]int{"rating": value}, &out)
	return out, err
}

func (c *Client) Comment(ctx context.Context, id int, text string) (detail.State, error) {
	var out detail.State
	err := c.do(ctx, http.MethodPost, "/movies/"+strconv.Itoa(id)+"/comments",
		nil, map[string]string{"comment": text}, &out)
	return out, err
}

func (c *Client) Genres(ctx context.Context) ([]browse.Genre, error) {
	var out []browse.Genre
	err := c.do(ctx, http.MethodGet, "/movies/genres", nil, nil, &out)
	return out, err
}

func (c *Client) Session(ctx context.Context) (session.Info, error) {
	var out session.Info
	err := c.do(ctx, http.MethodGet, "/session", nil, nil, &out)
	return out, err
}

func (c *Client) Ledger(ctx context.Context) ([]ledger.Entry, error) {
	var out struct {
		Entries []ledger.Entry `json:"entries"`
	}
	err := c.do(ctx, http.MethodGet, "/ledger", nil, nil, &out)
	return out.Entries, err
}

func (c *Client) ClearLedger(ctx context.Context) (int, error) {
	var out struct {
		Removed int `json:"removed"`
	}
	err := c.do(ctx, http.MethodDelete, "/ledger", nil, nil, &out)
	return out.Removed, err
}

// Export downloads the filtered collection. The filename comes from the
// server's Content-Disposition header when present.
func (c *Client) Export(ctx context.Context, query url.Values, format domain.ExportFormat) (*Download, error) {
	q := cloneValues(query)
	q.Set("format", string(format))
	req, err := c.newRequest(ctx, http.MethodGet, "/movies/export", q, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, decodeAPIError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	dl := &Download{Filename: format.Filename(), Body: body}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		dl.Filename = params["filename"]
	}
	return dl, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Retryable bool `json:"retryable"`
		} `json:"details"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Code != "" {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
		apiErr.Retryable = payload.Details.Retryable
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
