// Package catalog talks to the remote movie catalog service.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-feaster/internal/domain"
)

// ErrNotFound is returned when the catalog has no movie with the requested id.
var ErrNotFound = errors.New("catalog: not found")

// ErrExportTooLarge is returned when an export body exceeds the client limit.
var ErrExportTooLarge = errors.New("catalog: export too large")

// StatusError reports a non-2xx response from the catalog.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog: %s returned %d", e.Op, e.Code)
}

// CacheBusterParam is the query parameter that defeats intermediate caches
// on movie fetches.
const CacheBusterParam = "_nocache"

const maxExportBytes = 32 << 20

// Export is a downloadable file produced by the catalog.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Client defines the catalog operations the client relies on.
type Client interface {
	GetMovie(ctx context.Context, id int) (domain.Movie, error)
	SubmitRating(ctx context.Context, id, rating int) error
	SubmitComment(ctx context.Context, id int, text string) error
	Search(ctx context.Context, filters domain.Filters) ([]domain.Movie, error)
	Sort(ctx context.Context, sortType domain.SortType, filters domain.Filters) ([]domain.Movie, error)
	Export(ctx context.Context, filters domain.Filters, format domain.ExportFormat) (*Export, error)
	Genres(ctx context.Context) ([]string, error)
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL     *url.URL
	client      *http.Client
	logger      *zap.Logger
	cacheBuster func() string
	maxExport   int64
}

// NewHTTPClient constructs a catalog client rooted at baseURL, e.g.
// http://localhost:8080. Requests are traced with otelhttp.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("catalog url %q must be absolute", baseURL)
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &HTTPClient{
		baseURL: parsed,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		logger:      logger.Named("catalog"),
		cacheBuster: newCacheBuster,
		maxExport:   maxExportBytes,
	}, nil
}

// Each call yields a distinct, time-ordered value.
func newCacheBuster() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// GetMovie fetches the authoritative aggregate for id, bypassing caches.
func (c *HTTPClient) GetMovie(ctx context.Context, id int) (domain.Movie, error) {
	q := url.Values{}
	q.Set(CacheBusterParam, c.cacheBuster())

	req, err := c.newRequest(ctx, http.MethodGet, moviePath(id), q, nil)
	if err != nil {
		return domain.Movie{}, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	var movie domain.Movie
	if err := c.doJSON(req, "get movie", &movie); err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}

// SubmitRating posts the rating as a bare number.
func (c *HTTPClient) SubmitRating(ctx context.Context, id, rating int) error {
	body := strings.NewReader(strconv.Itoa(rating))
	req, err := c.newRequest(ctx, http.MethodPost, moviePath(id)+"/rating", nil, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, "submit rating", nil)
}

// SubmitComment posts {"comment": text}.
func (c *HTTPClient) SubmitComment(ctx context.Context, id int, text string) error {
	payload, err := json.Marshal(struct {
		Comment string `json:"comment"`
	}{Comment: text})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, moviePath(id)+"/comment", nil, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, "submit comment", nil)
}

// Search lists movies matching filters.
func (c *HTTPClient) Search(ctx context.Context, filters domain.Filters) ([]domain.Movie, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/movies/search", FilterValues(filters), nil)
	if err != nil {
		return nil, err
	}
	movies := make([]domain.Movie, 0)
	if err := c.doJSON(req, "search", &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// Sort lists movies in the given order. Filters are forwarded with it.
func (c *HTTPClient) Sort(ctx context.Context, sortType domain.SortType, filters domain.Filters) ([]domain.Movie, error) {
	q := FilterValues(filters)
	q.Set("sortType", string(sortType))
	req, err := c.newRequest(ctx, http.MethodGet, "/api/movies/sort", q, nil)
	if err != nil {
		return nil, err
	}
	movies := make([]domain.Movie, 0)
	if err := c.doJSON(req, "sort", &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// Export downloads the filtered collection in format. The body is returned
// untouched.
func (c *HTTPClient) Export(ctx context.Context, filters domain.Filters, format domain.ExportFormat) (*Export, error) {
	q := FilterValues(filters)
	q.Set("format", string(format))
	req, err := c.newRequest(ctx, http.MethodGet, "/api/movies/export", q, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: export: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("unexpected status", zap.String("op", "export"), zap.Int("status", resp.StatusCode))
		return nil, &StatusError{Op: "export", Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxExport+1))
	if err != nil {
		return nil, fmt.Errorf("catalog: read export: %w", err)
	}
	if int64(len(body)) > c.maxExport {
		c.logger.Warn("export exceeds limit", zap.Int64("limit", c.maxExport))
		return nil, fmt.Errorf("%w: more than %d bytes", ErrExportTooLarge, c.maxExport)
	}

	out := &Export{
		Filename:    format.Filename(),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}
	if out.ContentType == "" {
		out.ContentType = format.ContentType()
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		out.Filename = params["filename"]
	}
	return out, nil
}

// Genres returns the catalog's genre constants.
func (c *HTTPClient) Genres(ctx context.Context) ([]string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/movies/genres", nil, nil)
	if err != nil {
		return nil, err
	}
	genres := make([]string, 0)
	if err := c.doJSON(req, "genres", &genres); err != nil {
		return nil, err
	}
	return genres, nil
}

// FilterValues encodes the non-empty filters as catalog query parameters.
func FilterValues(f domain.Filters) url.Values {
	q := url.Values{}
	set := func(key, val string) {
		if v := strings.TrimSpace(val); v != "" {
			q.Set(key, v)
		}
	}
	set("title", f.Title)
	set("director", f.Director)
	set("cast", f.Cast)
	set("genre", f.Genre)
	if f.Year != nil {
		q.Set("year", strconv.Itoa(*f.Year))
	}
	return q
}

func moviePath(id int) string {
	return "/api/movies/" + strconv.Itoa(id)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: c.baseURL.Path + path}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	endpoint := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// doJSON executes req and decodes a 2xx body into out when out is non-nil.
func (c *HTTPClient) doJSON(req *http.Request, op string, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("catalog: %s: %w", op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.logger.Warn("unexpected status",
			zap.String("op", op),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode))
		return &StatusError{Op: op, Code: resp.StatusCode}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("catalog: decode %s response: %w", op, err)
	}
	return nil
}
