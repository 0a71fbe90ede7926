package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/metrics"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/pipeline"
)

// Client is the raw transport under the request pipeline. It resolves paths
// against the base URL, authenticates and reads the whole body. It never
// turns an HTTP status into an error.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	token      string
	userAgent  string
	timeout    time.Duration
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Token     string
	UserAgent string
	// Timeout applies per call when the request carries none.
	Timeout time.Duration
}

// NewClient creates the transport. A nil httpClient gets a pooled default.
func NewClient(httpClient *http.Client, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultHTTPTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = constants.DefaultUserAgent
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		token:      opts.Token,
		userAgent:  opts.UserAgent,
		timeout:    opts.Timeout,
	}, nil
}

// Do performs one HTTP call. It satisfies pipeline.Handler.
func (c *Client) Do(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target, err := c.resolve(req)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.JSON != nil {
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" && target.Host == c.baseURL.Host {
		httpReq.Header.Set("Authorization", "Discogs token="+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordAPIRequest(method, 0, time.Since(start), err)
		return nil, fmt.Errorf("%s %s: %w", method, req.Path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // deferred cleanup

	data, err := io.ReadAll(resp.Body)
	metrics.RecordAPIRequest(method, resp.StatusCode, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &pipeline.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *Client) resolve(req *pipeline.Request) (*url.URL, error) {
	var target *url.URL
	if strings.HasPrefix(req.Path, "http://") || strings.HasPrefix(req.Path, "https://") {
		u, err := url.Parse(req.Path)
		if err != nil {
			return nil, fmt.Errorf("invalid url %q: %w", req.Path, err)
		}
		target = u
	} else {
		rel, err := url.Parse(req.Path)
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", req.Path, err)
		}
		u := *c.baseURL
		u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(rel.Path, "/")
		u.RawQuery = rel.RawQuery
		target = &u
	}

	if len(req.Query) > 0 {
		q := target.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}
	return target, nil
}
