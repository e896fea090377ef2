// Package client talks to a lost-and-found gateway over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/lostfound"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "lostfound-client"
)

type Client struct {
	client  *http.Client
	cache   *cache.Cache
	baseURL string
	apiKey  string
}

// New returns a client for the gateway at baseURL. apiKey may be empty for read-only use.
func New(baseURL, apiKey string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:  &httpClient,
		cache:   cache.New(10*time.Minute, 15*time.Minute),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
	httpClient.Transport = c
	return c
}

type Options struct {
	Office string
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) endpoint(path string, opts Options, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if opts.Office != "" {
		query.Set("office", opts.Office)
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) do(req *http.Request, response any) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return resp, nil
	}

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error     string `json:"error"`
			Retryable bool   `json:"retryable"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(raw))
		}
		return resp, &APIError{StatusCode: resp.StatusCode, Message: body.Error, Retryable: body.Retryable}
	}

	if response != nil {
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			return resp, fmt.Errorf("failed to decode response: %v", err)
		}
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, target string, payload any, response any) error {
	var body io.Reader = http.NoBody
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req, response)
	return err
}

func (c *Client) GetInfo(ctx context.Context) (lostfound.Info, error) {
	x, found := c.cache.Get("info")
	if found {
		return x.(lostfound.Info), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/info", Options{}, nil), nil)
	if err != nil {
		return lostfound.Info{}, fmt.Errorf("failed to create request: %v", err)
	}

	var info lostfound.Info
	if _, err := c.do(req, &info); err != nil {
		return lostfound.Info{}, err
	}

	c.cache.Set("info", info, cache.DefaultExpiration)
	return info, nil
}

type cachedItem struct {
	etag string
	item lostfound.Item
}

// GetItem fetches one item, revalidating a cached copy with its ETag.
func (c *Client) GetItem(ctx context.Context, id string, opts Options) (lostfound.Item, error) {
	cacheKey := "item:" + opts.Office + ":" + id

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/item/"+url.PathEscape(id), opts, nil), nil)
	if err != nil {
		return lostfound.Item{}, fmt.Errorf("failed to create request: %v", err)
	}

	x, found := c.cache.Get(cacheKey)
	if found {
		req.Header.Set("If-None-Match", x.(cachedItem).etag)
	}

	var item lostfound.Item
	resp, err := c.do(req, &item)
	if err != nil {
		return lostfound.Item{}, err
	}
	if resp.StatusCode == http.StatusNotModified && found {
		return x.(cachedItem).item, nil
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		c.cache.Set(cacheKey, cachedItem{etag: etag, item: item}, cache.DefaultExpiration)
	}
	return item, nil
}

func (c *Client) ListItems(ctx context.Context, returned *bool, opts Options) ([]lostfound.Item, error) {
	query := url.Values{}
	if returned != nil {
		query.Set("returned", fmt.Sprint(*returned))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/items", opts, query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	var items []lostfound.Item
	if _, err := c.do(req, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) Publish(ctx context.Context, form lostfound.FormData, opts Options) (lostfound.PublishResult, error) {
	var result lostfound.PublishResult
	err := c.postJSON(ctx, c.endpoint("/api/publish-data", opts, nil), form, &result)
	return result, err
}

func (c *Client) MarkReturned(ctx context.Context, id string, opts Options) (lostfound.MarkReturnedResult, error) {
	var result lostfound.MarkReturnedResult
	err := c.postJSON(ctx, c.endpoint("/api/item/"+url.PathEscape(id)+"/return", opts, nil), nil, &result)
	if err == nil {
		c.cache.Delete("item:" + opts.Office + ":" + id)
	}
	return result, err
}

func (c *Client) ImportXML(ctx context.Context, document []byte, opts Options) (lostfound.PublishResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/import-xml", opts, nil), bytes.NewReader(document))
	if err != nil {
		return lostfound.PublishResult{}, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/xml")

	var result lostfound.PublishResult
	_, err = c.do(req, &result)
	return result, err
}
