package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	braveWebEndpoint   = "https://api.search.brave.com/res/v1/web/search"
	braveImageEndpoint = "https://api.search.brave.com/res/v1/images/search"

	maxResultsCap = 10
)

// BraveClient talks to the Brave Search API. Transport errors, timeouts and
// non-2xx responses all surface as ErrToolUnavailable so phase policy can
// treat them uniformly.
type BraveClient struct {
	apiKey string
	http   *http.Client
}

func NewBraveClient(apiKey string, timeout time.Duration) *BraveClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BraveClient{
		apiKey: apiKey,
		http:   &http.Client{Timeout: timeout},
	}
}

func (c *BraveClient) get(ctx context.Context, endpoint string, query string, count int) ([]byte, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(count))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrToolUnavailable, resp.StatusCode)
	}
	buf, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}
	return buf, nil
}

func clampResults(n int) int {
	if n <= 0 {
		return 8
	}
	if n > maxResultsCap {
		return maxResultsCap
	}
	return n
}

func (c *BraveClient) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	body, err := c.get(ctx, braveWebEndpoint, query, clampResults(maxResults))
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrToolUnavailable, err)
	}
	out := make([]Result, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		if r.URL == "" {
			continue
		}
		out = append(out, Result{Title: r.Title, URL: r.URL, Snippet: r.Description})
		if len(out) >= clampResults(maxResults) {
			break
		}
	}
	return out, nil
}

func (c *BraveClient) SearchImages(ctx context.Context, query string, maxResults int) ([]Image, error) {
	body, err := c.get(ctx, braveImageEndpoint, query, clampResults(maxResults))
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Results []struct {
			Title  string `json:"title"`
			URL    string `json:"url"`
			Source string `json:"source"`
			Properties struct {
				URL string `json:"url"`
			} `json:"properties"`
			Thumbnail struct {
				Src string `json:"src"`
			} `json:"thumbnail"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrToolUnavailable, err)
	}
	out := make([]Image, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Properties.URL == "" || r.Thumbnail.Src == "" {
			continue
		}
		out = append(out, Image{
			URL:       r.Properties.URL,
			Thumbnail: r.Thumbnail.Src,
			Title:     r.Title,
			Source:    r.Source,
		})
		if len(out) >= clampResults(maxResults) {
			break
		}
	}
	return out, nil
}
