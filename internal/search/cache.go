package search

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedClient memoizes successful searches. Queries already carry the
// calendar year, so entries stay valid for the lifetime of a conversation
// and repeated phase retries do not burn provider quota.
type CachedClient struct {
	next  Client
	cache *lru.Cache[string, []Result]
}

func NewCachedClient(next Client, size int) *CachedClient {
	if size <= 0 {
		size = 256
	}
	cache, _ := lru.New[string, []Result](size)
	return &CachedClient{next: next, cache: cache}
}

func (c *CachedClient) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	key := fmt.Sprintf("%d|%s", clampResults(maxResults), query)
	if hit, ok := c.cache.Get(key); ok {
		return hit, nil
	}
	results, err := c.next.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, results)
	return results, nil
}
