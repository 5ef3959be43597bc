// Package geocode resolves the free-text location keys the filter
// evaluator's `location` rule needs (spec.md §4.1) into (lat,lng) pairs,
// through a process-wide cache and an external geocoding API called with
// bounded concurrency.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/pkg/logger"
)

// LatLng is a resolved geographic point.
type LatLng struct {
	Lat float64
	Lng float64
}

const lookupTimeout = 5 * time.Second

// Client geocodes location strings with a process-wide cache, bounded
// concurrency (spec.md §4.1: "parallel batch of ≤10"), and null-caching on
// failure so a bad address is never re-queried every run.
type Client struct {
	httpClient domain.HTTPClient
	endpoint   string
	apiKey     string
	logger     logger.Logger

	sem   *semaphore.Weighted
	cache sync.Map // string -> cacheEntry (miss=true for "known miss")
}

// NewClient builds a geocode client against endpoint (a Google/Mapbox/etc
// style geocoding API reachable by appending ?address=...&key=...), with
// concurrency bounded to maxConcurrent.
func NewClient(httpClient domain.HTTPClient, endpoint, apiKey string, maxConcurrent int, log logger.Logger) *Client {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		apiKey:     apiKey,
		logger:     log,
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// cacheEntry distinguishes "not yet looked up" (absent from the map) from
// "looked up and failed" (present with miss=true).
type cacheEntry struct {
	point LatLng
	miss  bool
}

// ResolveBatch looks up every key not already cached, respecting the
// client's concurrency bound, and returns the full key -> LatLng map for
// every key that resolved (misses are omitted). This is the
// "compilation strategy" pre-pass spec.md §4.1 describes: the evaluator
// calls this once per batch of candidate accounts, then evaluates
// `within_radius` purely against the returned map.
func (c *Client) ResolveBatch(ctx context.Context, keys []string) (map[string]LatLng, error) {
	result := make(map[string]LatLng, len(keys))
	var toFetch []string

	for _, key := range keys {
		if key == "" {
			continue
		}
		if v, ok := c.cache.Load(key); ok {
			entry := v.(cacheEntry)
			if !entry.miss {
				result[key] = entry.point
			}
			continue
		}
		toFetch = append(toFetch, key)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, key := range toFetch {
		key := key
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return result, fmt.Errorf("geocode: acquiring concurrency slot: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer c.sem.Release(1)

			point, err := c.lookup(ctx, key)
			if err != nil {
				c.logger.WithError(err).WithField("key", key).Warn("geocode lookup failed, caching miss")
				c.cache.Store(key, cacheEntry{miss: true})
				return
			}
			c.cache.Store(key, cacheEntry{point: point})
			mu.Lock()
			result[key] = point
			mu.Unlock()
		}()
	}
	wg.Wait()

	return result, nil
}

type geocodeAPIResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	Status string `json:"status"`
}

func (c *Client) lookup(ctx context.Context, key string) (LatLng, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s?address=%s&key=%s", c.endpoint, url.QueryEscape(key), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(lookupCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return LatLng{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return LatLng{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return LatLng{}, fmt.Errorf("geocode API returned status %d", resp.StatusCode)
	}

	var parsed geocodeAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return LatLng{}, fmt.Errorf("decoding geocode response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return LatLng{}, fmt.Errorf("no results for %q", key)
	}

	loc := parsed.Results[0].Geometry.Location
	return LatLng{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// EarthRadiusMiles is the constant spec.md §4.1 specifies for the
// Haversine distance calculation.
const EarthRadiusMiles = 3959.0
