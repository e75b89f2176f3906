package autocomplete

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// City is one suggestion as returned by the French communes API.
type City struct {
	Name string `json:"nom"`
	Code string `json:"code"`
}

// Fetcher resolves a free-text query into an ordered suggestion list.
type Fetcher interface {
	FetchCities(ctx context.Context, query string, limit int) ([]City, error)
}

// HTTPFetcher queries the geo API over HTTP.
type HTTPFetcher struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPFetcher(endpoint string) *HTTPFetcher {
	return &HTTPFetcher{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (f *HTTPFetcher) FetchCities(ctx context.Context, query string, limit int) ([]City, error) {
	v := url.Values{}
	v.Set("nom", query)
	v.Set("limit", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Endpoint+"?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("autocomplete: city api returned http %d", resp.StatusCode)
	}
	var out []City
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
