package media

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const googleSearchURL = "https://www.googleapis.com/customsearch/v1"

// GoogleImageSearch finds image URLs through the Google Custom Search API.
type GoogleImageSearch struct {
	apiKey    string
	cseID     string
	searchURL string
	client    *http.Client
}

func NewGoogleImageSearch(apiKey, cseID string) *GoogleImageSearch {
	return &GoogleImageSearch{
		apiKey:    apiKey,
		cseID:     cseID,
		searchURL: googleSearchURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GoogleImageSearch) Configured() bool {
	return g != nil && g.apiKey != "" && g.cseID != ""
}

// FirstImageURL returns the first image result for the query, or an empty
// string when there are no results.
func (g *GoogleImageSearch) FirstImageURL(ctx context.Context, query string) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("searchType", "image")
	params.Set("num", "1")
	params.Set("key", g.apiKey)
	params.Set("cx", g.cseID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build image search request")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "image search request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read image search response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("image search returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Items []struct {
			Link string `json:"link"`
		} `json:"items"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", errors.Wrap(err, "failed to decode image search response")
	}
	if len(parsed.Items) == 0 {
		return "", nil
	}
	return parsed.Items[0].Link, nil
}
