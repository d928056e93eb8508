package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"bosebridge/internal/bose"
)

const productsURL = "https://users.api.bose.io/passport-core/products"

// CloudClient fetches account-scoped data (currently the preset slots) from
// the Bose cloud on behalf of the session.
type CloudClient struct {
	session *Session
	http    *http.Client
	baseURL string
}

// NewCloudClient creates a cloud client authenticated by session.
func NewCloudClient(session *Session) *CloudClient {
	return &CloudClient{
		session: session,
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: &authTransport{session: session},
		},
		baseURL: productsURL,
	}
}

// WithBaseURL overrides the products endpoint, used by tests.
func (c *CloudClient) WithBaseURL(url string) *CloudClient {
	c.baseURL = url
	return c
}

// PersonID returns the account person id that owns the presets.
func (c *CloudClient) PersonID() string {
	return c.session.PersonID()
}

type productInfo struct {
	Presets map[string]bose.Preset `json:"presets,omitempty"`
}

// ProductPresets returns the device's preset slots keyed by slot index.
// Slots with unparseable indices are dropped.
func (c *CloudClient) ProductPresets(ctx context.Context, guid string) (map[int]bose.Preset, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, guid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product info for %s: %w", guid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("product info request for %s returned %d: %s", guid, resp.StatusCode, body)
	}

	var info productInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode product info: %w", err)
	}

	presets := make(map[int]bose.Preset, len(info.Presets))
	for slot, preset := range info.Presets {
		idx, err := strconv.Atoi(slot)
		if err != nil {
			continue
		}
		presets[idx] = preset
	}
	return presets, nil
}
