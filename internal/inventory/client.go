// Package inventory is the narrow interface to the external asset system
// that owns the catalog of models and physical assets.  The engine never
// mutates the catalog; it reads model capacity and executes per-asset
// checkout/checkin calls.  Every call has a bounded timeout and failures
// are reported through typed errors so callers can tell "collaborator
// unreachable" apart from a genuine business conflict.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrCapacityUnavailable is returned when the asset system cannot report a
// model's capacity: unreachable, timed out or an unexpected response.
// Callers must never treat this as "capacity = 0".
var ErrCapacityUnavailable = errors.New("capacity unavailable")

// ErrAssetNotFound is returned when no asset carries the requested tag.
var ErrAssetNotFound = errors.New("asset not found")

// ErrAssetAmbiguous is returned when a tag lookup matches more than one
// asset.  Staff must rescan with a unique tag.
var ErrAssetAmbiguous = errors.New("asset tag is ambiguous")

// Asset is the subset of the external asset record the engine needs.
type Asset struct {
	ID        uint64 `json:"id"`
	Tag       string `json:"asset_tag"`
	Name      string `json:"name"`
	ModelID   uint64 `json:"model_id"`
	ModelName string `json:"model_name"`
}

// Client talks to the asset system's REST API.  It is safe for concurrent
// use.  The configured timeout bounds every request including body read.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient constructs a Client.  baseURL is the API root without a
// trailing slash (e.g. "https://assets.example.com/api/v1").
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// do executes one JSON request and decodes the response into out when out
// is non-nil.  Non-2xx statuses are returned as errors carrying the code.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrAssetNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("asset api returned status %d for %s %s", resp.StatusCode, method, path)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetCapacity returns the total number of physical units that exist for a
// model.  A zero count from the API is passed through as-is; the caller
// decides whether zero means "unknown".  A 404 keeps the ErrAssetNotFound
// sentinel so callers can tell a mistyped model id from an outage; other
// transport or decode failures are wrapped in ErrCapacityUnavailable.
func (c *Client) GetCapacity(ctx context.Context, modelID uint64) (int, error) {
	var payload struct {
		ID          uint64 `json:"id"`
		Name        string `json:"name"`
		AssetsCount int    `json:"assets_count"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/models/%d", modelID), nil, &payload); err != nil {
		if errors.Is(err, ErrAssetNotFound) {
			return 0, fmt.Errorf("%w: model %d", ErrAssetNotFound, modelID)
		}
		return 0, fmt.Errorf("%w: model %d: %v", ErrCapacityUnavailable, modelID, err)
	}
	return payload.AssetsCount, nil
}

// GetModelName returns the display name of a model, used to fill the
// reservation item name cache.  Failures degrade to an empty name rather
// than blocking a checkout.
func (c *Client) GetModelName(ctx context.Context, modelID uint64) (string, error) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/models/%d", modelID), nil, &payload); err != nil {
		return "", err
	}
	return payload.Name, nil
}

// FindAssetByTag resolves a scanned tag to exactly one asset.  It returns
// ErrAssetNotFound when no asset matches and ErrAssetAmbiguous when the
// API reports multiple matches.
func (c *Client) FindAssetByTag(ctx context.Context, tag string) (*Asset, error) {
	if tag == "" {
		return nil, ErrAssetNotFound
	}
	// The bytag endpoint returns either a single asset object or, for
	// partial-tag deployments, a rows envelope with a total count.
	var payload struct {
		Total int     `json:"total"`
		Rows  []Asset `json:"rows"`
		Asset
	}
	path := "/hardware/bytag/" + url.PathEscape(tag)
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	switch {
	case payload.Total > 1:
		return nil, fmt.Errorf("%w: tag %q matched %d assets", ErrAssetAmbiguous, tag, payload.Total)
	case payload.Total == 1:
		a := payload.Rows[0]
		return &a, nil
	case payload.ID != 0:
		a := payload.Asset
		return &a, nil
	default:
		return nil, ErrAssetNotFound
	}
}

// CheckoutAsset assigns a physical asset to a user in the external system.
func (c *Client) CheckoutAsset(ctx context.Context, assetID, userID uint64, note string) error {
	body := map[string]interface{}{
		"checkout_to_type": "user",
		"assigned_user":    userID,
		"note":             note,
	}
	var result struct {
		Status   string          `json:"status"`
		Messages json.RawMessage `json:"messages"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/hardware/%d/checkout", assetID), body, &result); err != nil {
		return err
	}
	if result.Status != "" && result.Status != "success" {
		return fmt.Errorf("asset %d checkout rejected: %s", assetID, string(result.Messages))
	}
	return nil
}

// CheckinAsset returns a physical asset to the available pool.
func (c *Client) CheckinAsset(ctx context.Context, assetID uint64, note string) error {
	body := map[string]interface{}{"note": note}
	var result struct {
		Status   string          `json:"status"`
		Messages json.RawMessage `json:"messages"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/hardware/%d/checkin", assetID), body, &result); err != nil {
		return err
	}
	if result.Status != "" && result.Status != "success" {
		return fmt.Errorf("asset %d checkin rejected: %s", assetID, string(result.Messages))
	}
	return nil
}
