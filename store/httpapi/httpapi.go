// Package httpapi implements the store accessor against a remote store's
// JSON API.
//
// The store exposes a single endpoint accepting a small request envelope:
// a method ("Get", "Add", or "Set"), the entity type name, and either a
// search (Get) or an entity payload (Add/Set). Get returns the matches in
// store order; Add returns the new record's identity. Settings carry the
// store's optimistic-concurrency version token and are rejected when the
// echoed token is stale.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fleetlink/nanoshare/store"
)

const (
	methodGet = "Get"
	methodAdd = "Add"
	methodSet = "Set"

	typeNameAsset   = "Asset"
	typeNameShare   = "Share"
	typeNameSetting = "AutoAcceptSetting"
)

// Doer executes HTTP requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one remote store.
type Client struct {
	url  string
	key  string
	doer Doer
}

type Option func(*Client)

// WithClient configures an HTTP client (or other Doer) for the API requests.
func WithClient(doer Doer) Option {
	return func(c *Client) {
		c.doer = doer
	}
}

// New creates a new remote store client for the API endpoint at apiURL.
// The key is sent as a bearer token with every request.
func New(apiURL, key string, opts ...Option) (*Client, error) {
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("parsing API URL: %w", err)
	}
	c := &Client{
		url:  apiURL,
		key:  key,
		doer: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// request is the store API call envelope.
type request struct {
	Method   string      `json:"method"`
	TypeName string      `json:"typeName"`
	Search   interface{} `json:"search,omitempty"`
	Entity   interface{} `json:"entity,omitempty"`
}

// response is the store API response envelope.
type response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *apiError       `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
}

// call executes one API request and unmarshals the result envelope into
// result when non-nil. Transport failures map to ErrRemoteUnavailable and
// store-side refusals to ErrRemoteRejected.
func (c *Client) call(ctx context.Context, apiReq *request, result interface{}) error {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s: %s", store.ErrRemoteUnavailable, apiReq.Method, apiReq.TypeName, resp.Status)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: %s %s: %s", store.ErrRemoteRejected, apiReq.Method, apiReq.TypeName, resp.Status)
	}
	apiResp := new(response)
	if err = json.NewDecoder(resp.Body).Decode(apiResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return fmt.Errorf("%w: %s %s: %s", store.ErrRemoteRejected, apiReq.Method, apiReq.TypeName, apiResp.Error.Message)
	}
	if result != nil && len(apiResp.Result) > 0 {
		if err = json.Unmarshal(apiResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

func (c *Client) getAssets(ctx context.Context, search map[string]string) ([]*store.Asset, error) {
	var assets []*store.Asset
	err := c.call(ctx, &request{
		Method:   methodGet,
		TypeName: typeNameAsset,
		Search:   search,
	}, &assets)
	return assets, err
}

func (c *Client) RetrieveAsset(ctx context.Context, id string) (*store.Asset, error) {
	assets, err := c.getAssets(ctx, map[string]string{"id": id})
	if err != nil || len(assets) < 1 {
		return nil, err
	}
	return assets[0], nil
}

func (c *Client) RetrieveAssetBySerial(ctx context.Context, serial string) (*store.Asset, error) {
	assets, err := c.getAssets(ctx, map[string]string{"serialNumber": serial})
	if err != nil || len(assets) < 1 {
		return nil, err
	}
	// first match wins; multiplicity is the caller's problem
	return assets[0], nil
}

func (c *Client) RetrieveShares(ctx context.Context, f *store.ShareFilter) ([]*store.Share, error) {
	search := make(map[string]string)
	if f != nil {
		if f.ID != "" {
			search["id"] = f.ID
		}
		if f.SerialNumber != "" {
			search["serialNumber"] = f.SerialNumber
		}
		if f.AdminID != "" {
			search["adminId"] = f.AdminID
		}
		if f.Status != "" {
			search["status"] = string(f.Status)
		}
	}
	var shares []*store.Share
	err := c.call(ctx, &request{
		Method:   methodGet,
		TypeName: typeNameShare,
		Search:   search,
	}, &shares)
	return shares, err
}

func (c *Client) CreateShare(ctx context.Context, s *store.Share) (string, error) {
	var id string
	err := c.call(ctx, &request{
		Method:   methodAdd,
		TypeName: typeNameShare,
		Entity:   s,
	}, &id)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", errors.New("store returned no share id")
	}
	return id, nil
}

func (c *Client) StoreShare(ctx context.Context, s *store.Share) error {
	return c.call(ctx, &request{
		Method:   methodSet,
		TypeName: typeNameShare,
		Entity:   s,
	}, nil)
}

func (c *Client) StoreAsset(ctx context.Context, a *store.Asset) error {
	return c.call(ctx, &request{
		Method:   methodSet,
		TypeName: typeNameAsset,
		Entity:   a,
	}, nil)
}

func (c *Client) RetrieveAutoAccept(ctx context.Context) (*store.AutoAcceptSetting, error) {
	var settings []*store.AutoAcceptSetting
	err := c.call(ctx, &request{
		Method:   methodGet,
		TypeName: typeNameSetting,
	}, &settings)
	if err != nil || len(settings) < 1 {
		return nil, err
	}
	return settings[0], nil
}

func (c *Client) StoreAutoAccept(ctx context.Context, s *store.AutoAcceptSetting) error {
	return c.call(ctx, &request{
		Method:   methodSet,
		TypeName: typeNameSetting,
		Entity:   s,
	}, nil)
}
