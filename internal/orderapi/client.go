// Package orderapi is the HTTP client of the remote order service.
package orderapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/order"
)

const maxBodySize = 4 << 20

// Client calls the order creation and tracking endpoints.
type Client struct {
	base   string
	client *http.Client
}

var _ order.API = (*Client)(nil)

// New creates a client for baseURL. A nil client uses http.DefaultClient.
func New(baseURL string, client *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse order api url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("order api url %q: unsupported scheme", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(u.String(), "/"), client: client}, nil
}

// Create implements order.API.
func (c *Client) Create(ctx context.Context, p *order.Payload) (*order.Created, error) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodePayload(e, p)

	status, body, err := c.do(ctx, http.MethodPost, c.base+"/orders", e.Bytes())
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &order.APIError{StatusCode: status, Message: decodeMessage(body)}
	}

	r, err := decodeCreateResponse(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode create response")
	}
	if !r.Success {
		return nil, &order.APIError{StatusCode: status, Message: r.Message}
	}
	if r.ID == "" {
		return nil, errors.New("create response without order id")
	}
	zctx.From(ctx).Debug("Order created", zap.String("order_id", r.ID))
	return &order.Created{ID: r.ID}, nil
}

// Track implements order.API.
func (c *Client) Track(ctx context.Context, identifier string) ([]order.TrackedOrder, error) {
	u := c.base + "/orders/track/" + url.PathEscape(identifier)
	status, body, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &order.APIError{StatusCode: status, Message: decodeMessage(body)}
	}
	orders, err := decodeTrackResponse(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode track response")
	}
	return orders, nil
}

func (c *Client) do(ctx context.Context, method, u string, body []byte) (int, []byte, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return 0, nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "%s %s", method, req.URL.Path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, errors.Wrap(err, "read response")
	}
	return resp.StatusCode, data, nil
}
