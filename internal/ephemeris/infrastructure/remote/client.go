package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"natal-engine/internal/ephemeris/domain"
)

// Client is a RawProvider backed by an HTTP ephemeris service.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// NewClient constructs a remote ephemeris client.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("remote ephemeris: empty base url")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type positionResponse struct {
	RA  *float64 `json:"ra"`
	Dec *float64 `json:"dec"`
}

type siderealResponse struct {
	LST *float64 `json:"lst"`
}

// RawPosition fetches right ascension and declination in radians.
func (c *Client) RawPosition(ctx context.Context, body string, instant time.Time, latitude, longitude float64) (ephemeris.Equatorial, error) {
	if body == "" {
		return ephemeris.Equatorial{}, fmt.Errorf("remote ephemeris: %w: empty body", ephemeris.ErrUnknownBody)
	}
	query := url.Values{}
	query.Set("body", body)
	query.Set("instant", instant.UTC().Format(time.RFC3339Nano))
	query.Set("lat", formatFloat(latitude))
	query.Set("lon", formatFloat(longitude))

	var resp positionResponse
	if err := c.getJSON(ctx, "/v1/ephemeris/position?"+query.Encode(), &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return ephemeris.Equatorial{}, fmt.Errorf("remote ephemeris: %w: %s", ephemeris.ErrUnknownBody, body)
		}
		return ephemeris.Equatorial{}, err
	}
	if resp.RA == nil || resp.Dec == nil {
		return ephemeris.Equatorial{}, fmt.Errorf("remote ephemeris: %w: incomplete position for %s", ephemeris.ErrUnavailable, body)
	}
	return ephemeris.Equatorial{RightAscension: *resp.RA, Declination: *resp.Dec}, nil
}

// SiderealTime fetches the local sidereal time in radians.
func (c *Client) SiderealTime(ctx context.Context, instant time.Time, longitude float64) (float64, error) {
	query := url.Values{}
	query.Set("instant", instant.UTC().Format(time.RFC3339Nano))
	query.Set("lon", formatFloat(longitude))

	var resp siderealResponse
	if err := c.getJSON(ctx, "/v1/ephemeris/sidereal?"+query.Encode(), &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return 0, fmt.Errorf("remote ephemeris: %w: sidereal endpoint missing", ephemeris.ErrUnavailable)
		}
		return 0, err
	}
	if resp.LST == nil {
		return 0, fmt.Errorf("remote ephemeris: %w: missing lst", ephemeris.ErrUnavailable)
	}
	return *resp.LST, nil
}

var errNotFound = errors.New("remote ephemeris: not found")

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("remote ephemeris: %w: %v", ephemeris.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("remote ephemeris: %w: http %d", ephemeris.ErrUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote ephemeris: %w: decode: %v", ephemeris.ErrUnavailable, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
