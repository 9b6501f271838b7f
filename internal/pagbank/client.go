package pagbank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client queries the PagBank notification API.
type Client struct {
	baseURL    string
	email      string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, email, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		email:      email,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Lookup(ctx context.Context, notificationCode string) (*Transaction, error) {
	query := url.Values{}
	query.Set("email", c.email)
	query.Set("token", c.token)
	endpoint := c.baseURL + "/" + url.PathEscape(notificationCode) + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL carries the token; keep it out of the error.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("notification lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("notification lookup returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return decodeTransaction(resp.Body)
}
