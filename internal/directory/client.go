package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"messaging-service/internal/models"
)

// Directory resolves user display fields. The user store itself lives in a
// sibling service; this core only reads presentation data from it.
type Directory interface {
	BulkUsers(ctx context.Context, ids []int) (map[int]models.UserInfo, error)
}

// HTTPClient talks to the user service's internal bulk endpoint.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient builds a directory client for the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// BulkUsers fetches display info for the given ids in one round trip.
func (c *HTTPClient) BulkUsers(ctx context.Context, ids []int) (map[int]models.UserInfo, error) {
	result := make(map[int]models.UserInfo, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := url.Values{}
	for _, id := range ids {
		query.Add("id", strconv.Itoa(id))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/internal/users?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory request: status %d", resp.StatusCode)
	}

	var payload struct {
		Users []models.UserInfo `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("directory decode: %w", err)
	}
	for _, u := range payload.Users {
		result[u.ID] = u
	}
	return result, nil
}

// Noop returns empty display info; used when no user service is configured
// (messages still flow, clients fall back to ids).
type Noop struct{}

func (Noop) BulkUsers(ctx context.Context, ids []int) (map[int]models.UserInfo, error) {
	return map[int]models.UserInfo{}, nil
}
