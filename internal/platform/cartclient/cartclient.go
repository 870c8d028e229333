// Package cartclient is the one integration point with the
// out-of-scope shopping cart subsystem: a small HTTP client that
// reads a caller's cart for reserve and clears it after confirm.
package cartclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"reservation-core/internal/engine"

	"github.com/google/uuid"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type cartLineDTO struct {
	ProductID string `json:"productId"`
	Quantity  int32  `json:"quantity"`
}

func (c *Client) GetCart(ctx context.Context, callerID string) ([]engine.CartLine, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/carts/%s", c.baseURL, callerID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cart service returned status %d", resp.StatusCode)
	}

	var lines []cartLineDTO
	if err := json.NewDecoder(resp.Body).Decode(&lines); err != nil {
		return nil, err
	}

	out := make([]engine.CartLine, 0, len(lines))
	for _, l := range lines {
		pid, err := uuid.Parse(l.ProductID)
		if err != nil {
			continue
		}
		out = append(out, engine.CartLine{ProductID: pid, Quantity: l.Quantity})
	}
	return out, nil
}

func (c *Client) ClearCart(ctx context.Context, callerID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/carts/%s", c.baseURL, callerID), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("cart service returned status %d", resp.StatusCode)
	}
	return nil
}
