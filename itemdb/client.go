package itemdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/skipmechanics/guildpanel/config"
	"go.uber.org/zap"
)

// UnknownItem is the display fallback when a lookup fails. Lookups only
// pre-fill a form field, so a failure must never block submission.
const UnknownItem = "Unknown item"

// Client resolves item IDs to display names against an external item
// database.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func New(cfg config.ItemDBConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type itemResponse struct {
	Name string `json:"name"`
}

// ItemName looks up the display name for an item ID. Any failure degrades
// to the UnknownItem placeholder.
func (c *Client) ItemName(ctx context.Context, id string) string {
	url := fmt.Sprintf("%s/api/item/%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return UnknownItem
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("item lookup failed", zap.String("id", id), zap.Error(err))
		return UnknownItem
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("item lookup non-200",
			zap.String("id", id), zap.Int("status", resp.StatusCode))
		return UnknownItem
	}

	var item itemResponse
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return UnknownItem
	}
	if strings.TrimSpace(item.Name) == "" {
		return UnknownItem
	}
	return item.Name
}
