package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fuelerp/backend/internal/domain/pricing"
	"github.com/fuelerp/backend/internal/infrastructure/config"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 1 * 1024 * 1024

// HTTPClient resolves margin rates and pricing windows from the external
// pricing authority over HTTP. Responses are cached because rates are
// fixed for the lifetime of a window.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	cacheTTL   time.Duration
	logger     *zap.Logger

	mu          sync.RWMutex
	rateCache   map[string]cachedRate
	windowCache map[string]cachedWindow
}

type cachedRate struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

type cachedWindow struct {
	window    pricing.Window
	fetchedAt time.Time
}

type rateResponse struct {
	Product    string          `json:"product"`
	WindowID   string          `json:"window_id"`
	MarginRate decimal.Decimal `json:"margin_rate"`
}

type windowResponse struct {
	ID        string    `json:"id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// NewHTTPClient creates a pricing client from configuration
func NewHTTPClient(cfg *config.PricingConfig, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cacheTTL:    cfg.CacheTTL,
		logger:      logger,
		rateCache:   make(map[string]cachedRate),
		windowCache: make(map[string]cachedWindow),
	}
}

// MarginRate returns the per-litre dealer margin rate for a product within
// a pricing window. A 404 from the authority means the product has no
// gazetted rate in the window and maps to ErrRateNotFound.
func (c *HTTPClient) MarginRate(ctx context.Context, product string, windowID string) (decimal.Decimal, error) {
	cacheKey := windowID + ":" + product

	c.mu.RLock()
	cached, ok := c.rateCache[cacheKey]
	c.mu.RUnlock()
	if ok && time.Since(cached.fetchedAt) < c.cacheTTL {
		return cached.rate, nil
	}

	endpoint := fmt.Sprintf("%s/api/v1/windows/%s/rates/%s",
		c.baseURL, url.PathEscape(windowID), url.PathEscape(product))

	var resp rateResponse
	found, err := c.getJSON(ctx, endpoint, &resp)
	if err != nil {
		return decimal.Zero, err
	}
	if !found {
		return decimal.Zero, pricing.ErrRateNotFound
	}
	if resp.MarginRate.IsNegative() {
		return decimal.Zero, fmt.Errorf("pricing authority returned negative margin rate %s for %s", resp.MarginRate, product)
	}

	c.mu.Lock()
	c.rateCache[cacheKey] = cachedRate{rate: resp.MarginRate, fetchedAt: time.Now()}
	c.mu.Unlock()

	return resp.MarginRate, nil
}

// WindowDates returns the date boundaries of a pricing window
func (c *HTTPClient) WindowDates(ctx context.Context, windowID string) (pricing.Window, error) {
	c.mu.RLock()
	cached, ok := c.windowCache[windowID]
	c.mu.RUnlock()
	if ok && time.Since(cached.fetchedAt) < c.cacheTTL {
		return cached.window, nil
	}

	endpoint := fmt.Sprintf("%s/api/v1/windows/%s", c.baseURL, url.PathEscape(windowID))

	var resp windowResponse
	found, err := c.getJSON(ctx, endpoint, &resp)
	if err != nil {
		return pricing.Window{}, err
	}
	if !found {
		return pricing.Window{}, fmt.Errorf("pricing window %s not found", windowID)
	}

	window := pricing.Window{ID: resp.ID, StartDate: resp.StartDate, EndDate: resp.EndDate}

	c.mu.Lock()
	c.windowCache[windowID] = cachedWindow{window: window, fetchedAt: time.Now()}
	c.mu.Unlock()

	return window, nil
}

// WindowForDate returns the pricing window containing the given date.
// The scheduler uses it to detect window close.
func (c *HTTPClient) WindowForDate(ctx context.Context, date time.Time) (pricing.Window, error) {
	endpoint := fmt.Sprintf("%s/api/v1/windows?date=%s", c.baseURL, date.Format("2006-01-02"))

	var resp windowResponse
	found, err := c.getJSON(ctx, endpoint, &resp)
	if err != nil {
		return pricing.Window{}, err
	}
	if !found {
		return pricing.Window{}, fmt.Errorf("no pricing window covers %s", date.Format("2006-01-02"))
	}

	window := pricing.Window{ID: resp.ID, StartDate: resp.StartDate, EndDate: resp.EndDate}

	c.mu.Lock()
	c.windowCache[window.ID] = cachedWindow{window: window, fetchedAt: time.Now()}
	c.mu.Unlock()

	return window, nil
}

// getJSON performs a GET and decodes the response. It returns found=false
// on a 404 so callers can map absence to their own semantics.
func (c *HTTPClient) getJSON(ctx context.Context, endpoint string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build pricing request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("pricing authority request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close pricing response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("pricing authority returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return false, fmt.Errorf("failed to read pricing response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("failed to decode pricing response: %w", err)
	}
	return true, nil
}

var _ pricing.Authority = (*HTTPClient)(nil)
