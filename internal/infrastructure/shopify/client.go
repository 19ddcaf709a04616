// Package shopify is the commerce-platform collaborator: a thin REST Admin
// API client consumed as a black box by the engine. It paces calls against
// Shopify's leaky bucket and retries transient 429/5xx responses; the engine
// itself never retries.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pricelens/backend/internal/domain"
)

const defaultAPIVersion = "2024-01"

// Shopify's REST Admin API allows 2 requests per second per store.
const requestsPerSecond = 2

// maxAttempts bounds the transient-failure retry loop per call.
const maxAttempts = 3

// maxErrorBodyLen truncates response bodies embedded in errors.
const maxErrorBodyLen = 200

// Client talks to the Shopify REST Admin API for one store.
type Client struct {
	httpClient  *http.Client
	shopDomain  string
	accessToken string
	apiVersion  string
	rateLimiter *rate.Limiter

	// insecure switches to plain HTTP; only set via SetBaseURL in tests.
	insecure bool
}

// NewClient creates a Shopify client. An empty shop domain or access token
// produces an unconfigured client; callers check Configured before use.
func NewClient(shopDomain, accessToken, apiVersion string) *Client {
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		shopDomain:  shopDomain,
		accessToken: accessToken,
		apiVersion:  apiVersion,
		rateLimiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

// Configured reports whether store credentials are present.
func (c *Client) Configured() bool {
	return c.shopDomain != "" && c.accessToken != ""
}

// SetBaseURL overrides the store URL; used by tests to point at a local server.
func (c *Client) SetBaseURL(baseURL string) {
	c.shopDomain = strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://")
	c.insecure = strings.HasPrefix(baseURL, "http://")
}

func (c *Client) endpoint(path string) string {
	scheme := "https"
	if c.insecure {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/admin/api/%s%s", scheme, c.shopDomain, c.apiVersion, path)
}

// doRequest executes one HTTP call with pacing, auth headers, and a bounded
// retry on 429/5xx. The returned body is fully read.
func (c *Client) doRequest(ctx context.Context, op, method, reqURL string, payload interface{}) ([]byte, error) {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", op, err)
		}
		body = encoded
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating %s request: %w", op, err)
		}
		req.Header.Set("X-Shopify-Access-Token", c.accessToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "PriceLens/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", domain.ErrPlatformUnavailable, err)
			time.Sleep(time.Duration(attempt*500) * time.Millisecond)
			continue
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = statusError(op, resp.StatusCode, respBody)
			time.Sleep(time.Duration(attempt*500) * time.Millisecond)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, statusError(op, resp.StatusCode, respBody)
		}
		return respBody, nil
	}
	return nil, lastErr
}

func statusError(op string, statusCode int, body []byte) error {
	excerpt := string(body)
	if len(excerpt) > maxErrorBodyLen {
		excerpt = excerpt[:maxErrorBodyLen]
	}
	return &domain.PlatformStatusError{StatusCode: statusCode, Op: op, Body: excerpt}
}

// FetchProducts pulls the full live product list, following Link-header
// pagination.
func (c *Client) FetchProducts(ctx context.Context) ([]domain.InputProduct, error) {
	var products []domain.InputProduct

	reqURL := c.endpoint("/products.json") + "?limit=250"
	for reqURL != "" {
		body, nextURL, err := c.fetchProductPage(ctx, reqURL)
		if err != nil {
			return nil, err
		}

		var page productListPayload
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decoding product list: %w", err)
		}
		for i := range page.Products {
			products = append(products, mapProduct(&page.Products[i]))
		}
		reqURL = nextURL
	}

	return products, nil
}

// fetchProductPage is FetchProducts' per-page request; it needs the Link
// header, which doRequest does not surface.
func (c *Client) fetchProductPage(ctx context.Context, reqURL string) ([]byte, string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating product list request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("User-Agent", "PriceLens/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, "", statusError("product list", resp.StatusCode, body)
	}

	return body, nextPageURL(resp.Header.Get("Link")), nil
}

// nextPageURL extracts the rel="next" target from a Shopify Link header.
func nextPageURL(linkHeader string) string {
	for _, part := range strings.Split(linkHeader, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start >= 0 && end > start {
			return part[start+1 : end]
		}
	}
	return ""
}

// FetchVariants returns the variant list of one product.
func (c *Client) FetchVariants(ctx context.Context, productID int64) ([]domain.Variant, error) {
	body, err := c.doRequest(ctx, "product fetch", http.MethodGet,
		c.endpoint(fmt.Sprintf("/products/%d.json", productID)), nil)
	if err != nil {
		return nil, err
	}

	var payload productPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding product: %w", err)
	}
	return mapVariants(payload.Product.Variants), nil
}

// UpdateVariantPrices writes newPrice to every listed variant of the product
// in a single product update, keeping compareAt as the compare-at price.
func (c *Client) UpdateVariantPrices(ctx context.Context, productID int64, variantIDs []int64, newPrice, compareAt float64) error {
	variants := make([]variantUpdate, 0, len(variantIDs))
	for _, id := range variantIDs {
		variants = append(variants, variantUpdate{
			ID:             id,
			Price:          formatPrice(newPrice),
			CompareAtPrice: formatPrice(compareAt),
		})
	}

	payload := map[string]interface{}{
		"product": map[string]interface{}{
			"id":       productID,
			"variants": variants,
		},
	}
	_, err := c.doRequest(ctx, "price update", http.MethodPut,
		c.endpoint(fmt.Sprintf("/products/%d.json", productID)), payload)
	return err
}

// WriteMetafields writes the metafield set and tag list to the product in one
// product update.
func (c *Client) WriteMetafields(ctx context.Context, productID int64, metafields []domain.Metafield, tags []string) error {
	fields := make([]metafieldPayload, 0, len(metafields))
	for _, m := range metafields {
		fields = append(fields, metafieldPayload{
			Namespace: m.Namespace,
			Key:       m.Key,
			Value:     m.Value,
			Type:      m.Type,
		})
	}

	payload := map[string]interface{}{
		"product": map[string]interface{}{
			"id":         productID,
			"tags":       strings.Join(tags, ", "),
			"metafields": fields,
		},
	}
	_, err := c.doRequest(ctx, "metafield write", http.MethodPut,
		c.endpoint(fmt.Sprintf("/products/%d.json", productID)), payload)
	return err
}

func formatPrice(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
