package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/backend/internal/domain"
)

func newTestClient(serverURL string) *Client {
	client := NewClient("test-shop.myshopify.com", "test-token", "")
	client.SetBaseURL(serverURL)
	return client
}

func TestNewClient(t *testing.T) {
	client := NewClient("shop.myshopify.com", "token", "")

	assert.True(t, client.Configured())
	assert.Equal(t, defaultAPIVersion, client.apiVersion)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.rateLimiter)
}

func TestConfigured(t *testing.T) {
	assert.False(t, NewClient("", "", "").Configured())
	assert.False(t, NewClient("shop.myshopify.com", "", "").Configured())
	assert.False(t, NewClient("", "token", "").Configured())
	assert.True(t, NewClient("shop.myshopify.com", "token", "").Configured())
}

func TestFetchVariants(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-01/products/100.json", r.URL.Path)
		assert.Equal(t, "test-token", r.Header.Get("X-Shopify-Access-Token"))

		compareAt := "39.99"
		payload := productPayload{Product: productData{
			ID: 100,
			Variants: []variantData{
				{ID: 11, Price: "29.99", CompareAtPrice: &compareAt},
				{ID: 12, Price: "34.99"},
			},
		}}
		json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	variants, err := client.FetchVariants(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, variants, 2)

	assert.Equal(t, int64(11), variants[0].ID)
	assert.Equal(t, 29.99, variants[0].Price)
	require.NotNil(t, variants[0].CompareAtPrice)
	assert.Equal(t, 39.99, *variants[0].CompareAtPrice)
	assert.Nil(t, variants[1].CompareAtPrice)
}

func TestDoRequest_RetriesTransientFailures(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(productPayload{Product: productData{ID: 100}})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchVariants(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestDoRequest_ExhaustsRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchVariants(context.Background(), 100)
	require.Error(t, err)
	assert.Equal(t, maxAttempts, attempts)

	var statusErr *domain.PlatformStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestDoRequest_ClientErrorsDoNotRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":"Not Found"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchVariants(context.Background(), 100)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var statusErr *domain.PlatformStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "Not Found")
}

func TestUpdateVariantPrices(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/admin/api/2024-01/products/100.json", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.UpdateVariantPrices(context.Background(), 100, []int64{11, 12}, 28.5, 40)
	require.NoError(t, err)

	product := captured["product"].(map[string]interface{})
	variants := product["variants"].([]interface{})
	require.Len(t, variants, 2)

	first := variants[0].(map[string]interface{})
	assert.Equal(t, "28.50", first["price"])
	assert.Equal(t, "40.00", first["compare_at_price"])
}

func TestWriteMetafields(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	metafields := []domain.Metafield{
		{Namespace: "pricelens", Key: "confidence", Value: "high", Type: "single_line_text_field"},
	}
	err := client.WriteMetafields(context.Background(), 100, metafields,
		[]string{"pricelens:matched", "active:ceramide"})
	require.NoError(t, err)

	product := captured["product"].(map[string]interface{})
	assert.Equal(t, "pricelens:matched, active:ceramide", product["tags"])

	fields := product["metafields"].([]interface{})
	require.Len(t, fields, 1)
	field := fields[0].(map[string]interface{})
	assert.Equal(t, "confidence", field["key"])
	assert.Equal(t, "pricelens", field["namespace"])
}

func TestFetchProducts_Pagination(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page_info") == "" {
			w.Header().Set("Link",
				fmt.Sprintf(`<%s/admin/api/2024-01/products.json?page_info=abc>; rel="next"`, server.URL))
			json.NewEncoder(w).Encode(productListPayload{Products: []productData{
				{ID: 1, Title: "First", Variants: []variantData{{ID: 10, Price: "19.99"}}},
			}})
			return
		}
		json.NewEncoder(w).Encode(productListPayload{Products: []productData{
			{ID: 2, Title: "Second"},
		}})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	products, err := client.FetchProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, int64(1), products[0].ExternalID)
	require.NotNil(t, products[0].Price)
	assert.Equal(t, 19.99, *products[0].Price)
	assert.Equal(t, "Second", products[1].Title)
	assert.Nil(t, products[1].Price)
}

func TestNextPageURL(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{`<https://shop/admin/products.json?page_info=a>; rel="next"`, "https://shop/admin/products.json?page_info=a"},
		{`<https://shop/a>; rel="previous", <https://shop/b>; rel="next"`, "https://shop/b"},
		{`<https://shop/a>; rel="previous"`, ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextPageURL(tt.header))
	}
}
