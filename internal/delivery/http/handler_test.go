package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pricelens/backend/config"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/cache"
	"github.com/pricelens/backend/internal/metrics"
	"github.com/pricelens/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeCatalog serves one fixed candidate for every name search.
type fakeCatalog struct {
	candidates []domain.CatalogCandidate
}

func (f *fakeCatalog) SearchByName(ctx context.Context, title string, limit int) ([]domain.CatalogCandidate, error) {
	return f.candidates, nil
}

func (f *fakeCatalog) SearchByActives(ctx context.Context, title string, actives []string, limit int) ([]domain.CatalogCandidate, error) {
	return nil, nil
}

// fakeEnrichments is an in-memory domain.EnrichmentRepository.
type fakeEnrichments struct {
	records  []domain.EnrichmentRecord
	statuses map[int64]domain.Status
}

func newFakeEnrichments() *fakeEnrichments {
	return &fakeEnrichments{statuses: make(map[int64]domain.Status)}
}

func (f *fakeEnrichments) Upsert(ctx context.Context, record *domain.EnrichmentRecord) error {
	record.ID = int64(len(f.records) + 1)
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeEnrichments) UpdateStatus(ctx context.Context, id int64, next domain.Status) error {
	if id == 404 {
		return domain.ErrRecordNotFound
	}
	if id == 409 {
		return domain.ErrInvalidTransition
	}
	f.statuses[id] = next
	return nil
}

func (f *fakeEnrichments) BulkUpdateStatus(ctx context.Context, ids []int64, next domain.Status) (int, error) {
	for _, id := range ids {
		f.statuses[id] = next
	}
	return len(ids), nil
}

func (f *fakeEnrichments) List(ctx context.Context, filter domain.EnrichmentFilter) ([]domain.EnrichmentRecord, error) {
	return f.records, nil
}

func (f *fakeEnrichments) Stats(ctx context.Context) (*domain.EnrichmentStats, error) {
	return &domain.EnrichmentStats{Total: len(f.records)}, nil
}

func (f *fakeEnrichments) ListForAdjustment(ctx context.Context, ids []int64) ([]domain.EnrichmentRecord, error) {
	return nil, nil
}

func (f *fakeEnrichments) ListByStatus(ctx context.Context, status domain.Status) ([]domain.EnrichmentRecord, error) {
	return nil, nil
}

func (f *fakeEnrichments) SavePriceApplied(ctx context.Context, id int64, newPrice float64) error {
	return nil
}

// fakePlatform toggles between configured and not.
type fakePlatform struct {
	configured bool
}

func (f *fakePlatform) Configured() bool { return f.configured }

func (f *fakePlatform) FetchProducts(ctx context.Context) ([]domain.InputProduct, error) {
	return nil, domain.ErrPlatformUnavailable
}

func (f *fakePlatform) FetchVariants(ctx context.Context, productID int64) ([]domain.Variant, error) {
	return nil, nil
}

func (f *fakePlatform) UpdateVariantPrices(ctx context.Context, productID int64, variantIDs []int64, newPrice, compareAt float64) error {
	return nil
}

func (f *fakePlatform) WriteMetafields(ctx context.Context, productID int64, metafields []domain.Metafield, tags []string) error {
	return nil
}

// fakeBenchmarks is an empty domain.BenchmarkRepository.
type fakeBenchmarks struct{}

func (f *fakeBenchmarks) ListSegments(ctx context.Context) ([]domain.MarketBenchmark, error) {
	return nil, nil
}

func (f *fakeBenchmarks) TopActives(ctx context.Context, productType string, tier domain.PriceTier, n int) ([]string, error) {
	return nil, nil
}

func (f *fakeBenchmarks) TopSuitability(ctx context.Context, productType string, tier domain.PriceTier, n int) ([]string, error) {
	return nil, nil
}

func (f *fakeBenchmarks) Upsert(ctx context.Context, benchmark *domain.MarketBenchmark) error {
	return nil
}

func (f *fakeBenchmarks) List(ctx context.Context) ([]domain.MarketBenchmark, error) {
	return []domain.MarketBenchmark{}, nil
}

func floatPtr(v float64) *float64 { return &v }

// setupTestRouter wires real services over in-memory fakes.
func setupTestRouter(platformConfigured bool) (*gin.Engine, *fakeEnrichments) {
	logger := zap.NewNop()
	store := newFakeEnrichments()
	platform := &fakePlatform{configured: platformConfigured}
	catalog := &fakeCatalog{candidates: []domain.CatalogCandidate{{
		Hash:           "cerave-hydrating-cleanser",
		DisplayName:    "CeraVe Hydrating Facial Cleanser",
		Category:       "cleanser",
		PriceTier:      domain.TierBudget,
		Actives:        []string{"ceramide"},
		NameSimilarity: 0.95,
	}}}

	matching := usecase.NewMatchingService(catalog, store, platform, logger, usecase.MatchingConfig{})
	adjuster := usecase.NewPriceAdjuster(store, platform, logger,
		usecase.PriceAdjustConfig{WriteInterval: time.Millisecond})
	sync := usecase.NewSyncService(store, platform, logger,
		usecase.SyncConfig{WriteInterval: time.Millisecond})
	benchmarks := usecase.NewBenchmarkService(&fakeBenchmarks{}, cache.NewMemoryCache(), logger, time.Hour)

	registry := prometheus.NewRegistry()
	handler := NewHandler(matching, adjuster, sync, benchmarks, store, metrics.New(registry), logger)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"*"},
		},
	}
	return SetupRouter(cfg, handler, logger, registry), store
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	router, _ := setupTestRouter(false)

	w := doJSON(router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %q, want healthy", body["status"])
	}
}

func TestRunMatchEndpoint(t *testing.T) {
	t.Run("matches provided products", func(t *testing.T) {
		router, store := setupTestRouter(false)

		w := doJSON(router, http.MethodPost, "/api/v1/match/run", map[string]interface{}{
			"products": []domain.InputProduct{{
				ExternalID:  1001,
				Title:       "CeraVe Hydrating Facial Cleanser",
				Vendor:      "CeraVe",
				Price:       floatPtr(16.0),
				Description: "with ceramides",
			}},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}

		var summary usecase.MatchRunSummary
		if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if summary.Matched != 1 {
			t.Errorf("Matched = %d, want 1", summary.Matched)
		}
		if len(store.records) != 1 {
			t.Errorf("persisted %d records, want 1", len(store.records))
		}
	})

	t.Run("empty product list is a bad request", func(t *testing.T) {
		router, _ := setupTestRouter(false)
		w := doJSON(router, http.MethodPost, "/api/v1/match/run", map[string]interface{}{})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("live pull without credentials is a precondition failure", func(t *testing.T) {
		router, _ := setupTestRouter(false)
		w := doJSON(router, http.MethodPost, "/api/v1/match/run", map[string]interface{}{
			"pullLive": true,
		})
		if w.Code != http.StatusPreconditionFailed {
			t.Errorf("status = %d, want 412", w.Code)
		}
	})
}

func TestEnrichmentEndpoints(t *testing.T) {
	t.Run("list with invalid limit", func(t *testing.T) {
		router, _ := setupTestRouter(false)
		w := doJSON(router, http.MethodGet, "/api/v1/enrichments?limit=-3", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("list with unknown status filter", func(t *testing.T) {
		router, _ := setupTestRouter(false)
		w := doJSON(router, http.MethodGet, "/api/v1/enrichments?status=archived", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("stats", func(t *testing.T) {
		router, _ := setupTestRouter(false)
		w := doJSON(router, http.MethodGet, "/api/v1/enrichments/stats", nil)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("status transition", func(t *testing.T) {
		router, store := setupTestRouter(false)
		w := doJSON(router, http.MethodPut, "/api/v1/enrichments/1/status",
			map[string]string{"status": "approved"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		if store.statuses[1] != domain.StatusApproved {
			t.Errorf("stored status = %v, want approved", store.statuses[1])
		}
	})

	t.Run("unknown target status", func(t *testing.T) {
		router, _ := setupTestRouter(false)
		w := doJSON(router, http.MethodPut, "/api/v1/enrichments/1/status",
			map[string]string{"status": "archived"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("missing record maps to 404", func(t *testing.T) {
		router, _ := setupTestRouter(false)
		w := doJSON(router, http.MethodPut, "/api/v1/enrichments/404/status",
			map[string]string{"status": "approved"})
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("invalid transition maps to 409", func(t *testing.T) {
		router, _ := setupTestRouter(false)
		w := doJSON(router, http.MethodPut, "/api/v1/enrichments/409/status",
			map[string]string{"status": "approved"})
		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
	})

	t.Run("bulk transition", func(t *testing.T) {
		router, store := setupTestRouter(false)
		w := doJSON(router, http.MethodPost, "/api/v1/enrichments/status",
			map[string]interface{}{"ids": []int64{1, 2}, "status": "approved"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		if len(store.statuses) != 2 {
			t.Errorf("updated %d records, want 2", len(store.statuses))
		}
	})

	t.Run("bulk transition with empty ids", func(t *testing.T) {
		router, _ := setupTestRouter(false)
		w := doJSON(router, http.MethodPost, "/api/v1/enrichments/status",
			map[string]interface{}{"ids": []int64{}, "status": "approved"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestPlatformEndpoints(t *testing.T) {
	t.Run("price adjust without credentials", func(t *testing.T) {
		router, _ := setupTestRouter(false)
		w := doJSON(router, http.MethodPost, "/api/v1/prices/adjust",
			map[string]string{"strategy": "match_avg"})
		if w.Code != http.StatusPreconditionFailed {
			t.Errorf("status = %d, want 412", w.Code)
		}
	})

	t.Run("price adjust with unknown strategy", func(t *testing.T) {
		router, _ := setupTestRouter(true)
		w := doJSON(router, http.MethodPost, "/api/v1/prices/adjust",
			map[string]string{"strategy": "race_to_bottom"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("price adjust defaults to match_avg", func(t *testing.T) {
		router, _ := setupTestRouter(true)
		w := doJSON(router, http.MethodPost, "/api/v1/prices/adjust", map[string]string{})
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, body = %s", w.Code, w.Body.String())
		}
	})

	t.Run("push without credentials", func(t *testing.T) {
		router, _ := setupTestRouter(false)
		w := doJSON(router, http.MethodPost, "/api/v1/platform/push", nil)
		if w.Code != http.StatusPreconditionFailed {
			t.Errorf("status = %d, want 412", w.Code)
		}
	})
}

func TestBenchmarkEndpoints(t *testing.T) {
	router, _ := setupTestRouter(false)

	w := doJSON(router, http.MethodGet, "/api/v1/benchmarks", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200", w.Code)
	}

	w = doJSON(router, http.MethodPost, "/api/v1/benchmarks/recompute", nil)
	if w.Code != http.StatusOK {
		t.Errorf("recompute status = %d, want 200", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupTestRouter(false)

	w := doJSON(router, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
