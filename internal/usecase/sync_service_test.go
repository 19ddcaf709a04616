package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pricelens/backend/internal/domain"
)

func newTestSyncService(store *mockEnrichmentRepository, platform *mockPlatformClient) *SyncService {
	return NewSyncService(store, platform, zap.NewNop(),
		SyncConfig{WriteInterval: time.Millisecond})
}

func approvedRecord(id, externalID int64) domain.EnrichmentRecord {
	return domain.EnrichmentRecord{
		ID:                id,
		ExternalProductID: externalID,
		Title:             "CeraVe Hydrating Facial Cleanser",
		CatalogHash:       "cerave-hydrating-cleanser",
		Confidence:        domain.ConfidenceHigh,
		Actives:           []string{"ceramide"},
		Suitability:       []string{"dry skin"},
		EfficacyScore:     floatPtr(4.5),
		CompetitorAvg:     floatPtr(12),
		PricePosition:     domain.PositionOverpriced,
		Status:            domain.StatusApproved,
	}
}

func TestPushApproved(t *testing.T) {
	ctx := context.Background()

	t.Run("fails fast without platform credentials", func(t *testing.T) {
		platform := newMockPlatformClient()
		platform.configured = false
		svc := newTestSyncService(newMockEnrichmentRepository(), platform)

		_, err := svc.PushApproved(ctx)
		if !errors.Is(err, domain.ErrPlatformNotConfigured) {
			t.Errorf("error = %v, want ErrPlatformNotConfigured", err)
		}
	})

	t.Run("pushes approved records and marks them applied", func(t *testing.T) {
		store := newMockEnrichmentRepository()
		store.byStatusRows = []domain.EnrichmentRecord{approvedRecord(1, 100)}

		platform := newMockPlatformClient()
		svc := newTestSyncService(store, platform)

		summary, err := svc.PushApproved(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Total != 1 || summary.Pushed != 1 || summary.Failed != 0 {
			t.Errorf("summary = %+v, want 1 pushed", summary)
		}

		if len(platform.metaWrites) != 1 {
			t.Fatalf("metafield writes = %d, want 1", len(platform.metaWrites))
		}
		if platform.metaWrites[0].productID != 100 {
			t.Errorf("productID = %d, want 100", platform.metaWrites[0].productID)
		}

		if store.statusUpdates[1] != domain.StatusApplied {
			t.Errorf("status update = %v, want applied", store.statusUpdates[1])
		}
	})

	t.Run("platform failure counts the row and keeps going", func(t *testing.T) {
		store := newMockEnrichmentRepository()
		store.byStatusRows = []domain.EnrichmentRecord{approvedRecord(1, 100), approvedRecord(2, 200)}

		platform := newMockPlatformClient()
		platform.metafieldErr = &domain.PlatformStatusError{StatusCode: 500, Op: "metafield write"}
		svc := newTestSyncService(store, platform)

		summary, err := svc.PushApproved(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Failed != 2 || summary.Pushed != 0 {
			t.Errorf("summary = %+v, want 2 failed", summary)
		}
		if len(summary.Errors) != 2 {
			t.Errorf("Errors = %v, want 2 entries", summary.Errors)
		}
		if len(store.statusUpdates) != 0 {
			t.Error("failed rows must not transition to applied")
		}
	})

	t.Run("empty approved set", func(t *testing.T) {
		svc := newTestSyncService(newMockEnrichmentRepository(), newMockPlatformClient())
		summary, err := svc.PushApproved(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Total != 0 {
			t.Errorf("Total = %d, want 0", summary.Total)
		}
	})
}

func TestBuildMetafields(t *testing.T) {
	t.Run("full record produces the complete set", func(t *testing.T) {
		record := approvedRecord(1, 100)
		fields := buildMetafields(&record)

		byKey := map[string]domain.Metafield{}
		for _, f := range fields {
			if f.Namespace != metafieldNamespace {
				t.Errorf("namespace = %q, want %q", f.Namespace, metafieldNamespace)
			}
			byKey[f.Key] = f
		}

		if byKey["catalog_hash"].Value != "cerave-hydrating-cleanser" {
			t.Errorf("catalog_hash = %q", byKey["catalog_hash"].Value)
		}
		if byKey["confidence"].Value != "high" {
			t.Errorf("confidence = %q, want high", byKey["confidence"].Value)
		}
		if byKey["actives"].Value != `["ceramide"]` {
			t.Errorf("actives = %q", byKey["actives"].Value)
		}
		if byKey["actives"].Type != "list.single_line_text_field" {
			t.Errorf("actives type = %q", byKey["actives"].Type)
		}
		if byKey["efficacy_score"].Value != "4.50" {
			t.Errorf("efficacy_score = %q, want 4.50", byKey["efficacy_score"].Value)
		}
		if byKey["competitor_price_avg"].Value != "12.00" {
			t.Errorf("competitor_price_avg = %q, want 12.00", byKey["competitor_price_avg"].Value)
		}
		if byKey["price_position"].Value != "overpriced" {
			t.Errorf("price_position = %q", byKey["price_position"].Value)
		}
	})

	t.Run("optional fields are omitted when absent", func(t *testing.T) {
		record := domain.EnrichmentRecord{
			ID:          1,
			CatalogHash: "h",
			Confidence:  domain.ConfidenceLow,
		}
		fields := buildMetafields(&record)
		for _, f := range fields {
			if f.Key == "efficacy_score" || f.Key == "competitor_price_avg" || f.Key == "price_position" {
				t.Errorf("unexpected metafield %q on sparse record", f.Key)
			}
		}
	})

	t.Run("empty lists encode as empty JSON arrays", func(t *testing.T) {
		record := domain.EnrichmentRecord{CatalogHash: "h", Confidence: domain.ConfidenceLow}
		fields := buildMetafields(&record)
		for _, f := range fields {
			if f.Key == "actives" && f.Value != "[]" {
				t.Errorf("actives = %q, want []", f.Value)
			}
		}
	})
}

func TestBuildTags(t *testing.T) {
	record := approvedRecord(1, 100)
	tags := buildTags(&record)

	want := []string{
		"pricelens:matched",
		"pricelens:confidence:high",
		"active:ceramide",
		"suits:dry skin",
	}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, tags[i], want[i])
		}
	}
}
