package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/pricelens/backend/internal/domain"
)

// maxListLimit caps List queries regardless of the caller's filter.
const maxListLimit = 2000

const defaultListLimit = 100

const enrichmentColumns = `id, external_product_id, title, vendor, product_type, merchant_price,
	catalog_hash, catalog_name, efficacy_score, actives, suitability, contraindications,
	score, confidence, reasons, method, competitor_price_avg, margin_opportunity,
	price_position, status, created_at, updated_at`

// EnrichmentRepository is the Postgres system of record for enrichment rows.
type EnrichmentRepository struct {
	db *sql.DB
}

// NewEnrichmentRepository creates an enrichment repository.
func NewEnrichmentRepository(db *sql.DB) *EnrichmentRepository {
	return &EnrichmentRepository{db: db}
}

// Upsert inserts or refreshes the row keyed on
// (external_product_id, catalog_hash). Every match and price field is
// overwritten on conflict; status is never touched, so operator decisions
// survive re-matching.
func (r *EnrichmentRepository) Upsert(ctx context.Context, record *domain.EnrichmentRecord) error {
	query := `
		INSERT INTO product_enrichments (
			external_product_id, title, vendor, product_type, merchant_price,
			catalog_hash, catalog_name, efficacy_score, actives, suitability,
			contraindications, score, confidence, reasons, method,
			competitor_price_avg, margin_opportunity, price_position, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, NOW(), NOW())
		ON CONFLICT (external_product_id, catalog_hash) DO UPDATE SET
			title = EXCLUDED.title,
			vendor = EXCLUDED.vendor,
			product_type = EXCLUDED.product_type,
			merchant_price = EXCLUDED.merchant_price,
			catalog_name = EXCLUDED.catalog_name,
			efficacy_score = EXCLUDED.efficacy_score,
			actives = EXCLUDED.actives,
			suitability = EXCLUDED.suitability,
			contraindications = EXCLUDED.contraindications,
			score = EXCLUDED.score,
			confidence = EXCLUDED.confidence,
			reasons = EXCLUDED.reasons,
			method = EXCLUDED.method,
			competitor_price_avg = EXCLUDED.competitor_price_avg,
			margin_opportunity = EXCLUDED.margin_opportunity,
			price_position = EXCLUDED.price_position,
			updated_at = NOW()
		RETURNING id`

	return r.db.QueryRowContext(ctx, query,
		record.ExternalProductID, record.Title, record.Vendor, record.ProductType,
		record.MerchantPrice, record.CatalogHash, record.CatalogName,
		record.EfficacyScore, pq.Array(record.Actives), pq.Array(record.Suitability),
		pq.Array(record.Contraindications), record.Score, string(record.Confidence),
		pq.Array(record.Reasons), string(record.Method), record.CompetitorAvg,
		record.MarginOpportunity, nullableString(string(record.PricePosition)),
		string(record.Status),
	).Scan(&record.ID)
}

// UpdateStatus applies one lifecycle transition. The allowed-source predicate
// is part of the statement, so an invalid transition changes zero rows.
func (r *EnrichmentRepository) UpdateStatus(ctx context.Context, id int64, next domain.Status) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, next)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE product_enrichments
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)`,
		id, string(next), pq.Array(statusStrings(domain.TransitionSources(next))))
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Zero rows means either the record is missing or the transition is not
	// allowed from its current status.
	var current string
	err = r.db.QueryRowContext(ctx,
		`SELECT status FROM product_enrichments WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("checking record status: %w", err)
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, next)
}

// BulkUpdateStatus applies the same transition to a set of records; rows whose
// current status does not allow it are left untouched. Returns how many rows
// changed.
func (r *EnrichmentRepository) BulkUpdateStatus(ctx context.Context, ids []int64, next domain.Status) (int, error) {
	if !next.Valid() {
		return 0, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, next)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE product_enrichments
		SET status = $2, updated_at = NOW()
		WHERE id = ANY($1) AND status = ANY($3)`,
		pq.Array(ids), string(next), pq.Array(statusStrings(domain.TransitionSources(next))))
	if err != nil {
		return 0, fmt.Errorf("bulk updating status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return int(affected), nil
}

// List returns records matching the filter, newest first, capped at 2000.
func (r *EnrichmentRepository) List(ctx context.Context, filter domain.EnrichmentFilter) ([]domain.EnrichmentRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `SELECT ` + enrichmentColumns + ` FROM product_enrichments WHERE 1=1`
	args := []interface{}{}
	if filter.Confidence != "" {
		args = append(args, string(filter.Confidence))
		query += fmt.Sprintf(" AND confidence = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing enrichments: %w", err)
	}
	defer rows.Close()

	return scanEnrichments(rows)
}

// ListForAdjustment selects rows for a bulk price run. Explicit ids take
// precedence and require both competitor and merchant prices; otherwise every
// approved/applied overpriced row with competitor data qualifies.
func (r *EnrichmentRepository) ListForAdjustment(ctx context.Context, ids []int64) ([]domain.EnrichmentRecord, error) {
	var (
		query string
		args  []interface{}
	)
	if len(ids) > 0 {
		query = `SELECT ` + enrichmentColumns + `
			FROM product_enrichments
			WHERE id = ANY($1)
			  AND competitor_price_avg IS NOT NULL
			  AND merchant_price IS NOT NULL
			ORDER BY id`
		args = []interface{}{pq.Array(ids)}
	} else {
		query = `SELECT ` + enrichmentColumns + `
			FROM product_enrichments
			WHERE status IN ('approved', 'applied')
			  AND competitor_price_avg IS NOT NULL
			  AND merchant_price IS NOT NULL
			  AND price_position = 'overpriced'
			ORDER BY id`
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing adjustment rows: %w", err)
	}
	defer rows.Close()

	return scanEnrichments(rows)
}

// ListByStatus returns all records in one lifecycle state, oldest first.
func (r *EnrichmentRepository) ListByStatus(ctx context.Context, status domain.Status) ([]domain.EnrichmentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+enrichmentColumns+` FROM product_enrichments WHERE status = $1 ORDER BY id`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("listing by status: %w", err)
	}
	defer rows.Close()

	return scanEnrichments(rows)
}

// SavePriceApplied records a confirmed external price write: the new merchant
// price and a fair position.
func (r *EnrichmentRepository) SavePriceApplied(ctx context.Context, id int64, newPrice float64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE product_enrichments
		SET merchant_price = $2, price_position = 'fair', updated_at = NOW()
		WHERE id = $1`,
		id, newPrice)
	if err != nil {
		return fmt.Errorf("saving applied price: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// Stats aggregates counts by confidence, status, and price position plus the
// overall average similarity.
func (r *EnrichmentRepository) Stats(ctx context.Context) (*domain.EnrichmentStats, error) {
	stats := &domain.EnrichmentStats{
		ByConfidence: map[string]int{},
		ByStatus:     map[string]int{},
		ByPosition:   map[string]int{},
	}

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(score), 0) FROM product_enrichments`).
		Scan(&stats.Total, &stats.AvgSimilarity)
	if err != nil {
		return nil, fmt.Errorf("reading totals: %w", err)
	}

	for _, group := range []struct {
		column string
		into   map[string]int
	}{
		{"confidence", stats.ByConfidence},
		{"status", stats.ByStatus},
		{"price_position", stats.ByPosition},
	} {
		if err := r.countBy(ctx, group.column, group.into); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

func (r *EnrichmentRepository) countBy(ctx context.Context, column string, into map[string]int) error {
	// column comes from a fixed internal list, never caller input.
	query := fmt.Sprintf(
		`SELECT %s, COUNT(*) FROM product_enrichments WHERE %s IS NOT NULL GROUP BY %s`,
		column, column, column)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("counting by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("scanning %s count: %w", column, err)
		}
		into[key] = count
	}
	return rows.Err()
}

func scanEnrichments(rows *sql.Rows) ([]domain.EnrichmentRecord, error) {
	var records []domain.EnrichmentRecord
	for rows.Next() {
		var (
			rec        domain.EnrichmentRecord
			vendor     sql.NullString
			prodType   sql.NullString
			merchant   sql.NullFloat64
			efficacy   sql.NullFloat64
			compAvg    sql.NullFloat64
			margin     sql.NullFloat64
			position   sql.NullString
			actives    pq.StringArray
			suits      pq.StringArray
			contras    pq.StringArray
			reasons    pq.StringArray
			confidence string
			method     string
			status     string
		)
		if err := rows.Scan(&rec.ID, &rec.ExternalProductID, &rec.Title, &vendor,
			&prodType, &merchant, &rec.CatalogHash, &rec.CatalogName, &efficacy,
			&actives, &suits, &contras, &rec.Score, &confidence, &reasons, &method,
			&compAvg, &margin, &position, &status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning enrichment row: %w", err)
		}
		rec.Vendor = vendor.String
		rec.ProductType = prodType.String
		if merchant.Valid {
			v := merchant.Float64
			rec.MerchantPrice = &v
		}
		if efficacy.Valid {
			v := efficacy.Float64
			rec.EfficacyScore = &v
		}
		if compAvg.Valid {
			v := compAvg.Float64
			rec.CompetitorAvg = &v
		}
		if margin.Valid {
			v := margin.Float64
			rec.MarginOpportunity = &v
		}
		rec.PricePosition = domain.PricePosition(position.String)
		rec.Actives = actives
		rec.Suitability = suits
		rec.Contraindications = contras
		rec.Reasons = reasons
		rec.Confidence = domain.Confidence(confidence)
		rec.Method = domain.MatchMethod(method)
		rec.Status = domain.Status(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
