package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/pricelens/backend/internal/domain"
)

// trigramSimilarityFloor filters out barely-related names from the primary
// candidate query.
const trigramSimilarityFloor = 0.15

const candidateColumns = `hash, display_name, category, price_tier, efficacy_score,
	active_ingredients, suitability, contraindications, ingredient_summary`

// CatalogRepository reads the curated catalog. The catalog is owned by a
// separate curation process; this repository never writes it.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a catalog repository.
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// SearchByName runs the primary trigram query: candidates whose display name
// is similar to the title, or loosely matches its first three tokens, ordered
// by similarity descending.
func (r *CatalogRepository) SearchByName(ctx context.Context, title string, limit int) ([]domain.CatalogCandidate, error) {
	query := fmt.Sprintf(`
		SELECT %s, similarity(display_name, $1) AS name_similarity
		FROM catalog_products
		WHERE similarity(display_name, $1) > %g
		   OR display_name ILIKE '%%' || $2 || '%%'
		ORDER BY name_similarity DESC
		LIMIT $3`, candidateColumns, trigramSimilarityFloor)

	rows, err := r.db.QueryContext(ctx, query, title, firstTokens(title, 3), limit)
	if err != nil {
		return nil, fmt.Errorf("catalog name search: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

// SearchByActives is the ingredient fallback: candidates whose active set
// intersects the extracted actives, best efficacy first. Name similarity is
// still computed so scoring sees a real value.
func (r *CatalogRepository) SearchByActives(ctx context.Context, title string, actives []string, limit int) ([]domain.CatalogCandidate, error) {
	query := fmt.Sprintf(`
		SELECT %s, similarity(display_name, $1) AS name_similarity
		FROM catalog_products
		WHERE active_ingredients && $2
		ORDER BY efficacy_score DESC NULLS LAST
		LIMIT $3`, candidateColumns)

	rows, err := r.db.QueryContext(ctx, query, title, pq.Array(actives), limit)
	if err != nil {
		return nil, fmt.Errorf("catalog actives search: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

func scanCandidates(rows *sql.Rows) ([]domain.CatalogCandidate, error) {
	var candidates []domain.CatalogCandidate
	for rows.Next() {
		var (
			c        domain.CatalogCandidate
			category sql.NullString
			tier     sql.NullString
			efficacy sql.NullFloat64
			summary  sql.NullString
			actives  pq.StringArray
			suits    pq.StringArray
			contras  pq.StringArray
			nameSim  float64
		)
		if err := rows.Scan(&c.Hash, &c.DisplayName, &category, &tier, &efficacy,
			&actives, &suits, &contras, &summary, &nameSim); err != nil {
			return nil, fmt.Errorf("scanning candidate row: %w", err)
		}
		c.Category = category.String
		c.PriceTier = domain.TierUnknown
		if tier.Valid && tier.String != "" {
			c.PriceTier = domain.PriceTier(tier.String)
		}
		if efficacy.Valid {
			v := efficacy.Float64
			c.EfficacyScore = &v
		}
		c.Actives = actives
		c.Suitability = suits
		c.Contraindications = contras
		c.IngredientSummary = summary.String
		c.NameSimilarity = nameSim
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// firstTokens returns the first n whitespace-delimited tokens of s joined by
// single spaces, for the loose substring arm of the primary query.
func firstTokens(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
