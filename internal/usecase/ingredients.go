package usecase

import "strings"

// ingredientAlias maps a canonical active-ingredient token to the surface
// forms it appears under on product listings. Matching is case-insensitive
// substring against the canonical name or any alias; each canonical token is
// emitted at most once. The table order is fixed so extraction output is
// deterministic across runs.
type ingredientAlias struct {
	canonical string
	aliases   []string
}

// activeIngredientTable is the fixed alias table for skincare actives.
var activeIngredientTable = []ingredientAlias{
	{"vitamin c", []string{"ascorbic acid", "l-ascorbic", "ascorbyl", "sodium ascorbate"}},
	{"retinol", []string{"retinoid", "retinal", "retinyl", "tretinoin", "adapalene"}},
	{"niacinamide", []string{"nicotinamide", "vitamin b3"}},
	{"hyaluronic acid", []string{"sodium hyaluronate", "hyaluronate"}},
	{"salicylic acid", []string{"bha", "beta hydroxy"}},
	{"glycolic acid", []string{"aha", "alpha hydroxy"}},
	{"lactic acid", []string{"sodium lactate"}},
	{"ceramide", []string{"ceramides", "ceramide np"}},
	{"peptide", []string{"peptides", "matrixyl", "copper peptide"}},
	{"azelaic acid", []string{"azelaic"}},
	{"benzoyl peroxide", []string{"benzoyl"}},
	{"vitamin e", []string{"tocopherol", "tocopheryl"}},
	{"zinc", []string{"zinc oxide", "zinc pca"}},
	{"squalane", []string{"squalene"}},
	{"panthenol", []string{"pro-vitamin b5", "provitamin b5", "vitamin b5"}},
	{"centella asiatica", []string{"cica", "centella", "madecassoside"}},
	{"caffeine", nil},
	{"bakuchiol", nil},
	{"glycerin", []string{"glycerine", "glycerol"}},
	{"kojic acid", []string{"kojic"}},
	{"tranexamic acid", []string{"tranexamic"}},
	{"snail mucin", []string{"snail secretion"}},
}

// ExtractActives normalizes free text into canonical active-ingredient
// tokens. Pure function over the static alias table; no side effects.
func ExtractActives(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	var found []string
	for _, entry := range activeIngredientTable {
		if strings.Contains(lower, entry.canonical) {
			found = append(found, entry.canonical)
			continue
		}
		for _, alias := range entry.aliases {
			if strings.Contains(lower, alias) {
				found = append(found, entry.canonical)
				break
			}
		}
	}
	return found
}
