package usecase

import (
	"context"
	"strings"

	"github.com/freshcheck/backend/internal/domain"
	"github.com/sirupsen/logrus"
)

// qualifyingGrades are the Nutri-Score grades a healthier substitute must have
var qualifyingGrades = map[string]bool{"a": true, "b": true}

// QualifyAlternatives keeps the candidates worth showing as healthier substitutes of the
// product with currentCode. Upstream order (best Nutri-Score first) is preserved.
func QualifyAlternatives(candidates []domain.Product, currentCode string) []domain.Product {
	qualified := make([]domain.Product, 0, len(candidates))
	for _, c := range candidates {
		if c.Code == currentCode {
			continue
		}
		if strings.TrimSpace(c.ProductName) == "" {
			continue
		}
		if !qualifyingGrades[c.Grade()] {
			continue
		}
		qualified = append(qualified, c)
	}
	return qualified
}

// ShouldSuggestAlternatives reports whether alternatives are looked up for a product:
// only below an Excellent score and only when there is a category to search
func ShouldSuggestAlternatives(product *domain.Product, result domain.ScoreResult) bool {
	return product != nil && result.Score < excellentThreshold && len(product.CategoriesTags) > 0
}

// AlternativesFinder looks up healthier products of the same category
type AlternativesFinder struct {
	client domain.FoodFactsClient
	scorer *Scorer
	log    *logrus.Entry
}

// NewAlternativesFinder creates a finder that scores what it returns with scorer
func NewAlternativesFinder(client domain.FoodFactsClient, scorer *Scorer) *AlternativesFinder {
	return &AlternativesFinder{
		client: client,
		scorer: scorer,
		log:    logrus.WithField("component", "alternatives"),
	}
}

// Find returns the qualified alternatives in categoryTag, excluding currentCode.
// Upstream failures yield an empty list: alternatives are optional on the product page.
func (f *AlternativesFinder) Find(ctx context.Context, categoryTag, currentCode string) []domain.ScoredProduct {
	if strings.TrimSpace(categoryTag) == "" {
		return []domain.ScoredProduct{}
	}

	candidates, err := f.client.SearchByCategory(ctx, categoryTag)
	if err != nil {
		f.log.WithField("category", categoryTag).WithError(err).Warn("alternatives lookup failed")
		return []domain.ScoredProduct{}
	}

	return f.scoreAll(QualifyAlternatives(candidates, currentCode))
}

// ForProduct returns alternatives for a scored product, or an empty list when none apply
func (f *AlternativesFinder) ForProduct(ctx context.Context, product *domain.Product, result domain.ScoreResult) []domain.ScoredProduct {
	if !ShouldSuggestAlternatives(product, result) {
		return []domain.ScoredProduct{}
	}
	return f.Find(ctx, product.MostSpecificCategory(), product.Code)
}

func (f *AlternativesFinder) scoreAll(products []domain.Product) []domain.ScoredProduct {
	scored := make([]domain.ScoredProduct, 0, len(products))
	for i := range products {
		scored = append(scored, scoreProduct(f.scorer, products[i]))
	}
	return scored
}

func scoreProduct(scorer *Scorer, p domain.Product) domain.ScoredProduct {
	result := scorer.Score(&p)
	return domain.ScoredProduct{
		Product: p,
		Score:   result,
		Color:   ScoreColor(result.Score),
	}
}
