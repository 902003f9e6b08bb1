package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/freshcheck/backend/internal/domain"
)

const (
	maxListedAdditives  = 5
	manyAdditives       = 3
	lowSugarPer100g     = 5.0
	tooSweetSugarPer100 = 20.0
)

// nutrientRow describes how one nutrient level is presented
type nutrientRow struct {
	level     string // nutrient_levels key
	nutriment string // nutriments key holding the per-100 g amount
	name      string
}

// nutrientRows are listed in display order
var nutrientRows = []nutrientRow{
	{domain.NutrientSugars, "sugars_100g", "Sugar"},
	{domain.NutrientSaturatedFat, "saturated-fat_100g", "Saturated Fat"},
	{domain.NutrientSalt, "salt_100g", "Salt"},
	{domain.NutrientFat, "fat_100g", "Fat"},
}

// AnalyzeProduct builds the nutrient breakdown shown on the product page
func AnalyzeProduct(p *domain.Product) []domain.AnalysisItem {
	if p == nil {
		return []domain.AnalysisItem{}
	}

	items := make([]domain.AnalysisItem, 0, 8)

	if item, ok := gradeItem(p); ok {
		items = append(items, item)
	}
	if item, ok := additivesItem(p); ok {
		items = append(items, item)
	}

	// Present but empty nutrient levels still suppress the sugar fallback
	if p.NutrientLevels != nil {
		for _, row := range nutrientRows {
			level := p.NutrientLevel(row.level)
			if level == "" {
				continue
			}
			amount, known := p.Nutriment(row.nutriment)
			items = append(items, nutrientLevelItem(row.name, level, amount, known))
		}
	} else if sugar, ok := p.Nutriment("sugars_100g"); ok {
		value := formatAmount(sugar) + "g / 100g"
		switch {
		case sugar < lowSugarPer100g:
			items = append(items, domain.AnalysisItem{Type: domain.AnalysisGood, Label: "Low sugar", Value: value})
		case sugar > tooSweetSugarPer100:
			items = append(items, domain.AnalysisItem{Type: domain.AnalysisBad, Label: "Too sweet", Value: value})
		}
	}

	if kcal, ok := p.Nutriment("energy-kcal_100g"); ok && kcal != 0 {
		items = append(items, domain.AnalysisItem{
			Type:  domain.AnalysisInfo,
			Label: "Calories",
			Value: formatAmount(kcal) + " kCal / 100g",
		})
	}

	return items
}

func gradeItem(p *domain.Product) (domain.AnalysisItem, bool) {
	switch grade := p.Grade(); grade {
	case "a":
		return domain.AnalysisItem{Type: domain.AnalysisGood, Label: "Excellent nutritional quality", Value: "Nutri-Score A"}, true
	case "b":
		return domain.AnalysisItem{Type: domain.AnalysisGood, Label: "Good nutritional quality", Value: "Nutri-Score B"}, true
	case "c":
		return domain.AnalysisItem{Type: domain.AnalysisNeutral, Label: "Average nutritional quality", Value: "Nutri-Score C"}, true
	case "d", "e":
		return domain.AnalysisItem{Type: domain.AnalysisBad, Label: "Poor nutritional quality", Value: "Nutri-Score " + strings.ToUpper(grade)}, true
	case "":
		if p.NutrientLevels != nil {
			return domain.AnalysisItem{Type: domain.AnalysisInfo, Label: "Nutri-Score unavailable", Value: "Using nutrient analysis"}, true
		}
	}
	return domain.AnalysisItem{}, false
}

// additivesItem is omitted when additives_n is unknown
func additivesItem(p *domain.Product) (domain.AnalysisItem, bool) {
	if p.AdditivesN == nil {
		return domain.AnalysisItem{}, false
	}
	count := *p.AdditivesN
	if count <= 0 {
		return domain.AnalysisItem{Type: domain.AnalysisGood, Label: "No additives", Value: "Clean label"}, true
	}

	value := strings.Join(AdditiveCodes(p.AdditivesTags, maxListedAdditives), ", ")
	if value == "" {
		value = "Additives detected"
	}
	if count > maxListedAdditives {
		value = fmt.Sprintf("%s... (+%d more)", value, count-maxListedAdditives)
	}

	label := fmt.Sprintf("%d additives", count)
	if count == 1 {
		label = "1 additive"
	}

	itemType := domain.AnalysisNeutral
	if count > manyAdditives {
		itemType = domain.AnalysisBad
	}

	return domain.AnalysisItem{Type: itemType, Label: label, Value: value}, true
}

// AdditiveCodes turns tags like "en:e322i" into display codes like "E322I", keeping at most limit
func AdditiveCodes(tags []string, limit int) []string {
	codes := make([]string, 0, limit)
	for _, tag := range tags {
		if len(codes) == limit {
			break
		}
		_, code, found := strings.Cut(tag, ":")
		if !found || code == "" {
			continue
		}
		codes = append(codes, strings.ToUpper(code))
	}
	return codes
}

// nutrientLevelItem maps a traffic-light level; anything not low or moderate reads as high
func nutrientLevelItem(name, level string, amount float64, known bool) domain.AnalysisItem {
	var value string
	if known {
		value = formatAmount(amount) + "g / 100g"
	}

	switch level {
	case domain.LevelLow:
		return domain.AnalysisItem{Type: domain.AnalysisGood, Label: "Low " + name, Value: value}
	case domain.LevelModerate:
		return domain.AnalysisItem{Type: domain.AnalysisNeutral, Label: "Moderate " + name, Value: value}
	default:
		return domain.AnalysisItem{Type: domain.AnalysisBad, Label: "High " + name, Value: value}
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
