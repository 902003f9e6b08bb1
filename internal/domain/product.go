package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Nutrient level values reported by Open Food Facts
const (
	LevelLow      = "low"
	LevelModerate = "moderate"
	LevelHigh     = "high"
)

// Nutrient keys used in nutrient_levels
const (
	NutrientFat          = "fat"
	NutrientSalt         = "salt"
	NutrientSaturatedFat = "saturated-fat"
	NutrientSugars       = "sugars"
)

// EcoscoreNotApplicable is the ecoscore_grade sentinel for products without an Eco-Score
const EcoscoreNotApplicable = "not-applicable"

// Product represents a food product as returned by Open Food Facts.
// Field names follow the upstream JSON so records pass through unchanged.
type Product struct {
	Code               string            `json:"code"`
	ProductName        string            `json:"product_name,omitempty"`
	Brands             string            `json:"brands,omitempty"`
	Quantity           string            `json:"quantity,omitempty"`
	ImageURL           string            `json:"image_url,omitempty"`
	ImageFrontSmallURL string            `json:"image_front_small_url,omitempty"`
	NutriscoreGrade    string            `json:"nutriscore_grade,omitempty"`
	EcoscoreGrade      string            `json:"ecoscore_grade,omitempty"`
	NovaGroup          *int              `json:"nova_group,omitempty"`
	AdditivesN         *int              `json:"additives_n,omitempty"`
	AdditivesTags      []string          `json:"additives_tags,omitempty"`
	NutrientLevels     map[string]string `json:"nutrient_levels"` // nil when upstream omitted it; {} still counts as present
	Nutriments         map[string]any    `json:"nutriments,omitempty"`
	CategoriesTags     []string          `json:"categories_tags,omitempty"`
	LabelsTags         []string          `json:"labels_tags,omitempty"`
	IngredientsText    string            `json:"ingredients_text,omitempty"`
}

// Grade returns the normalized (lowercase, trimmed) Nutri-Score grade, or "" when unrated
func (p *Product) Grade() string {
	return strings.ToLower(strings.TrimSpace(p.NutriscoreGrade))
}

// HasLabel reports whether labels_tags contains the given tag
func (p *Product) HasLabel(tag string) bool {
	for _, l := range p.LabelsTags {
		if l == tag {
			return true
		}
	}
	return false
}

// MostSpecificCategory returns the last entry of categories_tags, or "" when there is none
func (p *Product) MostSpecificCategory() string {
	if len(p.CategoriesTags) == 0 {
		return ""
	}
	return p.CategoriesTags[len(p.CategoriesTags)-1]
}

// NutrientLevel returns the qualitative level for a nutrient key, or "" if absent
func (p *Product) NutrientLevel(nutrient string) string {
	if p.NutrientLevels == nil {
		return ""
	}
	return strings.ToLower(p.NutrientLevels[nutrient])
}

// Nutriment returns the numeric amount stored under key in nutriments.
// Upstream occasionally encodes numbers as strings; those are parsed too.
func (p *Product) Nutriment(key string) (float64, bool) {
	v, ok := p.Nutriments[key]
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

// AdditiveCount returns additives_n, treating an absent count as zero
func (p *Product) AdditiveCount() int {
	if p.AdditivesN == nil || *p.AdditivesN < 0 {
		return 0
	}
	return *p.AdditivesN
}

// String implements fmt.Stringer for log output
func (p *Product) String() string {
	return fmt.Sprintf("%s (%s)", p.ProductName, p.Code)
}

// SearchResponse is the body of the Open Food Facts search endpoint
type SearchResponse struct {
	Count    int       `json:"count"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Products []Product `json:"products"`
}

// LookupResponse is the body of the Open Food Facts product endpoint
type LookupResponse struct {
	Code          string   `json:"code"`
	Status        int      `json:"status"`
	StatusVerbose string   `json:"status_verbose,omitempty"`
	Product       *Product `json:"product,omitempty"`
}
