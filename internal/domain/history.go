package domain

import "time"

// HistoryEntry is the reduced snapshot of a resolved product kept in scan history
type HistoryEntry struct {
	Code               string `json:"code"`
	ProductName        string `json:"product_name,omitempty"`
	Brands             string `json:"brands,omitempty"`
	ImageFrontSmallURL string `json:"image_front_small_url,omitempty"`
	NutriscoreGrade    string `json:"nutriscore_grade,omitempty"`
	AdditivesN         *int   `json:"additives_n,omitempty"`
	Timestamp          int64  `json:"timestamp"` // milliseconds since epoch
}

// NewHistoryEntry builds a history snapshot of p taken at t
func NewHistoryEntry(p *Product, t time.Time) HistoryEntry {
	return HistoryEntry{
		Code:               p.Code,
		ProductName:        p.ProductName,
		Brands:             p.Brands,
		ImageFrontSmallURL: p.ImageFrontSmallURL,
		NutriscoreGrade:    p.NutriscoreGrade,
		AdditivesN:         p.AdditivesN,
		Timestamp:          t.UnixMilli(),
	}
}
