package domain

// Status is the qualitative tier derived from a product score
type Status string

const (
	StatusExcellent Status = "Excellent"
	StatusGood      Status = "Good"
	StatusPoor      Status = "Poor"
	StatusBad       Status = "Bad"
)

// ScoreResult is the health score of a product, recomputed on every view
type ScoreResult struct {
	Score  int    `json:"score"`  // 0-100
	Status Status `json:"status"`
}

// AnalysisType classifies an analysis item for display
type AnalysisType string

const (
	AnalysisGood    AnalysisType = "good"
	AnalysisNeutral AnalysisType = "neutral"
	AnalysisBad     AnalysisType = "bad"
	AnalysisInfo    AnalysisType = "info"
)

// AnalysisItem is one line of the nutrient breakdown shown on the product page
type AnalysisItem struct {
	Type  AnalysisType `json:"type"`
	Label string       `json:"label"`
	Value string       `json:"value"`
}

// ScoredProduct pairs a product with its score and display color
type ScoredProduct struct {
	Product
	Score ScoreResult `json:"score"`
	Color string      `json:"color"`
}

// ProductView is everything the product page needs for one barcode
type ProductView struct {
	Product      *Product        `json:"product"`
	Score        ScoreResult     `json:"score"`
	Color        string          `json:"color"`
	Analysis     []AnalysisItem  `json:"analysis"`
	Alternatives []ScoredProduct `json:"alternatives"`
	Source       string          `json:"source"` // "OpenFoodFacts" or "Cache"
}
