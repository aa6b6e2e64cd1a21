// Package chapters inspects chapter lists for placeholder titles.
package chapters

// AnalysisResult contains chapter analysis statistics.
type AnalysisResult struct {
	Total          int     `json:"total"`
	GenericCount   int     `json:"genericCount"`
	GenericPercent float64 `json:"genericPercent"`
	NeedsUpdate    bool    `json:"needsUpdate"`
}
