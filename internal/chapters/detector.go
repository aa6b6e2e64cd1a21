package chapters

import (
	"regexp"
	"strings"

	"github.com/pagetune/pagetune-server/internal/domain"
)

var genericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^chapter\s+\d+$`),
	regexp.MustCompile(`(?i)^chapter\s+(one|two|three|four|five|six|seven|eight|nine|ten)$`),
	regexp.MustCompile(`(?i)^section\s+\d+$`),
	regexp.MustCompile(`(?i)^page\s+\d+$`),
	regexp.MustCompile(`(?i)^part\s+\d+$`),
	regexp.MustCompile(`(?i)^part\s+(one|two|three|four|five|six|seven|eight|nine|ten)$`),
	regexp.MustCompile(`(?i)^untitled(\s+\d+)?$`),
	regexp.MustCompile(`^\d+$`),
	regexp.MustCompile(`^\d+\.\s*$`),
	regexp.MustCompile(`^\d+\s*-\s*$`),
}

// IsGenericName reports whether a chapter title is a placeholder such as
// "Chapter 3" or "12".
func IsGenericName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return true
	}

	for _, pattern := range genericPatterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

// AnalyzeChapters counts placeholder titles. NeedsUpdate is set when more
// than half of the chapters have one.
func AnalyzeChapters(chapters []domain.Chapter) AnalysisResult {
	if len(chapters) == 0 {
		return AnalysisResult{}
	}

	generic := 0
	for _, ch := range chapters {
		if IsGenericName(ch.Title) {
			generic++
		}
	}

	percent := float64(generic) / float64(len(chapters))

	return AnalysisResult{
		Total:          len(chapters),
		GenericCount:   generic,
		GenericPercent: percent,
		NeedsUpdate:    percent > 0.5,
	}
}
