package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// experiencePatterns cover the English and French phrasings job postings
// use for required experience. Ordered; first match wins.
var experiencePatterns = []*regexp.Regexp{
	// "3 to 5 years", "3-5 years", "3 à 5 ans": the lower bound wins, so
	// ranges must be tried before the plain form.
	regexp.MustCompile(`(\d+)\s*(?:to|-|à)\s*\d+\s*(?:years?|ans)`),
	// "minimum 3 years", "minimum de 3 ans", "au moins 3 ans"
	regexp.MustCompile(`(?:minimum(?:\s+de)?|au\s+moins|at\s+least)\s*(\d+)\s*(?:years?|ans)`),
	// "5 years experience", "5+ years of experience", "2 ans d'expérience"
	regexp.MustCompile(`(\d+)\s*\+?\s*(?:years?|ans)\s*(?:of\s+|d['’]\s*)?(?:experience|exp[ée]rience)`),
	// "5 years minimum", "5 ans min"
	regexp.MustCompile(`(\d+)\s*(?:years?|ans)\s*(?:minimum|min)\b`),
}

// ExtractExperience pulls a required years-of-experience figure out of
// free text. No recognizable requirement means zero, the documented
// default for postings that do not state one.
func ExtractExperience(text string) int {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	for _, pattern := range experiencePatterns {
		if m := pattern.FindStringSubmatch(lower); m != nil {
			if years, err := strconv.Atoi(m[1]); err == nil {
				return years
			}
		}
	}
	return 0
}
