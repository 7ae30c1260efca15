// Package media handles natural-language media generation and search
// requests: Stability image and audio generation, Google image search.
package media

import (
	"regexp"
	"strings"
)

// Messages matching these patterns are intercepted before they reach the
// language model.
var (
	generateImagePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:generate|create|make|draw|imagine).*?(?:image|picture|pic|photo) of (?P<query>.+)`),
		regexp.MustCompile(`(?i)^(?:please )?(?:generate|create|make|draw|imagine) (?P<query>.+)`),
	}

	searchImagePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(?:image|picture|pic|photo)[: ]+(?P<query>.+)`),
		regexp.MustCompile(`(?i)(?:send|show|find|get).*?(?:image|picture|pic|photo) of (?P<query>.+)`),
		regexp.MustCompile(`(?i)(?:image|picture|pic|photo) of (?P<query>.+)`),
	}

	generateMusicPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:generate|create|make|compose|write|produce).*?(?:music|song|audio) ?(?:about|of|on|for)? (?P<query>.+)`),
		regexp.MustCompile(`(?i)^(?:music|song|audio)[: ]+(?P<query>.+)`),
	}
)

func matchQuery(patterns []*regexp.Regexp, content string) (string, bool) {
	if strings.HasPrefix(content, "/") {
		return "", false
	}
	for _, pattern := range patterns {
		match := pattern.FindStringSubmatch(content)
		if match == nil {
			continue
		}
		query := strings.TrimSpace(match[pattern.SubexpIndex("query")])
		if query != "" {
			return query, true
		}
	}
	return "", false
}

// MatchGenerateImage extracts the prompt of an image generation request.
func MatchGenerateImage(content string) (string, bool) {
	return matchQuery(generateImagePatterns, content)
}

// MatchSearchImage extracts the query of an image search request.
func MatchSearchImage(content string) (string, bool) {
	return matchQuery(searchImagePatterns, content)
}

// MatchGenerateMusic extracts the prompt of a music generation request.
func MatchGenerateMusic(content string) (string, bool) {
	return matchQuery(generateMusicPatterns, content)
}
