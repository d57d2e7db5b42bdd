package sparse

import "strings"

// DefaultStopWords are dropped from both chunk text and queries.
var DefaultStopWords = []string{
	"the", "a", "an", "be", "is", "are", "was", "to", "of", "and", "in", "that",
	"have", "it", "for", "not", "on", "with", "as", "you", "do", "at", "this",
	"but", "by", "from",
}

const punctuation = ".,!?;:'\"-()[]{}"

// analyzer turns text into index terms.
type analyzer struct {
	stopWords map[string]bool
}

func newAnalyzer(stopWords []string) *analyzer {
	set := make(map[string]bool, len(stopWords))
	for _, w := range stopWords {
		set[strings.ToLower(w)] = true
	}
	return &analyzer{stopWords: set}
}

// terms splits text into words, lowercases, trims punctuation, and removes stop words
func (a *analyzer) terms(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, punctuation))

		if cleaned != "" && !a.stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}
