// Package analytics derives keyword frequencies and the dominant language from
// aggregated page text.
package analytics

import (
	"sort"
	"strings"
	"unicode"

	"github.com/pemistahl/lingua-go"
)

// Languages the detector chooses between. Matches the locales the lens driver
// knows how to navigate.
var Languages = []lingua.Language{
	lingua.English,
	lingua.French,
	lingua.German,
	lingua.Spanish,
	lingua.Portuguese,
	lingua.Dutch,
	lingua.Greek,
	lingua.Italian,
}

// stopwords never count as keywords.
var stopwords = toSet(`
a about above after again against all also am an and any are as at
be because been before being below between both but by
can could did do does doing down during each few for from further
had has have having he her here hers herself him himself his how
i if in into is it its itself just me more most my myself
no nor not now of off on once only or other our ours ourselves out over own
same she should so some such than that the their theirs them themselves then
there these they this those through to too under until up very
was we were what when where which while who whom why will with would
you your yours yourself yourselves
click button link menu cookie cookies privacy policy terms sign login
page pages website site home search loading share subscribe newsletter
`)

func toSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

// IsStopword reports whether word is ignored in frequency analysis.
func IsStopword(word string) bool {
	_, ok := stopwords[strings.ToLower(word)]
	return ok
}

// Analytics holds the language detector, which is expensive to build and safe
// to share between goroutines.
type Analytics struct {
	detector lingua.LanguageDetector
}

func NewAnalytics() *Analytics {
	return &Analytics{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(Languages...).
			WithLowAccuracyMode().
			Build(),
	}
}

// WordFrequency counts lower-cased words in text, trimming punctuation and
// skipping stopwords, single characters and bare numbers.
func (a *Analytics) WordFrequency(text string) map[string]int {
	frequencies := make(map[string]int)

	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len([]rune(word)) < 2 || isNumber(word) || IsStopword(word) {
			continue
		}
		frequencies[word]++
	}

	return frequencies
}

func isNumber(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// TopNWords returns the n most frequent words, ties broken alphabetically.
func (a *Analytics) TopNWords(text string, n int) []string {
	frequencies := a.WordFrequency(text)

	words := make([]string, 0, len(frequencies))
	for w := range frequencies {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if frequencies[words[i]] != frequencies[words[j]] {
			return frequencies[words[i]] > frequencies[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > n {
		words = words[:n]
	}
	return words
}

// DetectLanguage returns the English name of text's language, or "" when the
// text is empty or no language is confident enough.
func (a *Analytics) DetectLanguage(text string) string {
	if a.detector == nil || strings.TrimSpace(text) == "" {
		return ""
	}
	lang, ok := a.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return lang.String()
}
