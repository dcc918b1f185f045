package mapreduce

import (
	"fmt"
	"sort"
	"strings"
)

// Keyword is one entry of a ranked word count.
type Keyword struct {
	Word  string `json:"word" yaml:"word"`
	Count int    `json:"count" yaml:"count"`
}

func (k Keyword) String() string {
	return fmt.Sprintf("%s:%d", k.Word, k.Count)
}

// isValidKeyword drops tokens that are clearly fragments of markup or code.
func isValidKeyword(word string) bool {
	if strings.HasSuffix(word, ":") || strings.HasSuffix(word, "=") {
		return false
	}
	for _, pair := range []string{"()", "[]", "{}"} {
		if strings.Contains(word, pair[:1]) != strings.Contains(word, pair[1:]) {
			return false
		}
	}
	return strings.Count(word, "\"")%2 == 0
}

// Rank returns the n most frequent valid keywords, ties broken alphabetically.
func Rank(wordCounts map[string]int, n int) []Keyword {
	ranked := make([]Keyword, 0, len(wordCounts))
	for w, c := range wordCounts {
		if isValidKeyword(w) {
			ranked = append(ranked, Keyword{Word: w, Count: c})
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Word < ranked[j].Word
	})

	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// TopKeywords formats Rank's result as "word:count" strings.
func TopKeywords(wordCounts map[string]int, n int) []string {
	ranked := Rank(wordCounts, n)
	out := make([]string, len(ranked))
	for i, k := range ranked {
		out[i] = k.String()
	}
	return out
}
