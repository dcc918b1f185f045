// Package mapreduce folds per-source word counts into run-level keywords.
package mapreduce

import "github.com/dtnitsch/lens-scraper/pkg/analytics"

// Map counts the words of a single source excerpt.
func Map(content string, a *analytics.Analytics) map[string]int {
	return a.WordFrequency(content)
}

// Reduce sums per-source counts. Nil maps are skipped.
func Reduce(intermediate []map[string]int) map[string]int {
	final := make(map[string]int)
	for _, counts := range intermediate {
		for word, count := range counts {
			final[word] += count
		}
	}
	return final
}
