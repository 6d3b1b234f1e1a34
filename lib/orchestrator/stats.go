package orchestrator

import "strings"

// PercentSummary holds whole-number sentiment percentages. Each
// bucket is floored independently, so the three values sum to at most
// 100; the rounding drift is accepted rather than renormalized away.
type PercentSummary struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// buildStats derives review statistics from a server-provided summary
// when present, otherwise by tallying per-review sentiment labels
// locally.
func buildStats(reviews []Review, summary *SentimentSummary) Stats {
	counts := SentimentSummary{}
	if summary != nil {
		counts = *summary
	} else {
		for _, r := range reviews {
			switch strings.ToLower(r.Sentiment) {
			case "positive":
				counts.Positive++
			case "negative":
				counts.Negative++
			case "neutral":
				counts.Neutral++
			}
		}
	}

	total := len(reviews)
	return Stats{
		TotalReviews: total,
		Summary: PercentSummary{
			Positive: percent(counts.Positive, total),
			Negative: percent(counts.Negative, total),
			Neutral:  percent(counts.Neutral, total),
		},
	}
}

func percent(count, total int) int {
	if total <= 0 {
		return 0
	}
	return count * 100 / total
}
