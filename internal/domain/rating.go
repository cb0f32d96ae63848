package domain

// RatingSummary is the aggregate rating derived from a product's reviews.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// ComputeRating derives the summary from the number of reviews and the sum of
// their ratings. The average is rounded half away from zero to one decimal
// place, using integer arithmetic so 4.65 cannot drift to 4.6.
func ComputeRating(count int, sum int64) RatingSummary {
	if count <= 0 {
		return RatingSummary{}
	}
	n := int64(count)
	// round(10*sum/n) for non-negative sums.
	tenths := (20*sum + n) / (2 * n)
	return RatingSummary{Average: float64(tenths) / 10, Count: count}
}

// AggregateRatings computes the summary of a full rating set.
func AggregateRatings(ratings []int) RatingSummary {
	var sum int64
	for _, r := range ratings {
		sum += int64(r)
	}
	return ComputeRating(len(ratings), sum)
}
