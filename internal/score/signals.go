package score

import "math"

// Jaccard returns the token-set Jaccard similarity of two token sequences
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}

	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// LCSOverlap returns the length of the longest common subsequence of the two
// token sequences divided by the claim length. Word order matters, unlike Jaccard.
func LCSOverlap(claim, sentence []string) float64 {
	if len(claim) == 0 || len(sentence) == 0 {
		return 0
	}

	// Two-row dynamic programming table
	prev := make([]int, len(sentence)+1)
	curr := make([]int, len(sentence)+1)
	for i := 1; i <= len(claim); i++ {
		for j := 1; j <= len(sentence); j++ {
			switch {
			case claim[i-1] == sentence[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	return math.Min(float64(prev[len(sentence)])/float64(len(claim)), 1)
}

// Cosine returns the cosine similarity of two vectors clamped to [0,1].
// The second return value is false when the vectors cannot be compared.
func Cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0, true
	}
	if sim > 1 {
		return 1, true
	}
	return sim, true
}
