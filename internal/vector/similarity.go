package vector

import "math"

// Norm returns the Euclidean norm of v in float32 precision.
func Norm(v []float32) float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	return float32(math.Sqrt(float64(sum)))
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

// CosineScores scores query against every row of m. The query norm is
// computed once.
func CosineScores(query []float32, m *Matrix) []float32 {
	scores := make([]float32, m.Rows())
	qn := Norm(query)
	if qn == 0 || len(query) != m.Cols() {
		return scores
	}
	for i := range scores {
		row := m.Row(i)
		var dot float32
		for j := range row {
			dot += query[j] * row[j]
		}
		rn := Norm(row)
		if rn == 0 {
			continue
		}
		scores[i] = dot / (qn * rn)
	}
	return scores
}
