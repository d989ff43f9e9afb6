package search

import "math"

// BM25 parameters.
const (
	k1 = 1.2
	b  = 0.75
)

func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}

// queryNorm turns a weight's sum of squared weights into the normalization
// factor handed to Weight.Normalize.
func queryNorm(sumOfSquaredWeights float64) float64 {
	n := 1 / math.Sqrt(sumOfSquaredWeights)
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 1
	}
	return n
}
