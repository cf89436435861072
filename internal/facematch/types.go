// Package facematch identifies live face embeddings against a class roster.
// It holds the distance metrics, the nearest-then-threshold matcher and the
// small name and geometry helpers shared by the recorder, registration and dashboard.
package facematch

// Metric selects how two embeddings are compared
type Metric string

const (
	MetricEuclidean Metric = "euclidean" // face_recognition style L2 distance, tolerance ~0.6
	MetricCosine    Metric = "cosine"    // 1 - cosine similarity, tolerance ~0.5
)

// DefaultTolerance returns the usual accept threshold for a metric.
func (m Metric) DefaultTolerance() float64 {
	if m == MetricCosine {
		return 0.5
	}
	return 0.6
}

// Result describes the outcome of matching one live embedding.
type Result struct {
	Index    int     // index into the known embeddings, -1 when there is no match
	Nearest  int     // argmin over raw distances, -1 when there were no candidates
	Distance float64 // distance to the nearest candidate
}
