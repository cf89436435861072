package facematch

// Matcher decides which known identity, if any, a live embedding belongs to.
type Matcher struct {
	metric    Metric
	tolerance float64
	distance  func(a, b []float32) float64
}

// NewMatcher creates a matcher. Unknown metrics fall back to Euclidean and a
// non-positive tolerance falls back to the metric's default.
func NewMatcher(metric Metric, tolerance float64) *Matcher {
	m := &Matcher{metric: metric, distance: EuclideanDistance}
	switch metric {
	case MetricCosine:
		m.distance = CosineDistance
	default:
		m.metric = MetricEuclidean
	}
	if tolerance <= 0 {
		tolerance = m.metric.DefaultTolerance()
	}
	m.tolerance = tolerance
	return m
}

// Metric returns the metric in use.
func (m *Matcher) Metric() Metric { return m.metric }

// Tolerance returns the accept threshold.
func (m *Matcher) Tolerance() float64 { return m.tolerance }

// Distances returns the distance from live to every known embedding, in order.
func (m *Matcher) Distances(known [][]float32, live []float32) []float64 {
	distances := make([]float64, len(known))
	for i, k := range known {
		distances[i] = m.distance(k, live)
	}
	return distances
}

// CompareFaces returns, per known embedding, whether it is within tolerance of live.
func (m *Matcher) CompareFaces(known [][]float32, live []float32) []bool {
	return m.within(m.Distances(known, live))
}

func (m *Matcher) within(distances []float64) []bool {
	matches := make([]bool, len(distances))
	for i, d := range distances {
		matches[i] = d <= m.tolerance
	}
	return matches
}

// Match picks the nearest known embedding and accepts it only if that same
// candidate passed its own tolerance test. Being nearest is not enough.
// An empty candidate set never yields a match and no index is computed.
func (m *Matcher) Match(live []float32, known [][]float32) (Result, bool) {
	if len(known) == 0 {
		return Result{Index: -1, Nearest: -1}, false
	}

	distances := m.Distances(known, live)
	matches := m.within(distances)

	best := 0
	for i := 1; i < len(distances); i++ {
		if distances[i] < distances[best] {
			best = i
		}
	}

	res := Result{Index: -1, Nearest: best, Distance: distances[best]}
	if !matches[best] {
		return res, false
	}
	res.Index = best
	return res, true
}
