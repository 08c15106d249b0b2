package balancer

import "sort"

// healthyFirst prefers healthy addresses, then fewer consecutive failures,
// then higher weight. This is the default strategy.
type healthyFirst struct{}

// NewHealthyFirst creates a healthy-first selection strategy
func NewHealthyFirst() Strategy {
	return healthyFirst{}
}

// Pick returns the best candidate by (healthy desc, failures asc, weight desc)
func (healthyFirst) Pick(hostname string, candidates []Candidate) string {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Healthy != sorted[j].Healthy {
			return sorted[i].Healthy
		}
		if sorted[i].Failures != sorted[j].Failures {
			return sorted[i].Failures < sorted[j].Failures
		}
		return sorted[i].Weight > sorted[j].Weight
	})

	return sorted[0].Addr
}
