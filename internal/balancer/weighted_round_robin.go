package balancer

import "math/rand/v2"

// weightedRoundRobin draws candidates in proportion to their weights using
// a cumulative-weight bucket lookup
type weightedRoundRobin struct{}

// NewWeightedRoundRobin creates a weighted selection strategy
func NewWeightedRoundRobin() Strategy {
	return weightedRoundRobin{}
}

// Pick draws a uniform random point in [0, totalWeight) and returns the
// owner of that bucket. Candidates without weight records are skipped; if
// none have records the first candidate wins.
func (weightedRoundRobin) Pick(hostname string, candidates []Candidate) string {
	var totalWeight int64
	weighted := make([]Candidate, 0, len(candidates))

	for _, c := range candidates {
		if !c.HasRecord || c.Weight <= 0 {
			continue
		}
		weighted = append(weighted, c)
		totalWeight += c.Weight
	}

	if len(weighted) == 0 || totalWeight <= 0 {
		return candidates[0].Addr
	}

	point := rand.Int64N(totalWeight)
	var cumulative int64
	for _, c := range weighted {
		cumulative += c.Weight
		if point < cumulative {
			return c.Addr
		}
	}

	return weighted[len(weighted)-1].Addr
}
