package balancer

// leastConnections selects the candidate with the fewest in-flight
// connections, breaking ties by higher weight
type leastConnections struct{}

// NewLeastConnections creates a least-connections selection strategy
func NewLeastConnections() Strategy {
	return leastConnections{}
}

// Pick returns the candidate with the smallest active connection count.
// Candidates without records are skipped; if none have records the first
// candidate wins.
func (leastConnections) Pick(hostname string, candidates []Candidate) string {
	var selected *Candidate

	for i := range candidates {
		c := &candidates[i]
		if !c.HasRecord {
			continue
		}
		if selected == nil ||
			c.Active < selected.Active ||
			(c.Active == selected.Active && c.Weight > selected.Weight) {
			selected = c
		}
	}

	if selected == nil {
		return candidates[0].Addr
	}

	return selected.Addr
}
