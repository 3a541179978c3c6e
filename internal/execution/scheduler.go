package execution

// Scheduler splits test case names into shards for separate processes
type Scheduler interface {
	Schedule(cases []string, shards int) [][]string
}

// RoundRobinScheduler deals cases to shards in turn
type RoundRobinScheduler struct{}

// NewRoundRobinScheduler creates a new RoundRobinScheduler
func NewRoundRobinScheduler() *RoundRobinScheduler {
	return &RoundRobinScheduler{}
}

// Schedule deals cases round-robin. Shards that would stay empty are not
// returned, so there are never more shards than cases.
func (s *RoundRobinScheduler) Schedule(cases []string, shards int) [][]string {
	if shards <= 0 {
		shards = 1
	}
	if shards > len(cases) {
		shards = len(cases)
	}

	distribution := make([][]string, shards)
	for i, name := range cases {
		distribution[i%shards] = append(distribution[i%shards], name)
	}
	return distribution
}
