package mapper

const (
	defaultMaxII   = 64
	defaultMaxHops = 8
)

// Builder creates Mappers.
type Builder struct {
	maxII   int
	maxHops int
	workers int
}

// WithMaxII bounds the iterative-deepening search over candidate IIs.
func (b Builder) WithMaxII(maxII int) Builder {
	b.maxII = maxII
	return b
}

// WithMaxHops bounds the routing-hop budget of a single transfer.
func (b Builder) WithMaxHops(maxHops int) Builder {
	b.maxHops = maxHops
	return b
}

// WithWorkers sets how many candidate IIs are searched concurrently.
func (b Builder) WithWorkers(workers int) Builder {
	b.workers = workers
	return b
}

// Build creates a mapper.
func (b Builder) Build(name string) *Mapper {
	m := &Mapper{
		name:    name,
		maxII:   b.maxII,
		maxHops: b.maxHops,
		workers: b.workers,
	}
	if m.maxII <= 0 {
		m.maxII = defaultMaxII
	}
	if m.maxHops <= 0 {
		m.maxHops = defaultMaxHops
	}
	if m.workers <= 0 {
		m.workers = 1
	}
	return m
}
