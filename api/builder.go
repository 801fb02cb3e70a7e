package api

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/loom/mapper"
)

// DriverBuilder creates a new instance of Driver.
type DriverBuilder struct {
	freq    sim.Freq
	maxII   int
	maxHops int
	workers int
	mapper  Mapper
}

// WithFreq sets the device frequency used to project cycle counts to
// wall-clock time in the report.
func (b DriverBuilder) WithFreq(freq sim.Freq) DriverBuilder {
	b.freq = freq
	return b
}

// WithMaxII bounds the II search.
func (b DriverBuilder) WithMaxII(maxII int) DriverBuilder {
	b.maxII = maxII
	return b
}

// WithMaxHops bounds the routing-hop budget.
func (b DriverBuilder) WithMaxHops(maxHops int) DriverBuilder {
	b.maxHops = maxHops
	return b
}

// WithWorkers sets the number of concurrent candidate-II searches.
func (b DriverBuilder) WithWorkers(workers int) DriverBuilder {
	b.workers = workers
	return b
}

// WithMapper overrides the mapper implementation.
func (b DriverBuilder) WithMapper(m Mapper) DriverBuilder {
	b.mapper = m
	return b
}

// Build creates a driver.
func (b DriverBuilder) Build(name string) Driver {
	d := &driverImpl{
		name:   name,
		freq:   b.freq,
		mapper: b.mapper,
	}
	if d.freq == 0 {
		d.freq = 1 * sim.GHz
	}
	if d.mapper == nil {
		d.mapper = mapper.Builder{}.
			WithMaxII(b.maxII).
			WithMaxHops(b.maxHops).
			WithWorkers(b.workers).
			Build(name + ".Mapper")
	}
	return d
}
