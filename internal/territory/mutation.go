package territory

// Compass directions used for directional growth resistance.
const (
	dirNorth = iota
	dirEast
	dirSouth
	dirWest
	dirCount
)

const (
	// Trigger thresholds for strain mutation.
	coverageRatioThreshold = 0.3
	decayPressureThreshold = 0.2
	baseMutationChance     = 0.01

	// Each strain raises the effective growth rate by 5%.
	strainGrowthStep = 0.05
)

// MutationEvent records one strain change.
type MutationEvent struct {
	Strain        int
	CoverageRatio float64
}

// Mutation tracks the current strain and per-direction growth
// resistance. Strains accumulate over a run and bias expansion.
type Mutation struct {
	strain     int
	resistance [dirCount]float64
	history    []MutationEvent
	rng        Rand
}

// NewMutation creates a strain tracker at strain zero with no
// resistance.
func NewMutation(rng Rand) *Mutation {
	return &Mutation{rng: rng}
}

// CheckTrigger reports whether conditions warrant a mutation this tick.
// The chance rises with coverage ratio and falls under decay pressure.
func (m *Mutation) CheckTrigger(coverageRatio, decayPressure float64) bool {
	chance := baseMutationChance
	if coverageRatio > coverageRatioThreshold {
		chance *= 1 + coverageRatio
	}
	if decayPressure > decayPressureThreshold {
		chance *= 1 - decayPressure*0.5
	}
	return m.rng.Float64() < chance
}

// Mutate advances to the next strain and randomly adjusts directional
// resistance within [-0.1, +0.1], clamped to [0, 1].
func (m *Mutation) Mutate() {
	m.strain++
	m.history = append(m.history, MutationEvent{Strain: m.strain})

	for d := range m.resistance {
		adjustment := (m.rng.Float64() - 0.5) * 0.2
		r := m.resistance[d] + adjustment
		if r < 0 {
			r = 0
		}
		if r > 1 {
			r = 1
		}
		m.resistance[d] = r
	}
}

// StrainModifier returns the growth multiplier contributed by
// accumulated strains.
func (m *Mutation) StrainModifier() float64 {
	return 1 + float64(m.strain)*strainGrowthStep
}

// Resistance returns the growth resistance for a compass direction.
func (m *Mutation) Resistance(dir int) float64 {
	if dir < 0 || dir >= dirCount {
		return 0
	}
	return m.resistance[dir]
}

// Strain returns the current strain number.
func (m *Mutation) Strain() int {
	return m.strain
}

// MutationCount returns the number of recorded strain changes.
func (m *Mutation) MutationCount() int {
	return len(m.history)
}
