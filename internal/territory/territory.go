// Package territory implements a sparse grid-growth state machine. The
// covered cell set expands or contracts toward a target size derived
// from an external market pressure signal, tracking the frontier of
// growable cells.
package territory

import (
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/nathanyu/market-spread/internal/domain"
)

const (
	defaultGridSize      = 0.005
	defaultMinCoverage   = 20
	defaultCoverageScale = 30.0
	defaultSeedRing      = 4
	defaultGrowthBias    = 0.6
	defaultShrinkRate    = 0.3
	defaultMaxShrink     = 10
	defaultGenDecay      = 0.02

	minWeight = 0.2
	maxWeight = 1.0
)

// Rand is the random source used by the engine. *math/rand.Rand
// satisfies it; tests inject a seeded source.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Config holds the engine's tunable constants. Zero values fall back to
// documented defaults.
type Config struct {
	GridSize      float64 // cell quantization size (default 0.005)
	MinCoverage   int     // target floor (default 20)
	CoverageScale float64 // log10 scale for target coverage (default 30)
	SeedRing      int     // ring cells planted around the seed (default 4)
	GrowthBias    float64 // base growth probability scale (default 0.6)
	ShrinkRate    float64 // fraction of surplus removed per tick (default 0.3)
	MaxShrink     int     // upper bound on removals per tick (default 10)
	GenDecay      float64 // growth probability decay per generation (default 0.02)
	Diagonal      bool    // 8-neighborhood when true (default true via NewTerritory)
}

func (c *Config) applyDefaults() {
	if c.GridSize <= 0 {
		c.GridSize = defaultGridSize
	}
	if c.MinCoverage <= 0 {
		c.MinCoverage = defaultMinCoverage
	}
	if c.CoverageScale <= 0 {
		c.CoverageScale = defaultCoverageScale
	}
	if c.SeedRing <= 0 {
		c.SeedRing = defaultSeedRing
	}
	if c.GrowthBias <= 0 {
		c.GrowthBias = defaultGrowthBias
	}
	if c.ShrinkRate <= 0 {
		c.ShrinkRate = defaultShrinkRate
	}
	if c.MaxShrink <= 0 {
		c.MaxShrink = defaultMaxShrink
	}
	if c.GenDecay <= 0 {
		c.GenDecay = defaultGenDecay
	}
}

// gridKey identifies a cell by its quantized grid coordinate.
type gridKey struct {
	X, Y int
}

// Cell is a single covered grid point. Cells are owned exclusively by
// the territory's cell map.
type Cell struct {
	Position   [2]float64
	IsEdge     bool
	IsSource   bool
	Generation int
	Weight     float64
}

// Territory owns the sparse cell set and its frontier.
// Invariants: edges is exactly the subset of cells with IsEdge true,
// and coverage always equals len(cells).
type Territory struct {
	mu sync.Mutex

	cfg   Config
	cells map[gridKey]*Cell
	edges map[gridKey]struct{}

	rng      Rand
	mutation *Mutation

	pressure float64
	params   domain.GrowthParameters
	target   int

	logger *zap.Logger
}

// NewTerritory creates an empty territory. Diagonal (8-cell)
// neighborhoods are the default; pass cfg.Diagonal=false explicitly via
// NewTerritoryOrtho for the 4-cell variant.
func NewTerritory(cfg Config, rng Rand, logger *zap.Logger) *Territory {
	cfg.applyDefaults()
	cfg.Diagonal = true
	return newTerritory(cfg, rng, logger)
}

// NewTerritoryOrtho creates a territory using orthogonal (4-cell)
// neighborhoods.
func NewTerritoryOrtho(cfg Config, rng Rand, logger *zap.Logger) *Territory {
	cfg.applyDefaults()
	cfg.Diagonal = false
	return newTerritory(cfg, rng, logger)
}

func newTerritory(cfg Config, rng Rand, logger *zap.Logger) *Territory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Territory{
		cfg:      cfg,
		cells:    make(map[gridKey]*Cell),
		edges:    make(map[gridKey]struct{}),
		rng:      rng,
		mutation: NewMutation(rng),
		logger:   logger,
		params:   domain.GrowthParameters{GrowthRate: 0.3, SpreadSpeed: 1.0},
	}
}

// keyEpsilon nudges coordinates sitting exactly on a cell boundary into
// the higher cell so that ring positions computed from trig functions
// quantize stably.
const keyEpsilon = 1e-9

func (t *Territory) key(pos [2]float64) gridKey {
	return gridKey{
		X: int(math.Floor(pos[0]/t.cfg.GridSize + keyEpsilon)),
		Y: int(math.Floor(pos[1]/t.cfg.GridSize + keyEpsilon)),
	}
}

// cellCenter returns the continuous position at the center of a grid
// cell.
func (t *Territory) cellCenter(k gridKey) [2]float64 {
	return [2]float64{
		(float64(k.X) + 0.5) * t.cfg.GridSize,
		(float64(k.Y) + 0.5) * t.cfg.GridSize,
	}
}

// Initialize clears all state and plants a seed cell at center plus a
// ring of neighbors evenly spaced by angle. Seed cells are sources and
// exempt from shrink removal.
func (t *Territory) Initialize(center [2]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cells = make(map[gridKey]*Cell)
	t.edges = make(map[gridKey]struct{})
	t.mutation = NewMutation(t.rng)

	t.insertCell(center, 0, true)
	for i := 0; i < t.cfg.SeedRing; i++ {
		angle := 2 * math.Pi * float64(i) / float64(t.cfg.SeedRing)
		pos := [2]float64{
			center[0] + math.Cos(angle)*t.cfg.GridSize,
			center[1] + math.Sin(angle)*t.cfg.GridSize,
		}
		t.insertCell(pos, 0, true)
	}

	t.logger.Info("territory initialized",
		zap.Int("coverage", len(t.cells)),
		zap.Float64("grid_size", t.cfg.GridSize),
	)
}

// insertCell adds a cell at pos (no-op if its grid cell is occupied)
// and restores the edge invariant locally.
func (t *Territory) insertCell(pos [2]float64, generation int, source bool) *Cell {
	k := t.key(pos)
	if _, occupied := t.cells[k]; occupied {
		return nil
	}
	cell := &Cell{
		Position:   pos,
		IsSource:   source,
		Generation: generation,
		Weight:     t.cellWeight(generation),
	}
	t.cells[k] = cell
	t.refreshEdge(k)
	for _, nk := range t.neighborKeys(k) {
		if _, ok := t.cells[nk]; ok {
			t.refreshEdge(nk)
		}
	}
	return cell
}

// removeCell deletes a cell and re-flags newly exposed neighbors as
// edges.
func (t *Territory) removeCell(k gridKey) {
	delete(t.cells, k)
	delete(t.edges, k)
	for _, nk := range t.neighborKeys(k) {
		if _, ok := t.cells[nk]; ok {
			t.refreshEdge(nk)
		}
	}
}

// refreshEdge re-evaluates the edge flag of one cell: a cell is not an
// edge if and only if every neighbor position is occupied.
func (t *Territory) refreshEdge(k gridKey) {
	cell, ok := t.cells[k]
	if !ok {
		return
	}
	surrounded := true
	for _, nk := range t.neighborKeys(k) {
		if _, occupied := t.cells[nk]; !occupied {
			surrounded = false
			break
		}
	}
	cell.IsEdge = !surrounded
	if cell.IsEdge {
		t.edges[k] = struct{}{}
	} else {
		delete(t.edges, k)
	}
}

func (t *Territory) neighborKeys(k gridKey) []gridKey {
	if t.cfg.Diagonal {
		return []gridKey{
			{k.X + 1, k.Y}, {k.X - 1, k.Y}, {k.X, k.Y + 1}, {k.X, k.Y - 1},
			{k.X + 1, k.Y + 1}, {k.X + 1, k.Y - 1}, {k.X - 1, k.Y + 1}, {k.X - 1, k.Y - 1},
		}
	}
	return []gridKey{
		{k.X + 1, k.Y}, {k.X - 1, k.Y}, {k.X, k.Y + 1}, {k.X, k.Y - 1},
	}
}

// SetPressure updates the external scalar driving target coverage.
func (t *Territory) SetPressure(pressure float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pressure = pressure
}

// SetParameters updates the translated growth parameters.
func (t *Territory) SetParameters(p domain.GrowthParameters) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.params = p
	t.pressure = p.Pressure
}

// TargetCoverage maps pressure to an integer cell-count target. The
// transform is monotone non-decreasing and saturating: log10 growth
// floored at MinCoverage, so unbounded pressure never demands unbounded
// point counts.
func (t *Territory) TargetCoverage(pressure float64) int {
	target := int(math.Log10(math.Max(100, pressure)) * t.cfg.CoverageScale)
	if target < t.cfg.MinCoverage {
		target = t.cfg.MinCoverage
	}
	return target
}

// Tick advances the state machine one step toward the current target.
// dt scales growth probability so tick-rate changes do not change the
// expansion speed.
func (t *Territory) Tick(dt float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if dt <= 0 {
		dt = 1
	}
	t.target = t.TargetCoverage(t.pressure)

	ratio := 0.0
	if t.target > 0 {
		ratio = float64(len(t.cells)) / float64(t.target)
	}
	if t.mutation.CheckTrigger(ratio, t.params.DecayPressure) {
		t.mutation.Mutate()
		t.logger.Info("strain mutated", zap.Int("strain", t.mutation.Strain()))
	}

	switch {
	case len(t.cells) < t.target:
		t.grow(dt)
	case len(t.cells) > t.target:
		t.shrink()
	default:
		t.refreshWeights()
	}
}

// grow attempts frontier expansion: each edge cell may spawn into one
// unoccupied neighbor with probability rising with the coverage deficit
// and falling with the cell's generation.
func (t *Territory) grow(dt float64) {
	deficit := t.target - len(t.cells)
	if deficit <= 0 {
		return
	}
	deficitRatio := float64(deficit) / float64(t.target)
	strainMod := t.mutation.StrainModifier()

	for _, k := range t.sortedEdgeKeys() {
		if len(t.cells) >= t.target {
			return
		}
		cell := t.cells[k]
		p := t.cfg.GrowthBias * t.params.SpreadSpeed * strainMod * dt *
			(t.params.GrowthRate + deficitRatio) /
			(1 + t.cfg.GenDecay*float64(cell.Generation))
		if p > 1 {
			p = 1
		}
		if t.rng.Float64() >= p {
			continue
		}

		free := t.freeNeighbors(k)
		if len(free) == 0 {
			// Fully surrounded cells are handled by refreshEdge; a
			// transiently exhausted frontier cell is a silent no-op.
			continue
		}
		nk := free[t.rng.Intn(len(free))]
		if t.rng.Float64() < t.mutation.Resistance(direction(k, nk)) {
			continue
		}
		t.insertCell(t.cellCenter(nk), cell.Generation+1, false)
	}
}

// shrink removes random non-source edge cells, count proportional to
// the surplus and bounded above. Sources are refused and another
// candidate is chosen.
func (t *Territory) shrink() {
	surplus := len(t.cells) - t.target
	if surplus <= 0 {
		return
	}
	n := int(float64(surplus)*t.cfg.ShrinkRate) + 1
	if n > t.cfg.MaxShrink {
		n = t.cfg.MaxShrink
	}
	if n > surplus {
		n = surplus
	}

	candidates := make([]gridKey, 0, len(t.edges))
	for _, k := range t.sortedEdgeKeys() {
		if !t.cells[k].IsSource {
			candidates = append(candidates, k)
		}
	}

	for removed := 0; removed < n && len(candidates) > 0; removed++ {
		i := t.rng.Intn(len(candidates))
		t.removeCell(candidates[i])
		candidates = append(candidates[:i], candidates[i+1:]...)
	}
}

// refreshWeights re-derives cell intensity from the current parameters
// without structural change.
func (t *Territory) refreshWeights() {
	for _, cell := range t.cells {
		w := t.cellWeight(cell.Generation) * (0.5 + t.params.GrowthRate)
		cell.Weight = clampWeight(w)
	}
}

func (t *Territory) cellWeight(generation int) float64 {
	return clampWeight(maxWeight - t.cfg.GenDecay*float64(generation))
}

func clampWeight(w float64) float64 {
	return math.Min(maxWeight, math.Max(minWeight, w))
}

// freeNeighbors returns the unoccupied neighbor keys of a cell in
// deterministic order.
func (t *Territory) freeNeighbors(k gridKey) []gridKey {
	var free []gridKey
	for _, nk := range t.neighborKeys(k) {
		if _, occupied := t.cells[nk]; !occupied {
			free = append(free, nk)
		}
	}
	return free
}

// sortedEdgeKeys returns the frontier in deterministic order so that a
// seeded random source reproduces a run exactly.
func (t *Territory) sortedEdgeKeys() []gridKey {
	keys := make([]gridKey, 0, len(t.edges))
	for k := range t.edges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Y < keys[j].Y
	})
	return keys
}

// direction classifies the dominant compass direction from one cell to
// a neighbor, used for directional growth resistance.
func direction(from, to gridKey) int {
	dx, dy := to.X-from.X, to.Y-from.Y
	switch {
	case dy > 0:
		return dirNorth
	case dy < 0:
		return dirSouth
	case dx > 0:
		return dirEast
	default:
		return dirWest
	}
}

// Points returns a render projection of all cells. The returned slice
// is a fresh snapshot on every call.
func (t *Territory) Points() []domain.Point {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]gridKey, 0, len(t.cells))
	for k := range t.cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Y < keys[j].Y
	})

	points := make([]domain.Point, len(keys))
	for i, k := range keys {
		cell := t.cells[k]
		points[i] = domain.Point{Position: cell.Position, Weight: cell.Weight}
	}
	return points
}

// Stats summarizes the current engine state.
func (t *Territory) Stats() domain.TerritoryStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	sources, maxGen := 0, 0
	for _, cell := range t.cells {
		if cell.IsSource {
			sources++
		}
		if cell.Generation > maxGen {
			maxGen = cell.Generation
		}
	}
	return domain.TerritoryStats{
		Coverage:       len(t.cells),
		TargetCoverage: t.target,
		EdgeCount:      len(t.edges),
		SourceCount:    sources,
		MaxGeneration:  maxGen,
		Strain:         t.mutation.Strain(),
		Pressure:       t.pressure,
	}
}

// Coverage returns the number of covered cells.
func (t *Territory) Coverage() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cells)
}
