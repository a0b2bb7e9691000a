package front

// PredictorConfig holds configuration for the fetch-stage predictors.
type PredictorConfig struct {
	// BHTSize is the number of entries in the Branch History Table.
	// Must be a power of 2. Default is 1024.
	BHTSize uint32 `json:"bht_size"`
	// BTBSize is the number of entries in the Branch Target Buffer.
	// Must be a power of 2. Default is 256.
	BTBSize uint32 `json:"btb_size"`
	// RASDepth is the depth of the Return Address Stack. Default is 16.
	RASDepth int `json:"ras_depth"`
}

// DefaultPredictorConfig returns a default configuration.
func DefaultPredictorConfig() PredictorConfig {
	return PredictorConfig{
		BHTSize:  1024,
		BTBSize:  256,
		RASDepth: 16,
	}
}

// PredictorStats holds statistics for the fetch-stage predictors.
type PredictorStats struct {
	// BHTQueries is the number of direction queries made.
	BHTQueries uint64
	// BHTHits is the number of queries that found a trained entry.
	BHTHits uint64
	// BTBQueries is the number of target queries made.
	BTBQueries uint64
	// BTBHits is the number of BTB hits.
	BTBHits uint64
	// RASPushes is the number of return addresses pushed.
	RASPushes uint64
	// RASPops is the number of return addresses popped.
	RASPops uint64
	// RASOverflows is the number of pushes that overwrote the oldest
	// entry.
	RASOverflows uint64
}

// BTBHitRate returns the BTB hit rate as a percentage.
func (s PredictorStats) BTBHitRate() float64 {
	if s.BTBQueries == 0 {
		return 0
	}
	return float64(s.BTBHits) / float64(s.BTBQueries) * 100
}

// BHTCoverage returns the fraction of direction queries answered by a
// trained entry, as a percentage.
func (s PredictorStats) BHTCoverage() float64 {
	if s.BHTQueries == 0 {
		return 0
	}
	return float64(s.BHTHits) / float64(s.BHTQueries) * 100
}

// BHT is a bimodal direction predictor with 2-bit saturating counters.
// Counter states: 0=strongly not taken, 1=weakly not taken,
// 2=weakly taken, 3=strongly taken. An entry is valid once trained.
type BHT struct {
	counters []uint8
	trained  []bool
	size     uint32
	stats    *PredictorStats
}

// NewBHT creates a branch history table of the given size.
func NewBHT(size uint32) *BHT {
	if size == 0 {
		size = DefaultPredictorConfig().BHTSize
	}
	b := &BHT{
		counters: make([]uint8, size),
		trained:  make([]bool, size),
		size:     size,
		stats:    &PredictorStats{},
	}
	// Bias towards weakly taken.
	for i := range b.counters {
		b.counters[i] = 2
	}
	return b
}

func (b *BHT) index(pc uint64) uint32 {
	// Lower bits of the word address.
	return uint32((pc >> 2) & uint64(b.size-1))
}

// Predict queries the table. valid is false until the entry has been
// trained at least once.
func (b *BHT) Predict(pc uint64) (valid, taken bool) {
	b.stats.BHTQueries++
	idx := b.index(pc)
	if !b.trained[idx] {
		return false, false
	}
	b.stats.BHTHits++
	return true, b.counters[idx] >= 2
}

// Update trains the 2-bit saturating counter with a resolved outcome.
func (b *BHT) Update(pc uint64, taken bool) {
	idx := b.index(pc)
	b.trained[idx] = true
	counter := b.counters[idx]
	if taken {
		if counter < 3 {
			b.counters[idx] = counter + 1
		}
	} else {
		if counter > 0 {
			b.counters[idx] = counter - 1
		}
	}
}

// Reset clears the table to its boot condition.
func (b *BHT) Reset() {
	for i := range b.counters {
		b.counters[i] = 2
		b.trained[i] = false
	}
}

// btbEntry is one entry in the branch target buffer.
type btbEntry struct {
	pc     uint64
	target uint64
}

// BTB is a direct-mapped, tagged branch target buffer.
type BTB struct {
	entries []btbEntry
	valid   []bool
	size    uint32
	stats   *PredictorStats
}

// NewBTB creates a branch target buffer of the given size.
func NewBTB(size uint32) *BTB {
	if size == 0 {
		size = DefaultPredictorConfig().BTBSize
	}
	return &BTB{
		entries: make([]btbEntry, size),
		valid:   make([]bool, size),
		size:    size,
		stats:   &PredictorStats{},
	}
}

func (b *BTB) index(pc uint64) uint32 {
	return uint32((pc >> 2) & uint64(b.size-1))
}

// Predict queries the buffer for a target. A hit requires a full address
// match.
func (b *BTB) Predict(pc uint64) (valid bool, target uint64) {
	b.stats.BTBQueries++
	idx := b.index(pc)
	if b.valid[idx] && b.entries[idx].pc == pc {
		b.stats.BTBHits++
		return true, b.entries[idx].target
	}
	return false, 0
}

// Update installs a resolved target.
func (b *BTB) Update(pc uint64, target uint64) {
	idx := b.index(pc)
	b.entries[idx] = btbEntry{pc: pc, target: target}
	b.valid[idx] = true
}

// Reset clears the buffer.
func (b *BTB) Reset() {
	for i := range b.valid {
		b.valid[i] = false
	}
}

// RAS is a fixed-depth return address stack. Pushing onto a full stack
// overwrites the oldest entry; popping an empty stack is a no-op.
type RAS struct {
	entries []uint64
	count   int
	top     int
	stats   *PredictorStats
}

// NewRAS creates a return address stack of the given depth.
func NewRAS(depth int) *RAS {
	if depth <= 0 {
		depth = DefaultPredictorConfig().RASDepth
	}
	return &RAS{
		entries: make([]uint64, depth),
		top:     -1,
		stats:   &PredictorStats{},
	}
}

// Top returns the top-of-stack entry without popping it.
func (r *RAS) Top() RASTop {
	if r.count == 0 {
		return RASTop{}
	}
	return RASTop{Valid: true, Target: r.entries[r.top]}
}

// Push records a return address.
func (r *RAS) Push(addr uint64) {
	r.stats.RASPushes++
	r.top = (r.top + 1) % len(r.entries)
	r.entries[r.top] = addr
	if r.count < len(r.entries) {
		r.count++
	} else {
		r.stats.RASOverflows++
	}
}

// Pop removes the top entry.
func (r *RAS) Pop() {
	if r.count == 0 {
		return
	}
	r.stats.RASPops++
	r.count--
	r.top--
	if r.top < 0 {
		r.top = len(r.entries) - 1
	}
}

// Depth returns the number of live entries.
func (r *RAS) Depth() int {
	return r.count
}

// Reset empties the stack.
func (r *RAS) Reset() {
	r.count = 0
	r.top = -1
}

// Predictors bundles the three fetch-stage predictors behind their
// query/update surfaces.
type Predictors struct {
	BHT *BHT
	BTB *BTB
	RAS *RAS

	stats *PredictorStats
}

// NewPredictors creates the predictor set with shared statistics.
func NewPredictors(config PredictorConfig) *Predictors {
	stats := &PredictorStats{}
	bht := NewBHT(config.BHTSize)
	btb := NewBTB(config.BTBSize)
	ras := NewRAS(config.RASDepth)
	bht.stats = stats
	btb.stats = stats
	ras.stats = stats
	return &Predictors{BHT: bht, BTB: btb, RAS: ras, stats: stats}
}

// Stats returns the accumulated predictor statistics.
func (p *Predictors) Stats() PredictorStats {
	return *p.stats
}

// Reset clears all predictor state and statistics.
func (p *Predictors) Reset() {
	p.BHT.Reset()
	p.BTB.Reset()
	p.RAS.Reset()
	*p.stats = PredictorStats{}
}
