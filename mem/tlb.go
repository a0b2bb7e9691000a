package mem

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/fetchsim/fetchsim/front"
)

// TLBConfig holds configuration for the translation lookaside buffer.
type TLBConfig struct {
	// Sets is the number of TLB sets. Default: 16.
	Sets int `json:"sets"`
	// Ways is the associativity. Default: 4.
	Ways int `json:"ways"`
	// PageSize in bytes. Must be a power of 2. Default: 4096.
	PageSize uint64 `json:"page_size"`
	// Latency is the lookup latency in ticks. Default: 1.
	Latency uint64 `json:"latency"`
}

// DefaultTLBConfig returns a default configuration.
func DefaultTLBConfig() TLBConfig {
	return TLBConfig{
		Sets:     16,
		Ways:     4,
		PageSize: 4096,
		Latency:  1,
	}
}

// TLBStats holds translation statistics.
type TLBStats struct {
	// Requests is the number of translation requests accepted.
	Requests uint64
	// Hits is the number of requests that found a mapping.
	Hits uint64
	// Faults is the number of requests for unmapped pages.
	Faults uint64
}

// FaultRate returns the fraction of requests that faulted, as a
// percentage.
func (s TLBStats) FaultRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Faults) / float64(s.Requests) * 100
}

// TLB is a software-managed, set-associative translation buffer. The
// Akita cache directory manages tags and LRU replacement; physical frame
// numbers live in a side array indexed by (set, way).
type TLB struct {
	config    TLBConfig
	directory *akitacache.DirectoryImpl
	frames    []uint64
}

// NewTLB creates a TLB with the given configuration.
func NewTLB(config TLBConfig) *TLB {
	if config.Sets == 0 || config.Ways == 0 || config.PageSize == 0 {
		config = DefaultTLBConfig()
	}
	return &TLB{
		config: config,
		directory: akitacache.NewDirectory(
			config.Sets,
			config.Ways,
			int(config.PageSize),
			akitacache.NewLRUVictimFinder(),
		),
		frames: make([]uint64, config.Sets*config.Ways),
	}
}

func (t *TLB) pageBase(addr uint64) uint64 {
	return addr &^ (t.config.PageSize - 1)
}

func (t *TLB) blockIndex(block *akitacache.Block) int {
	return block.SetID*t.config.Ways + block.WayID
}

// Map installs a virtual-to-physical page mapping, evicting the LRU
// entry of the set when full.
func (t *TLB) Map(vaddr, paddr uint64) {
	vpage := t.pageBase(vaddr)
	victim := t.directory.FindVictim(vpage)
	if victim == nil {
		return
	}
	victim.Tag = vpage
	victim.IsValid = true
	victim.IsDirty = false
	t.frames[t.blockIndex(victim)] = t.pageBase(paddr)
	t.directory.Visit(victim)
}

// Lookup translates a virtual address. ok is false when no mapping
// exists.
func (t *TLB) Lookup(vaddr uint64) (paddr uint64, ok bool) {
	vpage := t.pageBase(vaddr)
	block := t.directory.Lookup(0, vpage)
	if block == nil || !block.IsValid {
		return 0, false
	}
	t.directory.Visit(block)
	return t.frames[t.blockIndex(block)] | (vaddr & (t.config.PageSize - 1)), true
}

// Invalidate removes the mapping covering vaddr.
func (t *TLB) Invalidate(vaddr uint64) {
	block := t.directory.Lookup(0, t.pageBase(vaddr))
	if block != nil {
		block.IsValid = false
	}
}

// Reset invalidates all mappings.
func (t *TLB) Reset() {
	t.directory.Reset()
}

// TranslationModel is the translation-unit collaborator: a fixed-latency
// lookup through the TLB, with memory attributes resolved from the
// region map. It accepts at most one outstanding request and produces
// exactly one response per accepted request.
type TranslationModel struct {
	tlb     *TLB
	regions *RegionMap
	latency uint64

	busy      bool
	vaddr     uint64
	remaining uint64

	done   bool
	result front.TranslationResult

	stats TLBStats
}

// NewTranslationModel creates a translation unit over the given TLB and
// region map.
func NewTranslationModel(tlb *TLB, regions *RegionMap) *TranslationModel {
	latency := tlb.config.Latency
	if latency == 0 {
		latency = 1
	}
	return &TranslationModel{
		tlb:     tlb,
		regions: regions,
		latency: latency,
	}
}

// TLB returns the underlying translation buffer, for mapping pages.
func (m *TranslationModel) TLB() *TLB {
	return m.tlb
}

// Stats returns translation statistics.
func (m *TranslationModel) Stats() TLBStats {
	return m.stats
}

// Ready reports whether a new request can be accepted this tick.
func (m *TranslationModel) Ready() bool {
	return !m.busy
}

// Submit accepts a translation request.
func (m *TranslationModel) Submit(vaddr uint64) bool {
	if m.busy {
		return false
	}
	m.busy = true
	m.vaddr = vaddr
	m.remaining = m.latency
	m.stats.Requests++
	return true
}

// Tick advances the lookup pipeline.
func (m *TranslationModel) Tick() {
	if !m.busy || m.done {
		return
	}
	if m.remaining > 0 {
		m.remaining--
	}
	if m.remaining == 0 {
		m.result = m.resolve(m.vaddr)
		m.done = true
	}
}

// Response returns the translation result valid this tick.
func (m *TranslationModel) Response() (front.TranslationResult, bool) {
	if !m.done {
		return front.TranslationResult{}, false
	}
	m.done = false
	m.busy = false
	return m.result, true
}

func (m *TranslationModel) resolve(vaddr uint64) front.TranslationResult {
	paddr, ok := m.tlb.Lookup(vaddr)
	if !ok {
		m.stats.Faults++
		return front.TranslationResult{Exception: true}
	}
	m.stats.Hits++
	cacheable, idempotent := m.regions.Attributes(paddr)
	return front.TranslationResult{
		PAddr:      paddr,
		Cacheable:  cacheable,
		Idempotent: idempotent,
	}
}

// Reset clears in-flight state and statistics. Installed mappings are
// kept.
func (m *TranslationModel) Reset() {
	m.busy = false
	m.done = false
	m.stats = TLBStats{}
}
