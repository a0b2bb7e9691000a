package mem

// Region describes the attributes of a physical address window.
type Region struct {
	// Name labels the region in reports.
	Name string `json:"name"`
	// Base is the first physical address of the region.
	Base uint64 `json:"base"`
	// Size is the region size in bytes.
	Size uint64 `json:"size"`
	// Cacheable allows fetched lines from this region to be cached.
	Cacheable bool `json:"cacheable"`
	// Idempotent marks reads as side-effect free. Speculative fetches
	// to non-idempotent regions are suppressed by the bus stage.
	Idempotent bool `json:"idempotent"`
}

// Contains reports whether addr falls inside the region.
func (r Region) Contains(addr uint64) bool {
	return addr >= r.Base && addr-r.Base < r.Size
}

// RegionMap resolves physical addresses to memory attributes. Regions
// are checked in order; the first match wins. Addresses outside every
// region default to uncacheable, idempotent.
type RegionMap struct {
	regions []Region
}

// NewRegionMap creates a region map.
func NewRegionMap(regions ...Region) *RegionMap {
	return &RegionMap{regions: regions}
}

// DefaultRegionMap returns a map with cached RAM, an uncached boot ROM
// window, and a non-idempotent device window.
func DefaultRegionMap() *RegionMap {
	return NewRegionMap(
		Region{Name: "ram", Base: 0x8000_0000, Size: 0x4000_0000, Cacheable: true, Idempotent: true},
		Region{Name: "rom", Base: 0x0000_1000, Size: 0x0001_0000, Cacheable: false, Idempotent: true},
		Region{Name: "mmio", Base: 0x1000_0000, Size: 0x1000_0000, Cacheable: false, Idempotent: false},
	)
}

// Add appends a region to the map.
func (m *RegionMap) Add(r Region) {
	m.regions = append(m.regions, r)
}

// Attributes returns the cacheable and idempotent attributes of a
// physical address.
func (m *RegionMap) Attributes(addr uint64) (cacheable, idempotent bool) {
	for _, r := range m.regions {
		if r.Contains(addr) {
			return r.Cacheable, r.Idempotent
		}
	}
	return false, true
}

// Lookup returns the region containing addr.
func (m *RegionMap) Lookup(addr uint64) (Region, bool) {
	for _, r := range m.regions {
		if r.Contains(addr) {
			return r, true
		}
	}
	return Region{}, false
}
