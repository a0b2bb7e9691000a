package mem

import (
	"github.com/fetchsim/fetchsim/front"
)

// BusConfig holds configuration for the system bus model.
type BusConfig struct {
	// WidthBytes is the size of each response payload. Default: 16.
	WidthBytes int `json:"width_bytes"`
	// UncachedLatency is the latency of non-cacheable accesses, in
	// ticks. Default: 6.
	UncachedLatency uint64 `json:"uncached_latency"`
	// MaxInflight is the number of requests the bus tracks at once.
	// Requests beyond this are denied at the address phase. Default: 2.
	MaxInflight int `json:"max_inflight"`
}

// DefaultBusConfig returns a default configuration.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		WidthBytes:      16,
		UncachedLatency: 6,
		MaxInflight:     2,
	}
}

// BusStats holds bus statistics.
type BusStats struct {
	// Requests is the number of granted address transfers.
	Requests uint64
	// Responses is the number of data transfers returned.
	Responses uint64
	// Denied is the number of address transfers refused.
	Denied uint64
}

type busTxn struct {
	data      []byte
	remaining uint64
}

// BusOption configures a SystemBus.
type BusOption func(*SystemBus)

// WithLineCache routes cacheable requests through a line cache, which
// decides their latency.
func WithLineCache(cache *LineCache) BusOption {
	return func(b *SystemBus) {
		b.cache = cache
	}
}

// WithGrantPolicy installs a predicate consulted on every address
// transfer. Returning false denies the grant for that tick.
func WithGrantPolicy(policy func(front.BusRequest) bool) BusOption {
	return func(b *SystemBus) {
		b.grantPolicy = policy
	}
}

// SystemBus models the memory-side bus: a decoupled address phase with
// backpressure and a strict-FIFO data phase. Granted requests always
// complete, and responses return in request order.
type SystemBus struct {
	config      BusConfig
	memory      *Memory
	cache       *LineCache
	grantPolicy func(front.BusRequest) bool

	inflight []busTxn
	stats    BusStats
}

// NewSystemBus creates a bus backed by the given memory.
func NewSystemBus(config BusConfig, memory *Memory, opts ...BusOption) *SystemBus {
	if config.WidthBytes == 0 {
		config = DefaultBusConfig()
	}
	if config.MaxInflight == 0 {
		config.MaxInflight = 1
	}
	if config.UncachedLatency == 0 {
		config.UncachedLatency = 1
	}
	b := &SystemBus{
		config: config,
		memory: memory,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Stats returns bus statistics.
func (b *SystemBus) Stats() BusStats {
	return b.stats
}

// Submit presents an address transfer. It returns false when the grant
// is denied; the requester must hold the address and retry.
func (b *SystemBus) Submit(req front.BusRequest) bool {
	if len(b.inflight) >= b.config.MaxInflight {
		b.stats.Denied++
		return false
	}
	if b.grantPolicy != nil && !b.grantPolicy(req) {
		b.stats.Denied++
		return false
	}

	latency := b.config.UncachedLatency
	if req.Cacheable && b.cache != nil {
		_, latency = b.cache.Read(req.Addr)
	}
	if latency == 0 {
		latency = 1
	}

	data := make([]byte, b.config.WidthBytes)
	b.memory.ReadBytes(req.Addr, data)

	b.inflight = append(b.inflight, busTxn{data: data, remaining: latency})
	b.stats.Requests++
	return true
}

// Tick advances all in-flight transactions.
func (b *SystemBus) Tick() {
	for i := range b.inflight {
		if b.inflight[i].remaining > 0 {
			b.inflight[i].remaining--
		}
	}
}

// Response returns the oldest completed transaction, if any. At most
// one response is produced per tick.
func (b *SystemBus) Response() (front.BusResponse, bool) {
	if len(b.inflight) == 0 || b.inflight[0].remaining > 0 {
		return front.BusResponse{}, false
	}
	txn := b.inflight[0]
	b.inflight = b.inflight[1:]
	b.stats.Responses++
	return front.BusResponse{Data: txn.data}, true
}

// Inflight returns the number of outstanding transactions.
func (b *SystemBus) Inflight() int {
	return len(b.inflight)
}

// Reset drops all in-flight transactions and clears statistics.
func (b *SystemBus) Reset() {
	b.inflight = nil
	b.stats = BusStats{}
}
