package mem_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fetchsim/fetchsim/front"
	"github.com/fetchsim/fetchsim/mem"
)

var _ = Describe("SystemBus", func() {
	var (
		memory *mem.Memory
		bus    *mem.SystemBus
	)

	config := mem.BusConfig{
		WidthBytes:      16,
		UncachedLatency: 2,
		MaxInflight:     2,
	}

	cacheableReq := func(addr uint64) front.BusRequest {
		return front.BusRequest{Addr: addr, Cacheable: true, Idempotent: true}
	}

	// drain ticks the bus until a response arrives.
	drain := func() front.BusResponse {
		for i := 0; i < 64; i++ {
			bus.Tick()
			if rsp, ok := bus.Response(); ok {
				return rsp
			}
		}
		Fail("bus never responded")
		return front.BusResponse{}
	}

	BeforeEach(func() {
		memory = mem.NewMemory()
		bus = mem.NewSystemBus(config, memory)
	})

	It("should return memory contents at the request width", func() {
		memory.Write32(0x8000_0000, 0x1111_2222)
		memory.Write32(0x8000_000C, 0x3333_4444)

		Expect(bus.Submit(cacheableReq(0x8000_0000))).To(BeTrue())
		rsp := drain()
		Expect(rsp.Data).To(HaveLen(16))
		Expect(binary.LittleEndian.Uint32(rsp.Data[0:])).To(Equal(uint32(0x1111_2222)))
		Expect(binary.LittleEndian.Uint32(rsp.Data[12:])).To(Equal(uint32(0x3333_4444)))
	})

	It("should take the uncached latency without a cache", func() {
		bus.Submit(cacheableReq(0x8000_0000))

		bus.Tick()
		_, ok := bus.Response()
		Expect(ok).To(BeFalse())

		bus.Tick()
		_, ok = bus.Response()
		Expect(ok).To(BeTrue())
	})

	It("should deny grants beyond the in-flight limit", func() {
		Expect(bus.Submit(cacheableReq(0x8000_0000))).To(BeTrue())
		Expect(bus.Submit(cacheableReq(0x8000_0010))).To(BeTrue())
		Expect(bus.Submit(cacheableReq(0x8000_0020))).To(BeFalse())
		Expect(bus.Stats().Denied).To(Equal(uint64(1)))

		drain()
		Expect(bus.Submit(cacheableReq(0x8000_0020))).To(BeTrue())
	})

	It("should answer strictly in request order", func() {
		memory.Write32(0x8000_0000, 0xAAAA_AAAA)
		memory.Write32(0x8000_0010, 0xBBBB_BBBB)

		bus.Submit(cacheableReq(0x8000_0000))
		bus.Submit(cacheableReq(0x8000_0010))

		first := drain()
		second := drain()
		Expect(binary.LittleEndian.Uint32(first.Data)).To(Equal(uint32(0xAAAA_AAAA)))
		Expect(binary.LittleEndian.Uint32(second.Data)).To(Equal(uint32(0xBBBB_BBBB)))
	})

	It("should produce exactly one response per granted request", func() {
		bus.Submit(cacheableReq(0x8000_0000))
		drain()
		_, ok := bus.Response()
		Expect(ok).To(BeFalse())
		Expect(bus.Inflight()).To(BeZero())
	})

	Context("with a grant policy", func() {
		It("should deny per the installed policy", func() {
			denied := 0
			bus = mem.NewSystemBus(config, memory,
				mem.WithGrantPolicy(func(req front.BusRequest) bool {
					if denied < 2 {
						denied++
						return false
					}
					return true
				}))

			Expect(bus.Submit(cacheableReq(0x8000_0000))).To(BeFalse())
			Expect(bus.Submit(cacheableReq(0x8000_0000))).To(BeFalse())
			Expect(bus.Submit(cacheableReq(0x8000_0000))).To(BeTrue())
			Expect(bus.Stats().Denied).To(Equal(uint64(2)))
		})
	})

	Context("with a line cache", func() {
		BeforeEach(func() {
			cache := mem.NewLineCache(mem.LineCacheConfig{
				Size:          1024,
				Associativity: 2,
				BlockSize:     64,
				HitLatency:    1,
				MissLatency:   8,
			})
			bus = mem.NewSystemBus(config, memory, mem.WithLineCache(cache))
		})

		countTicks := func(addr uint64) int {
			Expect(bus.Submit(cacheableReq(addr))).To(BeTrue())
			for ticks := 1; ticks <= 64; ticks++ {
				bus.Tick()
				if _, ok := bus.Response(); ok {
					return ticks
				}
			}
			Fail("bus never responded")
			return 0
		}

		It("should charge the miss latency cold and the hit latency warm", func() {
			Expect(countTicks(0x8000_0000)).To(Equal(8))
			Expect(countTicks(0x8000_0000)).To(Equal(1))
		})

		It("should bypass the cache for non-cacheable requests", func() {
			req := front.BusRequest{Addr: 0x1000_0000, Cacheable: false, Idempotent: false}
			Expect(bus.Submit(req)).To(BeTrue())
			ticks := 0
			for ticks = 1; ticks <= 64; ticks++ {
				bus.Tick()
				if _, ok := bus.Response(); ok {
					break
				}
			}
			Expect(ticks).To(Equal(int(config.UncachedLatency)))
		})
	})
})
