package mem_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fetchsim/fetchsim/mem"
)

var _ = Describe("LineCache", func() {
	var cache *mem.LineCache

	BeforeEach(func() {
		cache = mem.NewLineCache(mem.LineCacheConfig{
			Size:          1024,
			Associativity: 2,
			BlockSize:     64,
			HitLatency:    1,
			MissLatency:   8,
		})
	})

	It("should miss cold and hit warm", func() {
		hit, latency := cache.Read(0x8000_0000)
		Expect(hit).To(BeFalse())
		Expect(latency).To(Equal(uint64(8)))

		hit, latency = cache.Read(0x8000_0000)
		Expect(hit).To(BeTrue())
		Expect(latency).To(Equal(uint64(1)))
	})

	It("should hit anywhere within a cached line", func() {
		cache.Read(0x8000_0000)
		hit, _ := cache.Read(0x8000_003C)
		Expect(hit).To(BeTrue())
	})

	It("should miss on the next line", func() {
		cache.Read(0x8000_0000)
		hit, _ := cache.Read(0x8000_0040)
		Expect(hit).To(BeFalse())
	})

	It("should evict the least recently used way", func() {
		// 1024B / (2 ways * 64B) = 8 sets; lines 8*64 bytes apart alias.
		setStride := uint64(8 * 64)
		a := uint64(0x8000_0000)
		b := a + setStride
		c := a + 2*setStride

		cache.Read(a)
		cache.Read(b)
		cache.Read(a) // b becomes LRU
		cache.Read(c) // evicts b

		hit, _ := cache.Read(a)
		Expect(hit).To(BeTrue())
		hit, _ = cache.Read(b)
		Expect(hit).To(BeFalse())
	})

	It("should track the hit rate", func() {
		cache.Read(0x8000_0000)
		cache.Read(0x8000_0000)
		cache.Read(0x8000_0000)
		cache.Read(0x8000_0040)

		stats := cache.Stats()
		Expect(stats.Reads).To(Equal(uint64(4)))
		Expect(stats.Hits).To(Equal(uint64(2)))
		Expect(stats.HitRate()).To(BeNumerically("~", 50.0, 0.01))
	})

	It("should forget everything on reset", func() {
		cache.Read(0x8000_0000)
		cache.Reset()
		hit, _ := cache.Read(0x8000_0000)
		Expect(hit).To(BeFalse())
		Expect(cache.Stats().Reads).To(Equal(uint64(1)))
	})
})
