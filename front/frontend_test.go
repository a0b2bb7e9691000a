package front_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fetchsim/fetchsim/front"
	"github.com/fetchsim/fetchsim/insts"
)

// stubTLB is a fixed-latency translation unit with a scriptable
// translation function.
type stubTLB struct {
	latency   int
	translate func(vaddr uint64) front.TranslationResult

	busy      bool
	done      bool
	vaddr     uint64
	remaining int
}

func newStubTLB() *stubTLB {
	return &stubTLB{
		latency: 1,
		translate: func(vaddr uint64) front.TranslationResult {
			return front.TranslationResult{
				PAddr:      vaddr,
				Cacheable:  true,
				Idempotent: true,
			}
		},
	}
}

func (m *stubTLB) Ready() bool { return !m.busy }

func (m *stubTLB) Submit(vaddr uint64) bool {
	if m.busy {
		return false
	}
	m.busy = true
	m.vaddr = vaddr
	m.remaining = m.latency
	return true
}

func (m *stubTLB) Tick() {
	if !m.busy || m.done {
		return
	}
	if m.remaining > 0 {
		m.remaining--
	}
	if m.remaining == 0 {
		m.done = true
	}
}

func (m *stubTLB) Response() (front.TranslationResult, bool) {
	if !m.done {
		return front.TranslationResult{}, false
	}
	m.busy = false
	m.done = false
	return m.translate(m.vaddr), true
}

type stubTxn struct {
	addr      uint64
	remaining int
}

// stubBus is a fixed-latency FIFO bus. Instruction words come from the
// program map; addresses outside it read as NOPs. Attempts records every
// address-channel assertion, granted or not.
type stubBus struct {
	latency   int
	width     int
	denyCount int
	program   map[uint64]uint32

	attempts []front.BusRequest
	inflight []stubTxn
}

func newStubBus(width int) *stubBus {
	return &stubBus{
		latency: 1,
		width:   width,
		program: map[uint64]uint32{},
	}
}

func (b *stubBus) Submit(req front.BusRequest) bool {
	b.attempts = append(b.attempts, req)
	if b.denyCount > 0 {
		b.denyCount--
		return false
	}
	b.inflight = append(b.inflight, stubTxn{addr: req.Addr, remaining: b.latency})
	return true
}

func (b *stubBus) Tick() {
	for i := range b.inflight {
		if b.inflight[i].remaining > 0 {
			b.inflight[i].remaining--
		}
	}
}

func (b *stubBus) Response() (front.BusResponse, bool) {
	if len(b.inflight) == 0 || b.inflight[0].remaining > 0 {
		return front.BusResponse{}, false
	}
	txn := b.inflight[0]
	b.inflight = b.inflight[1:]

	data := make([]byte, b.width)
	for i := 0; i < b.width/insts.WordBytes; i++ {
		word := uint32(0x0000_0013) // nop
		if w, ok := b.program[txn.addr+uint64(i*insts.WordBytes)]; ok {
			word = w
		}
		binary.LittleEndian.PutUint32(data[i*insts.WordBytes:], word)
	}
	return front.BusResponse{Data: data}, true
}

// stubQueue accepts every bundle, consuming all valid slots, except for a
// scripted number of replays.
type stubQueue struct {
	replayNext int
	bundles    []front.Bundle
}

func (q *stubQueue) Ready() bool { return true }

func (q *stubQueue) Push(b front.Bundle) front.PushResult {
	if q.replayNext > 0 {
		q.replayNext--
		return front.PushResult{Replay: true}
	}
	q.bundles = append(q.bundles, b)
	consumed := make([]bool, len(b.Slots))
	for i, slot := range b.Slots {
		consumed[i] = slot.Valid
	}
	return front.PushResult{Accepted: true, Consumed: consumed}
}

// jal encodes JAL rd with the given byte offset.
func jal(rd uint32, offset int32) uint32 {
	imm := uint32(offset)
	word := uint32(0x6F) | rd<<7
	word |= ((imm >> 20) & 0x1) << 31
	word |= ((imm >> 1) & 0x3FF) << 21
	word |= ((imm >> 11) & 0x1) << 20
	word |= ((imm >> 12) & 0xFF) << 12
	return word
}

// jalr encodes JALR rd, rs1, imm.
func jalr(rd, rs1 uint32, imm int32) uint32 {
	return uint32(0x67) | rd<<7 | rs1<<15 | (uint32(imm)&0xFFF)<<20
}

var _ = Describe("FrontEnd", func() {
	var (
		cfg   *front.Config
		tlb   *stubTLB
		bus   *stubBus
		queue *stubQueue
		f     *front.FrontEnd
	)

	resetPC := front.DefaultConfig().ResetPC

	BeforeEach(func() {
		cfg = front.DefaultConfig()
		tlb = newStubTLB()
		bus = newStubBus(int(cfg.BundleBytes()))
		queue = &stubQueue{}
		f = front.NewFrontEnd(cfg, tlb, bus, queue)
	})

	// run ticks the front-end n times with idle inputs.
	run := func(n int) {
		for i := 0; i < n; i++ {
			f.Tick(front.TickInputs{})
		}
	}

	// conservation checks that every granted request is either answered
	// or still owed.
	conservation := func() {
		stats := f.Stats()
		Expect(stats.BusRequests).To(Equal(
			stats.BusResponses + uint64(f.OutstandingBusResponses())))
	}

	Describe("boot and sequential fetch", func() {
		It("should fetch the boot address first", func() {
			Expect(f.PC()).To(Equal(resetPC))
			run(6)
			Expect(queue.bundles).NotTo(BeEmpty())
			Expect(queue.bundles[0].PC).To(Equal(resetPC))
		})

		It("should deliver consecutive bundles one block apart", func() {
			run(8)
			Expect(len(queue.bundles)).To(BeNumerically(">=", 3))
			for i, b := range queue.bundles {
				Expect(b.PC).To(Equal(resetPC + uint64(i)*cfg.BundleBytes()))
			}
		})

		It("should reach one bundle per tick in steady state", func() {
			run(12)
			// Two ticks of pipeline fill, then one delivery per tick.
			Expect(len(queue.bundles)).To(Equal(10))
		})

		It("should never owe or over-deliver bus responses", func() {
			for i := 0; i < 12; i++ {
				f.Tick(front.TickInputs{})
				conservation()
			}
		})
	})

	Describe("misprediction redirect", func() {
		It("should refetch from the corrected target", func() {
			run(3)
			f.Tick(front.TickInputs{Execute: front.ExecFeedback{
				Valid:      true,
				Mispredict: true,
				Taken:      true,
				PC:         resetPC,
				Class:      insts.ClassBranch,
				Target:     0x8000_2000,
			}})
			Expect(f.PC()).To(Equal(uint64(0x8000_2000)))
			Expect(f.Stats().Mispredicts).To(Equal(uint64(1)))

			run(6)
			found := false
			for _, b := range queue.bundles {
				if b.PC == 0x8000_2000 {
					found = true
				}
			}
			Expect(found).To(BeTrue())
		})

		It("should fall through to the next word on a not-taken correction", func() {
			run(3)
			f.Tick(front.TickInputs{Execute: front.ExecFeedback{
				Valid:      true,
				Mispredict: true,
				Taken:      false,
				PC:         0x8000_0100,
				Class:      insts.ClassBranch,
			}})
			Expect(f.PC()).To(Equal(uint64(0x8000_0104)))
		})
	})

	Describe("kill during an outstanding bus fetch", func() {
		BeforeEach(func() {
			bus.latency = 2
			bus.program[resetPC] = jal(1, 0x40) // a call, to watch the stack
		})

		It("should complete and discard the response killed the tick it arrives", func() {
			run(3)
			Expect(f.Stats().BusResponses).To(BeZero())
			Expect(f.OutstandingBusResponses()).To(BeNumerically(">", 0))

			// The oldest response arrives this same tick.
			f.Tick(front.TickInputs{Flush: true})

			stats := f.Stats()
			Expect(stats.BusResponses).To(Equal(uint64(1)), "the handshake still completes")
			Expect(stats.KilledBusResponses).To(Equal(uint64(1)))
			Expect(stats.BundlesDelivered).To(BeZero())
			Expect(queue.bundles).To(BeEmpty())
			conservation()
		})

		It("should leave the return stack untouched for the squashed bundle", func() {
			run(3)
			f.Tick(front.TickInputs{Flush: true})
			run(2)
			Expect(f.Predictors().RAS.Depth()).To(BeZero())
		})

		It("should conserve responses across repeated flushes", func() {
			for i := 1; i <= 40; i++ {
				in := front.TickInputs{}
				if i%7 == 0 {
					in.Flush = true
				}
				f.Tick(in)
				conservation()
			}
			Expect(f.Stats().BusResponses).To(BeNumerically(">", 0))
			Expect(f.Stats().KilledBusResponses).To(BeNumerically(">", 0))
		})
	})

	Describe("translation fault", func() {
		BeforeEach(func() {
			tlb.translate = func(vaddr uint64) front.TranslationResult {
				return front.TranslationResult{Exception: true}
			}
		})

		It("should deliver an exception bundle instead of issuing a bus request", func() {
			run(6)
			stats := f.Stats()
			Expect(stats.TranslationFaults).To(BeNumerically(">=", 1))
			Expect(stats.BusRequests).To(BeZero())
			Expect(bus.attempts).To(BeEmpty())

			Expect(queue.bundles).NotTo(BeEmpty())
			Expect(queue.bundles[0].Exception).To(BeTrue())
			Expect(queue.bundles[0].PC).To(Equal(resetPC))
		})

		It("should drop the exception hand-off when the fetch is squashed first", func() {
			run(2) // the fault is latched this tick
			f.Tick(front.TickInputs{Flush: true})
			run(3)
			for _, b := range queue.bundles {
				Expect(b.PC).NotTo(Equal(resetPC))
			}
		})
	})

	Describe("bus grant denial", func() {
		BeforeEach(func() {
			bus.denyCount = 3
		})

		It("should hold the identical address until granted", func() {
			run(2)
			Expect(f.BusAddrState()).To(Equal(front.BusAddrRegistered))

			run(8)
			Expect(len(bus.attempts)).To(BeNumerically(">=", 4))
			for i := 0; i < 4; i++ {
				Expect(bus.attempts[i].Addr).To(Equal(resetPC))
			}
			Expect(f.BusAddrState()).To(Equal(front.BusAddrTransparent))

			Expect(queue.bundles).NotTo(BeEmpty())
			Expect(queue.bundles[0].PC).To(Equal(resetPC))
		})
	})

	Describe("back-pressure with slow translation", func() {
		BeforeEach(func() {
			tlb.latency = 2
			bus.denyCount = 5
		})

		It("should deliver every fetched bundle in order", func() {
			run(24)
			Expect(len(queue.bundles)).To(BeNumerically(">=", 6))
			for i, b := range queue.bundles {
				Expect(b.PC).To(Equal(resetPC+uint64(i)*cfg.BundleBytes()),
					"no bundle is skipped while the address stage is blocked")
			}
			conservation()
		})
	})

	Describe("consecutive translation faults", func() {
		BeforeEach(func() {
			bus.latency = 12
			tlb.translate = func(vaddr uint64) front.TranslationResult {
				if vaddr == resetPC {
					return front.TranslationResult{
						PAddr:      vaddr,
						Cacheable:  true,
						Idempotent: true,
					}
				}
				return front.TranslationResult{Exception: true}
			}
		})

		It("should hand every fault downstream in fetch order", func() {
			run(40)
			Expect(f.Stats().ExceptionBundles).To(BeNumerically(">=", 2))

			Expect(len(queue.bundles)).To(BeNumerically(">=", 3))
			Expect(queue.bundles[0].PC).To(Equal(resetPC))
			Expect(queue.bundles[0].Exception).To(BeFalse())
			Expect(queue.bundles[1].PC).To(Equal(resetPC + cfg.BundleBytes()))
			Expect(queue.bundles[1].Exception).To(BeTrue())
			Expect(queue.bundles[2].PC).To(Equal(resetPC + 2*cfg.BundleBytes()))
			Expect(queue.bundles[2].Exception).To(BeTrue())
		})
	})

	Describe("repeated kills on one outstanding translation", func() {
		BeforeEach(func() {
			tlb.latency = 5
		})

		It("should drain the doubly-killed response exactly once", func() {
			run(1)
			f.Tick(front.TickInputs{Flush: true})
			Expect(f.TranslateState()).To(Equal(front.TranslatePending))
			f.Tick(front.TickInputs{Flush: true})
			Expect(f.TranslateState()).To(Equal(front.TranslateKillPending))

			run(3)
			Expect(f.Stats().KilledTranslations).To(Equal(uint64(1)))
			Expect(f.Stats().Translations).To(Equal(uint64(1)))

			run(6)
			Expect(queue.bundles).NotTo(BeEmpty())
			Expect(queue.bundles[0].PC).To(Equal(resetPC+cfg.BundleBytes()),
				"the request queued behind the drain is re-accepted and fetched")
			conservation()
		})
	})

	Describe("speculative access to non-idempotent regions", func() {
		BeforeEach(func() {
			tlb.translate = func(vaddr uint64) front.TranslationResult {
				return front.TranslationResult{PAddr: vaddr}
			}
		})

		It("should hold the request off the bus while speculative", func() {
			run(10)
			Expect(bus.attempts).To(BeEmpty())
		})

		It("should issue the request once the fetch is non-speculative", func() {
			run(4)
			for i := 0; i < 6; i++ {
				f.Tick(front.TickInputs{NonSpeculative: true})
			}
			Expect(bus.attempts).NotTo(BeEmpty())
			Expect(queue.bundles).NotTo(BeEmpty())
		})

		It("should drop the parked request on a redirect and keep fetching", func() {
			tlb.translate = func(vaddr uint64) front.TranslationResult {
				return front.TranslationResult{
					PAddr:      vaddr,
					Cacheable:  true,
					Idempotent: vaddr >= 0x9000_0000,
				}
			}

			run(6)
			Expect(bus.attempts).To(BeEmpty())

			f.Tick(front.TickInputs{Execute: front.ExecFeedback{
				Valid:      true,
				Mispredict: true,
				Taken:      true,
				PC:         resetPC,
				Class:      insts.ClassBranch,
				Target:     0x9000_0000,
			}})
			run(8)

			Expect(bus.attempts).NotTo(BeEmpty(),
				"the dead request no longer blocks the address stage")
			found := false
			for _, b := range queue.bundles {
				if b.PC == 0x9000_0000 {
					found = true
				}
			}
			Expect(found).To(BeTrue())
			conservation()
		})
	})

	Describe("downstream replay", func() {
		BeforeEach(func() {
			queue.replayNext = 1
		})

		It("should refetch the bounced bundle", func() {
			run(10)
			Expect(f.Stats().Replays).To(Equal(uint64(1)))
			Expect(queue.bundles).NotTo(BeEmpty())
			Expect(queue.bundles[0].PC).To(Equal(resetPC),
				"the bounced address is fetched again")
		})
	})

	Describe("prediction redirect", func() {
		It("should steer fetch to a discovered jump target", func() {
			target := resetPC + 0x40
			bus.program[resetPC] = jal(0, 0x40)

			run(3)
			Expect(f.Stats().PredictRedirects).To(Equal(uint64(1)))
			Expect(f.PC()).To(Equal(target))

			run(4)
			found := false
			for _, b := range queue.bundles[1:] {
				Expect(b.PC).NotTo(Equal(resetPC + cfg.BundleBytes()),
					"the sequential path past the jump is squashed")
				if b.PC == target {
					found = true
				}
			}
			Expect(found).To(BeTrue())
		})

		It("should invalidate the slots past the redirecting one", func() {
			bus.program[resetPC+4] = jal(0, 0x100)

			run(3)
			bundle := queue.bundles[0]
			Expect(bundle.Slots[1].PredictedTaken).To(BeTrue())
			Expect(bundle.Slots[2].Valid).To(BeFalse())
			Expect(bundle.Slots[3].Valid).To(BeFalse())
		})

		It("should predict a return through the call's return address", func() {
			callTarget := resetPC + 0x100
			bus.program[resetPC] = jal(1, 0x100)     // call
			bus.program[callTarget] = jalr(0, 1, 0) // ret

			run(20)

			Expect(f.Predictors().RAS.Depth()).To(BeZero(),
				"the consumed return pops the consumed call")
			foundReturnPath := false
			for _, b := range queue.bundles {
				if b.PC == resetPC+4 {
					foundReturnPath = true
				}
			}
			Expect(foundReturnPath).To(BeTrue())
		})
	})

	Describe("control redirects", func() {
		It("should redirect to the trap vector on an exception", func() {
			run(2)
			f.Tick(front.TickInputs{Exception: true})
			Expect(f.PC()).To(Equal(cfg.TrapVector))
		})

		It("should redirect to the debug halt address on debug entry", func() {
			f.Tick(front.TickInputs{DebugEntry: true, Exception: true})
			Expect(f.PC()).To(Equal(cfg.DebugHaltAddress))
		})

		It("should resume past the commit point on a commit flush", func() {
			f.Tick(front.TickInputs{
				CommitFlush: front.RedirectSignal{Valid: true, Target: 0x8000_0300},
			})
			Expect(f.PC()).To(Equal(uint64(0x8000_0304)))
		})
	})

	Describe("statistics", func() {
		It("should track cycles and fetch utilization", func() {
			run(10)
			stats := f.Stats()
			Expect(stats.Cycles).To(Equal(uint64(10)))
			Expect(stats.FetchesIssued).To(BeNumerically(">", 0))
			Expect(stats.FetchUtilization()).To(BeNumerically(">", 0))
		})
	})

	Describe("Reset", func() {
		It("should return to the boot condition", func() {
			run(5)
			f.Reset()
			Expect(f.PC()).To(Equal(resetPC))
			Expect(f.Stats().Cycles).To(BeZero())
			Expect(f.FetchState()).To(Equal(front.FetchIdle))
		})
	})
})
