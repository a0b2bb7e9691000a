// Package main provides the entry point for fetchsim.
// Fetchsim is a cycle-level model of a speculative instruction-fetch
// front-end: PC selection, address translation, split-phase bus fetch,
// and branch prediction.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fetchsim/fetchsim/front"
	"github.com/fetchsim/fetchsim/insts"
	"github.com/fetchsim/fetchsim/loader"
	"github.com/fetchsim/fetchsim/mem"
)

var (
	configPath = flag.String("config", "", "Path to front-end configuration JSON file")
	cycles     = flag.Uint64("cycles", 10000, "Number of cycles to simulate")
	queueDepth = flag.Int("queue", 8, "Instruction queue depth in bundles")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: fetchsim [options] <program.elf>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	var config *front.Config
	if *configPath != "" {
		config, err = front.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	} else {
		config = front.DefaultConfig()
	}
	config.ResetPC = prog.EntryPoint
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Entry point: 0x%X\n", prog.EntryPoint)
		fmt.Printf("Segments: %d\n", len(prog.Segments))
	}

	os.Exit(run(prog, programPath, config))
}

// run simulates the front-end fetching the program for the configured
// number of cycles and prints a report.
func run(prog *loader.Program, programPath string, config *front.Config) int {
	memory := mem.NewMemory()
	regions := mem.DefaultRegionMap()

	translation := mem.NewTranslationModel(
		mem.NewTLB(mem.DefaultTLBConfig()), regions)

	// Load segments and identity-map their pages.
	pageSize := mem.DefaultTLBConfig().PageSize
	for _, seg := range prog.Segments {
		memory.WriteBytes(seg.VirtAddr, seg.Data)
		for i := uint64(len(seg.Data)); i < seg.MemSize; i++ {
			memory.Write8(seg.VirtAddr+i, 0)
		}
		for page := seg.VirtAddr &^ (pageSize - 1); page < seg.VirtAddr+seg.MemSize; page += pageSize {
			translation.TLB().Map(page, page)
		}
	}

	cache := mem.NewLineCache(mem.DefaultLineCacheConfig())
	busConfig := mem.DefaultBusConfig()
	busConfig.WidthBytes = int(config.BundleBytes())
	bus := mem.NewSystemBus(busConfig, memory, mem.WithLineCache(cache))

	queue := front.NewBufferedQueue(*queueDepth)
	frontEnd := front.NewFrontEnd(config, translation, bus, queue)
	backend := newBackendModel(queue)

	for cycle := uint64(0); cycle < *cycles; cycle++ {
		frontEnd.Tick(backend.Tick())
	}

	printReport(programPath, frontEnd, translation, cache, bus, backend)
	return 0
}

// backendModel is a simple consumer standing in for the rest of the
// pipeline: it drains one bundle per tick and resolves its control flow
// a few cycles later, flagging mispredictions against a static oracle.
type backendModel struct {
	queue *front.BufferedQueue

	// pending holds feedback scheduled for future ticks.
	pending []scheduledFeedback

	tick     uint64
	resolved uint64
}

type scheduledFeedback struct {
	due      uint64
	feedback front.ExecFeedback
}

const resolveLatency = 3

func newBackendModel(queue *front.BufferedQueue) *backendModel {
	return &backendModel{queue: queue}
}

// Tick consumes at most one bundle and returns the feedback due this
// cycle.
func (b *backendModel) Tick() front.TickInputs {
	b.tick++

	in := front.TickInputs{}
	for i := 0; i < len(b.pending); i++ {
		if b.pending[i].due == b.tick {
			in.Execute = b.pending[i].feedback
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			break
		}
	}

	bundle, ok := b.queue.Pop()
	if !ok {
		return in
	}
	for _, slot := range bundle.Slots {
		if !slot.Valid || slot.Class == insts.ClassNone {
			continue
		}
		if fb, ok := b.resolve(slot); ok {
			b.pending = append(b.pending, scheduledFeedback{
				due:      b.tick + resolveLatency,
				feedback: fb,
			})
			b.resolved++
		}
		break
	}
	return in
}

// resolve plays oracle for a control-flow slot: branches take their
// backward direction, jumps take their encoded target. Register jumps
// and returns have no statically known target and are assumed predicted
// correctly.
func (b *backendModel) resolve(slot front.DecodedSlot) (front.ExecFeedback, bool) {
	switch slot.Class {
	case insts.ClassBranch:
		taken := slot.Offset < 0
		target := uint64(int64(slot.PC) + slot.Offset)
		return front.ExecFeedback{
			Valid:      true,
			PC:         slot.PC,
			Class:      slot.Class,
			Taken:      taken,
			Target:     target,
			Mispredict: taken != slot.PredictedTaken,
		}, true

	case insts.ClassJump:
		target := uint64(int64(slot.PC) + slot.Offset)
		return front.ExecFeedback{
			Valid:      true,
			PC:         slot.PC,
			Class:      slot.Class,
			Taken:      true,
			Target:     target,
			Mispredict: !slot.PredictedTaken || slot.PredictedTarget != target,
		}, true
	}
	return front.ExecFeedback{}, false
}

func printReport(
	programPath string,
	frontEnd *front.FrontEnd,
	translation *mem.TranslationModel,
	cache *mem.LineCache,
	bus *mem.SystemBus,
	backend *backendModel,
) {
	stats := frontEnd.Stats()
	pstats := frontEnd.Predictors().Stats()

	fmt.Printf("\n")
	fmt.Printf("Program: %s\n", programPath)
	fmt.Printf("Total Cycles: %d\n", stats.Cycles)
	fmt.Printf("Bundles Delivered: %d\n", stats.BundlesDelivered)
	fmt.Printf("Fetch Utilization: %.1f%%\n", stats.FetchUtilization())
	fmt.Printf("\n")
	fmt.Printf("Fetch Pipeline:\n")
	fmt.Printf("  Fetches issued:     %d\n", stats.FetchesIssued)
	fmt.Printf("  Translations:       %d (faults: %d)\n",
		stats.Translations, stats.TranslationFaults)
	fmt.Printf("  Bus requests:       %d\n", stats.BusRequests)
	fmt.Printf("  Bus responses:      %d (killed: %d, %.1f%%)\n",
		stats.BusResponses, stats.KilledBusResponses, stats.KilledResponseRate())
	fmt.Printf("  Exception bundles:  %d\n", stats.ExceptionBundles)
	fmt.Printf("  Replays:            %d\n", stats.Replays)
	fmt.Printf("\n")
	fmt.Printf("Control Flow:\n")
	fmt.Printf("  Predict redirects:  %d\n", stats.PredictRedirects)
	fmt.Printf("  Mispredicts:        %d\n", stats.Mispredicts)
	fmt.Printf("  Kills:              %d\n", stats.Kills)
	fmt.Printf("  Branches resolved:  %d\n", backend.resolved)
	fmt.Printf("\n")
	fmt.Printf("Predictors:\n")
	fmt.Printf("  BHT coverage:       %.1f%%\n", pstats.BHTCoverage())
	fmt.Printf("  BTB hit rate:       %.1f%%\n", pstats.BTBHitRate())
	fmt.Printf("  RAS pushes/pops:    %d/%d (overflows: %d)\n",
		pstats.RASPushes, pstats.RASPops, pstats.RASOverflows)
	fmt.Printf("\n")
	fmt.Printf("Memory Side:\n")
	fmt.Printf("  TLB fault rate:     %.1f%%\n", translation.Stats().FaultRate())
	fmt.Printf("  I-cache hit rate:   %.1f%%\n", cache.Stats().HitRate())
	fmt.Printf("  Bus denied grants:  %d\n", bus.Stats().Denied)
}
