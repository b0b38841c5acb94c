// Package main provides the command-line driver for the VM: it runs
// firmware files, assembles programs, and inspects containers.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jmfrouin/vm/asm"
	"github.com/jmfrouin/vm/emu"
	"github.com/jmfrouin/vm/loader"
	"github.com/jmfrouin/vm/samples"
	"github.com/jmfrouin/vm/timing"
	"github.com/jmfrouin/vm/timing/cache"
	"github.com/jmfrouin/vm/timing/latency"
	vmachine "github.com/jmfrouin/vm/vm"
)

var (
	memSize    = flag.Uint64("mem", vmachine.DefaultMemorySize, "Memory size in bytes")
	trace      = flag.Bool("trace", false, "Trace every instruction to stderr")
	step       = flag.Bool("step", false, "Pause for Enter between instructions")
	timingMode = flag.Bool("timing", false, "Estimate cycles with the timing model")
	configPath = flag.String("config", "", "Path to timing configuration JSON file")
	verbose    = flag.Bool("v", false, "Verbose output")
	demoName   = flag.String("demo", "", "Run a built-in demo program by name")
	asmPath    = flag.String("asm", "", "Assemble a source file instead of loading firmware")
	outPath    = flag.String("o", "", "Save the program as firmware instead of running it")
	descText   = flag.String("desc", "", "Description stored when saving firmware")
	infoPath   = flag.String("info", "", "Print firmware header information and exit")
)

func main() {
	flag.Parse()

	if *infoPath != "" {
		printInfo(*infoPath)
		return
	}

	words, entry, err := resolveProgram()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *outPath != "" {
		if err := loader.Save(*outPath, words, *descText, entry); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving firmware: %v\n", err)
			os.Exit(1)
		}
		if *verbose {
			fmt.Printf("Saved %d instructions to %s (entry 0x%X)\n", len(words), *outPath, entry)
		}
		return
	}

	os.Exit(run(words, entry))
}

// resolveProgram picks the instruction words from -demo, -asm, or the
// positional firmware path.
func resolveProgram() ([]uint64, uint64, error) {
	switch {
	case *demoName != "":
		prog, ok := samples.ByName(*demoName)
		if !ok {
			return nil, 0, fmt.Errorf("unknown demo %q (try: %s)", *demoName, demoNames())
		}
		return prog.Words, prog.EntryPoint, nil

	case *asmPath != "":
		source, err := os.ReadFile(*asmPath)
		if err != nil {
			return nil, 0, err
		}
		result, err := asm.Assemble(string(source))
		if err != nil {
			return nil, 0, err
		}
		return result.Words, result.EntryPoint, nil

	default:
		if flag.NArg() < 1 {
			usage()
			os.Exit(1)
		}
		fw, err := loader.Load(flag.Arg(0))
		if err != nil {
			return nil, 0, err
		}
		return fw.Words, fw.EntryPoint, nil
	}
}

func run(words []uint64, entry uint64) int {
	opts := []emu.EmulatorOption{}

	var estimator *timing.Estimator
	if *timingMode {
		config := latency.DefaultConfig()
		if *configPath != "" {
			var err error
			config, err = latency.LoadConfig(*configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
				return 1
			}
		}
		dcacheConfig := cache.DefaultDataConfig()
		dcacheConfig.MissLatency = config.MemoryLatency
		estimator = timing.NewEstimator(
			latency.NewTableWithConfig(config),
			cache.New(dcacheConfig),
		)
		opts = append(opts, emu.WithCycleModel(estimator))
	}

	machine := vmachine.New(*memSize, opts...)
	machine.CPU().EnableDebug(*trace)
	machine.CPU().EnableStepByStep(*step)

	if err := machine.LoadProgram(words, 0); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		return 1
	}
	machine.CPU().SetPC(entry)

	runErr := machine.Run()

	if *verbose {
		fmt.Printf("\nInstructions executed: %d\n", machine.CPU().InstructionCount())
		if estimator != nil {
			fmt.Printf("Estimated cycles: %d\n", machine.CPU().CycleCount())
			stats := estimator.Cache().Stats()
			fmt.Printf("D-cache: %d hits, %d misses, %d evictions\n",
				stats.Hits, stats.Misses, stats.Evictions)
		}
		machine.PrintState(os.Stdout)
	}

	if runErr != nil {
		return 1
	}
	return 0
}

func printInfo(path string) {
	info, err := loader.ReadInfo(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("File:         %s\n", path)
	fmt.Printf("Version:      %d\n", info.Version)
	fmt.Printf("Instructions: %d\n", info.InstructionCount)
	fmt.Printf("Entry point:  0x%X\n", info.EntryPoint)
	fmt.Printf("Created:      %s\n", info.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Printf("Description:  %d bytes\n", info.DescriptionSize)
}

func demoNames() string {
	names := ""
	for i, p := range samples.All() {
		if i > 0 {
			names += ", "
		}
		names += p.Name
	}
	return names
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: vm [options] <program.vmfw>\n")
	fmt.Fprintf(os.Stderr, "       vm -asm <program.s> [-o out.vmfw]\n")
	fmt.Fprintf(os.Stderr, "       vm -demo <name>\n")
	fmt.Fprintf(os.Stderr, "       vm -info <program.vmfw>\n")
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
}
