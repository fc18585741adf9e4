package main

import (
	"context"
	"flag"
	"fmt"

	"gopher386/kernel"
	"gopher386/kernel/klog"
	"gopher386/kernel/mm"
	"gopher386/kernel/mm/vmm"

	units "github.com/docker/go-units"
	"github.com/google/subcommands"
)

// dumpCmd implements subcommands.Command for the "dump" command.
type dumpCmd struct{}

// Name implements subcommands.Command.Name.
func (*dumpCmd) Name() string {
	return "dump"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*dumpCmd) Synopsis() string {
	return "list the mappings of the kernel page directory after bring-up"
}

// Usage implements subcommands.Command.Usage.
func (*dumpCmd) Usage() string {
	return `dump - run the memory bring-up and list present mappings, merging runs of pages that are contiguous in both address spaces.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*dumpCmd) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*dumpCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	env := args[0].(*environment)
	if _, ok := boot(env); !ok {
		return subcommands.ExitFailure
	}

	ranges, kerr := collectRanges(vmm.KernelDirectory())
	if kerr != nil {
		env.logger.Error().Msg(kerr.Message)
		return subcommands.ExitFailure
	}

	for _, r := range ranges {
		fmt.Fprintf(env.out, "%s-%s -> %s %8s %s\n",
			klog.Addr(r.VirtAddr),
			klog.Addr(r.VirtAddr+uintptr(r.Pages)<<mm.PageShift-1),
			klog.Addr(r.PhysAddr),
			units.BytesSize(float64(uint64(r.Pages)<<mm.PageShift)),
			r.Flags)
	}
	return subcommands.ExitSuccess
}

// mappingRange is a run of pages that are contiguous in both the virtual and
// the physical address space and share the same flags.
type mappingRange struct {
	vmm.Mapping
	Pages int
}

func collectRanges(pd *vmm.PageDirectory) ([]mappingRange, *kernel.Error) {
	var ranges []mappingRange
	err := vmm.VisitMappings(pd, func(m vmm.Mapping) bool {
		if n := len(ranges); n > 0 {
			last := &ranges[n-1]
			offset := uintptr(last.Pages) << mm.PageShift
			if last.Flags == m.Flags && last.VirtAddr+offset == m.VirtAddr && last.PhysAddr+offset == m.PhysAddr {
				last.Pages++
				return true
			}
		}
		ranges = append(ranges, mappingRange{Mapping: m, Pages: 1})
		return true
	})
	if err != nil {
		return nil, err
	}
	return ranges, nil
}
