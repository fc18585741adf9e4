package main

import (
	"context"
	"flag"
	"fmt"

	"gopher386/kernel"
	"gopher386/kernel/klog"
	"gopher386/kernel/kmain"

	"github.com/google/subcommands"
)

// bootCmd implements subcommands.Command for the "boot" command.
type bootCmd struct{}

// Name implements subcommands.Command.Name.
func (*bootCmd) Name() string {
	return "boot"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*bootCmd) Synopsis() string {
	return "run the memory bring-up and print a summary"
}

// Usage implements subcommands.Command.Usage.
func (*bootCmd) Usage() string {
	return `boot - run the memory bring-up and print a summary.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*bootCmd) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*bootCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	env := args[0].(*environment)
	report, ok := boot(env)
	if !ok {
		return subcommands.ExitFailure
	}

	fmt.Fprintf(env.out, "frames:    %d free of %d (%s each)\n",
		report.FreeAtExit, report.Allocator.Capacity(), frameSizeString(report.Allocator.FrameSize()))
	fmt.Fprintf(env.out, "directory: %s\n", klog.Addr(report.Paging.DirectoryAddr))
	fmt.Fprintf(env.out, "tables:    %d used of %d\n", report.Paging.TablesUsed, report.Paging.TablesCapacity)
	for _, region := range report.Regions {
		fmt.Fprintf(env.out, "region:    %-8s %s %d pages\n", region.Name, klog.Addr(region.Result.Start), region.Result.Mapped)
	}
	for _, check := range report.Exercise.Checks {
		fmt.Fprintf(env.out, "exercise:  %s -> %s\n", klog.Addr(check.VirtAddr), klog.Addr(check.PhysAddr))
	}
	return subcommands.ExitSuccess
}

// boot runs the bring-up for env and logs the failure if there is one.
func boot(env *environment) (*kmain.Report, bool) {
	report, err := kmain.Boot(env.cfg, env.logger)
	if err != nil {
		env.logger.Error().Err(err).Msg("bring-up failed")
		kernel.Panic(err)
		return nil, false
	}
	return report, true
}
