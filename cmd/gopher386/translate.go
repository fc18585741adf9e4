package main

import (
	"context"
	"flag"
	"fmt"

	"gopher386/config"
	"gopher386/kernel/klog"
	"gopher386/kernel/kmain"

	"github.com/google/subcommands"
)

// translateCmd implements subcommands.Command for the "translate" command.
type translateCmd struct{}

// Name implements subcommands.Command.Name.
func (*translateCmd) Name() string {
	return "translate"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*translateCmd) Synopsis() string {
	return "translate virtual addresses after bring-up"
}

// Usage implements subcommands.Command.Usage.
func (*translateCmd) Usage() string {
	return `translate <virtual address>... - run the memory bring-up and translate each address through the recursive mapping.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*translateCmd) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*translateCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	env := args[0].(*environment)

	addrs := make([]config.Address, f.NArg())
	for i, arg := range f.Args() {
		if err := addrs[i].UnmarshalText([]byte(arg)); err != nil {
			env.logger.Error().Err(err).Msg("bad argument")
			return subcommands.ExitUsageError
		}
	}

	if _, ok := boot(env); !ok {
		return subcommands.ExitFailure
	}

	for _, addr := range addrs {
		t, err := kmain.Probe(uintptr(addr))
		if err != nil {
			env.logger.Error().Err(err).Msg("translation failed")
			return subcommands.ExitFailure
		}

		if !t.Mapped {
			fmt.Fprintf(env.out, "%s -> not mapped\n", klog.Addr(t.VirtAddr))
			continue
		}
		fmt.Fprintf(env.out, "%s -> %s\n", klog.Addr(t.VirtAddr), klog.Addr(t.PhysAddr))
	}
	return subcommands.ExitSuccess
}
